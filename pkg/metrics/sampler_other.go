//go:build !linux

package metrics

import "log"

// On non-Linux platforms (including the Windows native-counter path, which
// spec.md §9 marks optional) we expose zeroed samples with a single
// informational log rather than implementing OS-specific performance
// counter APIs the example corpus has no library for.
func newPlatformSampler() pointSampler {
	return &zeroSampler{reason: "host metrics sampling is only implemented for the /proc-based POSIX path"}
}
