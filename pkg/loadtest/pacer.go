package loadtest

import (
	"time"

	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// targetRPS computes the instantaneous target request rate for the whole
// worker pool at the given elapsed time into the run, per spec.md §4.4's
// "Pacing by load profile" table. Stress returns 0, meaning unpaced.
func targetRPS(profile scenario.LoadProfile, rampUpSeconds int, elapsed time.Duration) float64 {
	var base float64
	switch profile.Type {
	case scenario.ProfileConstantRate, scenario.ProfileSoak:
		base = float64(profile.RPS)
	case scenario.ProfileRampUp:
		base = rampUpInterpolated(profile, elapsed)
	case scenario.ProfileSpike:
		base = spikeRate(profile, elapsed)
	case scenario.ProfileStress:
		return 0
	default:
		base = float64(profile.RPS)
	}

	if rampUpSeconds > 0 {
		scale := elapsed.Seconds() / float64(rampUpSeconds)
		if scale > 1 {
			scale = 1
		}
		if scale < 0 {
			scale = 0
		}
		base *= scale
	}
	return base
}

func rampUpInterpolated(profile scenario.LoadProfile, elapsed time.Duration) float64 {
	if profile.Duration <= 0 {
		return float64(profile.EndRPS)
	}
	frac := elapsed.Seconds() / profile.Duration.Seconds()
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return float64(profile.StartRPS) + (float64(profile.EndRPS)-float64(profile.StartRPS))*frac
}

func spikeRate(profile scenario.LoadProfile, elapsed time.Duration) float64 {
	spikeStart := profile.Duration / 2
	spikeEnd := spikeStart + profile.SpikeDuration
	if elapsed >= spikeStart && elapsed <= spikeEnd {
		return float64(profile.SpikeRPS)
	}
	return float64(profile.BaseRPS)
}

// issueInterval converts a whole-pool target rps into the per-worker
// inter-arrival interval for a pool of size workers, per spec.md §4.4's
// "inter-arrival target = W/rps".
func issueInterval(rps float64, workers int) time.Duration {
	if rps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) * float64(workers) / rps)
}
