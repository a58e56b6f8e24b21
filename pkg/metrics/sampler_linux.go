//go:build linux

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"
)

// procfsSampler is the POSIX path from spec.md §4.2: CPU from two reads of
// /proc/stat at least 100ms apart using the idle-vs-total ratio, memory from
// /proc/meminfo, network from /proc/net/dev.
type procfsSampler struct {
	fs   procfs.FS
	bdfs blockdevice.FS
}

func newPlatformSampler() pointSampler {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return &zeroSampler{reason: fmt.Sprintf("procfs unavailable: %v", err)}
	}
	bdfs, _ := blockdevice.NewDefaultFS()
	return &procfsSampler{fs: fs, bdfs: bdfs}
}

func (s *procfsSampler) Sample() (PointSample, error) {
	var out PointSample
	var firstErr error

	cpuPct, err := s.cpuPercent()
	if err != nil {
		firstErr = err
	} else {
		out.CPUPercent = cpuPct
	}

	if mem, err := s.fs.Meminfo(); err == nil {
		if mem.MemTotal != nil {
			out.MemTotalByte = *mem.MemTotal * 1024
		}
		if mem.MemAvailable != nil {
			out.MemAvailableByte = *mem.MemAvailable * 1024
		} else if mem.MemFree != nil {
			out.MemAvailableByte = *mem.MemFree * 1024
		}
		if out.MemTotalByte > 0 {
			used := out.MemTotalByte - out.MemAvailableByte
			out.MemPercent = float64(used) / float64(out.MemTotalByte) * 100
		}
	} else if firstErr == nil {
		firstErr = err
	}

	if netDev, err := s.fs.NetDev(); err == nil {
		for _, line := range netDev {
			out.NetBytesSent += line.TxBytes
			out.NetBytesRecv += line.RxBytes
		}
	} else if firstErr == nil {
		firstErr = err
	}

	if busy, err := s.diskBusyPercent(); err == nil {
		out.DiskBusyPercent = busy
	}

	return out, firstErr
}

// cpuPercent reads /proc/stat twice at least 100ms apart and computes the
// idle-vs-total ratio, per spec.md §4.2.
func (s *procfsSampler) cpuPercent() (float64, error) {
	first, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}
	time.Sleep(110 * time.Millisecond)
	second, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}

	deltaIdle := cpuTotalIdle(second.CPUTotal) - cpuTotalIdle(first.CPUTotal)
	deltaTotal := cpuTotalAll(second.CPUTotal) - cpuTotalAll(first.CPUTotal)
	if deltaTotal <= 0 {
		return 0, nil
	}
	busy := deltaTotal - deltaIdle
	return busy / deltaTotal * 100, nil
}

func cpuTotalIdle(c procfs.CPUStat) float64 {
	return c.Idle + c.Iowait
}

func cpuTotalAll(c procfs.CPUStat) float64 {
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
}

// diskBusyPercent approximates disk utilization from two /proc/diskstats
// reads' IO-time-in-progress delta. Degrades to zero if diskstats can't be
// read, per the "never propagate" rule in spec.md §4.2.
func (s *procfsSampler) diskBusyPercent() (float64, error) {
	first, err := s.bdfs.ProcDiskstats()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	time.Sleep(100 * time.Millisecond)
	second, err := s.bdfs.ProcDiskstats()
	if err != nil {
		return 0, err
	}
	elapsedMs := float64(time.Since(start).Milliseconds())
	if elapsedMs <= 0 {
		return 0, nil
	}

	byName := make(map[string]uint64, len(first))
	for _, d := range first {
		byName[d.DeviceName] = d.IOsTotalTicks
	}
	var deltaTicks uint64
	for _, d := range second {
		if prev, ok := byName[d.DeviceName]; ok && d.IOsTotalTicks >= prev {
			deltaTicks += d.IOsTotalTicks - prev
		}
	}
	pct := float64(deltaTicks) / elapsedMs * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}
