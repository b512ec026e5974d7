//go:build linux

package sysinfo

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const procStat = "/proc/stat"

func readCPUTimes() (cpuTimes, error) {
	f, err := os.Open(procStat)
	if err != nil {
		return cpuTimes{}, err
	}
	defer f.Close()
	return parseCPUTimes(f)
}

func cpuUsage(ctx context.Context, interval time.Duration) (float64, error) {
	before, err := readCPUTimes()
	if err != nil {
		return 0, fmt.Errorf("sample cpu: %w", err)
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}
	after, err := readCPUTimes()
	if err != nil {
		return 0, fmt.Errorf("sample cpu: %w", err)
	}
	return usagePercent(before, after), nil
}

func memory() (total, used uint64, err error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	total = uint64(si.Totalram) * unit
	free := (uint64(si.Freeram) + uint64(si.Bufferram)) * unit
	if free > total {
		free = total
	}
	return total, total - free, nil
}
