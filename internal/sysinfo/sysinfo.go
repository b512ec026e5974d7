// Package sysinfo reports a coarse CPU and memory snapshot of the host.
package sysinfo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SampleInterval is the gap between the two CPU samples of a snapshot.
const SampleInterval = 200 * time.Millisecond

// Info is a point-in-time host snapshot.
type Info struct {
	CPUCount      int     `json:"cpuCount"`
	CPUUsage      float64 `json:"cpuUsage"`
	MemoryTotalMB uint64  `json:"memoryTotalMb"`
	MemoryUsedMB  uint64  `json:"memoryUsedMb"`
}

// cpuTimes holds aggregate jiffies from the first line of /proc/stat.
type cpuTimes struct {
	idle  uint64
	total uint64
}

// Snapshot samples CPU usage over SampleInterval and reads memory totals.
// Platforms without the needed sources report only the CPU count.
func Snapshot(ctx context.Context) (Info, error) {
	info := Info{CPUCount: runtime.NumCPU()}
	usage, err := cpuUsage(ctx, SampleInterval)
	if err != nil {
		return info, err
	}
	info.CPUUsage = usage
	total, used, err := memory()
	if err != nil {
		return info, err
	}
	info.MemoryTotalMB = total / (1024 * 1024)
	info.MemoryUsedMB = used / (1024 * 1024)
	return info, nil
}

func parseCPUTimes(r io.Reader) (cpuTimes, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t cpuTimes
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return cpuTimes{}, fmt.Errorf("parse cpu field %d: %w", i, err)
			}
			// guest and guest_nice are already counted in user and nice.
			if i >= 8 {
				break
			}
			t.total += v
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		return t, nil
	}
	if err := scanner.Err(); err != nil {
		return cpuTimes{}, err
	}
	return cpuTimes{}, fmt.Errorf("aggregate cpu line not found")
}

func usagePercent(before, after cpuTimes) float64 {
	if after.total <= before.total {
		return 0
	}
	total := float64(after.total - before.total)
	idle := float64(after.idle - before.idle)
	busy := (total - idle) / total * 100
	if busy < 0 {
		return 0
	}
	return busy
}
