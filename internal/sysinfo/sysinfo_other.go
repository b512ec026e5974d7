//go:build !linux

package sysinfo

import (
	"context"
	"time"
)

func cpuUsage(context.Context, time.Duration) (float64, error) {
	return 0, nil
}

func memory() (uint64, uint64, error) {
	return 0, 0, nil
}
