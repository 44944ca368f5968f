package utils

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

func CheckCPUUsage(maxCPUUsage float64) (bool, float64) {
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		return false, 0
	}
	return usage[0] <= maxCPUUsage, usage[0]
}

// WaitForCPU blocks until CPU usage drops to maxCPUUsage or ctx ends. A
// non-positive limit disables the gate.
func WaitForCPU(ctx context.Context, maxCPUUsage float64, interval time.Duration) error {
	if maxCPUUsage <= 0 {
		return nil
	}
	for {
		if ok, _ := CheckCPUUsage(maxCPUUsage); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
