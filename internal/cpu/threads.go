package cpu

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OptimalThreadCount returns the recommended number of worker threads for
// the given topology. It prefers performance cores when the processors
// have been classified, otherwise physical cores, honours the container's
// cgroup CPU quota, and leaves one thread free for OS bookkeeping.
func OptimalThreadCount(t Topology) int {
	return optimalThreadCount(t, hostCPULimit())
}

func optimalThreadCount(t Topology, limit int) int {
	cores := t.PerformanceCores
	if cores <= 0 {
		cores = t.PhysicalCores
	}
	if limit > 0 && limit < cores {
		cores = limit
	}
	if cores > 2 {
		return cores - 1
	}
	if cores < 1 {
		return 1
	}
	return cores
}

// cgroupCPULimit returns the effective CPU count from the cgroup CPU quota
// under root, or 0 if no limit is set or it cannot be determined.
// Supports both cgroup v2 (root/cpu.max) and cgroup v1
// (root/cpu/cpu.cfs_quota_us).
func cgroupCPULimit(root string) int {
	// --- cgroup v2 ---
	// cpu.max: "<quota> <period>" or "max <period>"
	if data, err := os.ReadFile(filepath.Join(root, "cpu.max")); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 2 && fields[0] != "max" {
			if n := quotaCPUs(fields[0], fields[1]); n > 0 {
				return n
			}
		}
	}

	// --- cgroup v1 ---
	quota, e1 := os.ReadFile(filepath.Join(root, "cpu", "cpu.cfs_quota_us"))
	period, e2 := os.ReadFile(filepath.Join(root, "cpu", "cpu.cfs_period_us"))
	if e1 == nil && e2 == nil {
		return quotaCPUs(strings.TrimSpace(string(quota)), strings.TrimSpace(string(period)))
	}

	return 0 // no limit
}

// quotaCPUs converts a quota/period pair to whole CPUs, rounding down but
// never below one. A negative quota (v1 "unlimited") yields 0.
func quotaCPUs(quotaStr, periodStr string) int {
	quota, e1 := strconv.ParseFloat(quotaStr, 64)
	period, e2 := strconv.ParseFloat(periodStr, 64)
	if e1 != nil || e2 != nil || quota <= 0 || period <= 0 {
		return 0
	}
	n := int(quota / period)
	if n < 1 {
		n = 1
	}
	return n
}
