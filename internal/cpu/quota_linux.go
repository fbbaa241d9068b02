//go:build linux

package cpu

// hostCPULimit reads the quota of the cgroup the process runs in. On a
// container this is the number of CPUs it actually has access to, not the
// host machine's full core count.
func hostCPULimit() int {
	return cgroupCPULimit("/sys/fs/cgroup")
}
