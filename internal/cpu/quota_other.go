//go:build !linux

package cpu

// hostCPULimit reports no limit: cgroups are Linux-only.
func hostCPULimit() int {
	return 0
}
