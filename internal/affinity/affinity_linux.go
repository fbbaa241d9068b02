//go:build linux

package affinity

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// maxCPUs is the size of unix.CPUSet in bits.
const maxCPUs = len(unix.CPUSet{}) * 64

func allowed() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("sched_getaffinity: %w", err)
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < maxCPUs; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}

func each(ctx context.Context, cpus []int, limit int, fn Func) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, cpu := range cpus {
		cpu := cpu
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return pinned(gctx, cpu, fn)
		})
	}
	return g.Wait()
}

// pinned runs fn on a locked OS thread bound to cpu. The thread is left
// locked when the goroutine exits, so the runtime discards it instead of
// handing a pinned thread to other goroutines.
func pinned(ctx context.Context, cpu int, fn Func) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	return fn(ctx, cpu)
}
