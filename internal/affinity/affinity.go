// Package affinity runs work pinned to individual logical processors.
// It exists for the one query that only describes the processor it runs
// on: the hybrid core type of leaf 0x1A.
package affinity

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on operating systems without thread affinity
// control.
var ErrUnsupported = errors.New("processor affinity is not supported on this platform")

// Func is called once per processor while the calling OS thread is
// pinned to it.
type Func func(ctx context.Context, cpu int) error

// Allowed returns the logical processors the process may run on, in
// ascending order.
func Allowed() ([]int, error) {
	return allowed()
}

// Each calls fn for every allowed processor, at most limit at a time
// (no limit when limit <= 0). Each call runs on its own locked OS thread
// pinned to that processor. The first error cancels the remaining calls
// and is returned.
func Each(ctx context.Context, limit int, fn Func) error {
	cpus, err := Allowed()
	if err != nil {
		return err
	}
	return each(ctx, cpus, limit, fn)
}
