//go:build linux

package affinity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAllowed(t *testing.T) {
	cpus, err := Allowed()
	require.NoError(t, err)
	require.NotEmpty(t, cpus)

	for i := 1; i < len(cpus); i++ {
		assert.Less(t, cpus[i-1], cpus[i], "ascending")
	}
}

func TestEachPinsToEveryProcessor(t *testing.T) {
	cpus, err := Allowed()
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[int]bool)
	err = Each(context.Background(), 4, func(_ context.Context, cpu int) error {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		seen[cpu] = set.Count() == 1 && set.IsSet(cpu)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, seen, len(cpus))
	for cpu, ok := range seen {
		assert.True(t, ok, "cpu %d not pinned", cpu)
	}
}

func TestEachStopsOnError(t *testing.T) {
	cpus, err := Allowed()
	require.NoError(t, err)
	first := cpus[0]

	boom := errors.New("boom")
	err = each(context.Background(), []int{first, first, first}, 1, func(context.Context, int) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestEachHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := each(ctx, []int{0}, 0, func(context.Context, int) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
