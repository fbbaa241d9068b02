//go:build !linux

package affinity

import "context"

func allowed() ([]int, error) {
	return nil, ErrUnsupported
}

func each(context.Context, []int, int, Func) error {
	return ErrUnsupported
}
