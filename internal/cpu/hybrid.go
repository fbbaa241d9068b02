package cpu

import (
	"context"
	"sort"
	"sync"

	"github.com/assembler-0/cpudetect/internal/affinity"
	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// CoreAssignment is the leaf 0x1A classification of one logical processor.
type CoreAssignment struct {
	CPU           int      `json:"cpu" yaml:"cpu"`
	Type          CoreType `json:"type" yaml:"type"`
	NativeModelID uint32   `json:"native_model_id" yaml:"native_model_id"`
}

// eachFunc matches affinity.Each so tests can substitute it.
type eachFunc func(ctx context.Context, limit int, fn affinity.Func) error

// ClassifyCores pins a thread to every processor the process may run on
// and reads leaf 0x1A there. Non-hybrid processors come back as
// CoreTypeUnknown. On platforms without affinity control it returns
// affinity.ErrUnsupported and the caller keeps the current-processor
// result of Detect.
func ClassifyCores(ctx context.Context) ([]CoreAssignment, error) {
	return classifyCores(ctx, affinity.Each, cpuid.Host)
}

func classifyCores(ctx context.Context, each eachFunc, q cpuid.Querier) ([]CoreAssignment, error) {
	var (
		mu  sync.Mutex
		out []CoreAssignment
	)
	err := each(ctx, 0, func(_ context.Context, cpu int) error {
		// A fresh pass per processor: the leaf values differ by core.
		p := newPass(q)
		a := CoreAssignment{CPU: cpu}
		if p.vendor.style() == styleIntel {
			if r, ok := p.leaves.Lookup(0x1A, 0); ok {
				a.Type = CoreType(r.Bits(cpuid.EAX, 24, 31))
				a.NativeModelID = r.Bits(cpuid.EAX, 0, 23)
			}
		}
		mu.Lock()
		out = append(out, a)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CPU < out[j].CPU })
	return out, nil
}
