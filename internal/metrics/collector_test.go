package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assembler-0/cpudetect/internal/cpu"
	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// coffeeLake is a four-core, eight-thread Intel part without leaf 0xB.
func coffeeLake() cpuid.Leaves {
	return cpuid.Leaves{}.
		Set(0, 0, cpuid.Result{EAX: 7, EBX: 0x756e6547, EDX: 0x49656e69, ECX: 0x6c65746e}).
		Set(1, 0, cpuid.Result{
			EAX: 0x906EA,
			EBX: 8 << 16,
			ECX: 1<<20 | 1<<23 | 1<<27 | 1<<28,
			EDX: 1<<26 | 1<<28,
		}).
		Set(4, 0, cpuid.Result{EAX: 3<<26 | 1<<14 | 1<<5 | 1, EBX: 7<<22 | 63, ECX: 63}).
		Set(4, 1, cpuid.Result{EAX: 3<<26 | 1<<14 | 1<<5 | 2, EBX: 7<<22 | 63, ECX: 63}).
		Set(4, 2, cpuid.Result{EAX: 3<<26 | 1<<14 | 1<<5 | 2, EBX: 7<<22 | 63, ECX: 63}).
		Set(7, 0, cpuid.Result{EBX: 1 << 5})
}

func newTestCollector() *Collector {
	return NewCollector(func() *cpu.Info { return cpu.DetectWith(coffeeLake()) })
}

// gauges flattens the gathered families to "name{k=v,...}" -> value.
func gauges(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollectorGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(newTestCollector()))

	got := gauges(t, reg)
	assert.Equal(t, 8.0, got["cpudetect_logical_processors"])
	assert.Equal(t, 4.0, got["cpudetect_physical_cores"])
	assert.Equal(t, 0.0, got["cpudetect_hybrid"])
	assert.Equal(t, 1.0, got["cpudetect_feature{category=SIMD,name=AVX2}"])
	assert.Equal(t, 1.0, got["cpudetect_feature{category=Performance,name=POPCNT}"])
	assert.Equal(t, 32768.0, got["cpudetect_cache_size_bytes{level=1,type=Data}"])
	assert.Equal(t, 1.0, got["cpudetect_info{brand=,family=6,model=158,stepping=10,vendor=Intel}"])
	assert.Equal(t, 1.0, got["cpudetect_detections_total"])

	_, ok := got["cpudetect_feature{category=SIMD,name=AVX512F}"]
	assert.False(t, ok, "absent features are not exported")
}

func TestCollectorDeduplicatesCacheLevels(t *testing.T) {
	c := newTestCollector()
	// The repeated L1 instruction sub-leaf collapses into one series.
	assert.Equal(t, 2, testutil.CollectAndCount(c, "cpudetect_cache_size_bytes"))
}

func TestCollectorCountsDetections(t *testing.T) {
	c := newTestCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	c.Detect()
	c.Detect()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.detections))

	got := gauges(t, reg)
	assert.Equal(t, 3.0, got["cpudetect_detections_total"], "the scrape itself detects once")
	assert.Equal(t, 3.0, got["cpudetect_detection_duration_seconds"])
}

func TestCollectorLint(t *testing.T) {
	problems, err := testutil.CollectAndLint(newTestCollector())
	require.NoError(t, err)
	assert.Empty(t, problems)
}
