// Package metrics exposes detection results as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/assembler-0/cpudetect/internal/cpu"
)

const namespace = "cpudetect"

// DetectFunc produces one detection snapshot.
type DetectFunc func() *cpu.Info

// Collector is a prometheus.Collector that runs a fresh detection on every
// scrape. It also counts and times every detection made through Detect,
// including the ones the HTTP API makes. Safe for concurrent use.
type Collector struct {
	detect DetectFunc

	detections prometheus.Counter
	duration   prometheus.Histogram

	logical  *prometheus.Desc
	physical *prometheus.Desc
	hybrid   *prometheus.Desc
	feature  *prometheus.Desc
	cache    *prometheus.Desc
	info     *prometheus.Desc
}

// NewCollector creates a Collector around detect. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(detect DetectFunc) *Collector {
	return &Collector{
		detect: detect,
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detection passes.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of detection passes in seconds.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}),
		logical: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "logical_processors"),
			"Number of logical processors.", nil, nil),
		physical: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "physical_cores"),
			"Number of physical cores.", nil, nil),
		hybrid: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "hybrid"),
			"1 if the processor mixes performance and efficiency cores.", nil, nil),
		feature: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "feature"),
			"1 for every feature the processor reports.", []string{"name", "category"}, nil),
		cache: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "cache_size_bytes"),
			"Size of each cache level in bytes.", []string{"level", "type"}, nil),
		info: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "info"),
			"Processor identification, always 1.", []string{"vendor", "brand", "family", "model", "stepping"}, nil),
	}
}

// Detect runs one detection pass and records it.
func (c *Collector) Detect() *cpu.Info {
	start := time.Now()
	info := c.detect()
	c.duration.Observe(time.Since(start).Seconds())
	c.detections.Inc()
	return info
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.detections.Describe(ch)
	c.duration.Describe(ch)
	ch <- c.logical
	ch <- c.physical
	ch <- c.hybrid
	ch <- c.feature
	ch <- c.cache
	ch <- c.info
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	info := c.Detect()

	ch <- prometheus.MustNewConstMetric(c.logical, prometheus.GaugeValue, float64(info.Topology.LogicalProcessors))
	ch <- prometheus.MustNewConstMetric(c.physical, prometheus.GaugeValue, float64(info.Topology.PhysicalCores))
	ch <- prometheus.MustNewConstMetric(c.hybrid, prometheus.GaugeValue, boolValue(info.Topology.Hybrid))

	for _, f := range cpu.Features() {
		if info.Features.Has(f.Name) {
			ch <- prometheus.MustNewConstMetric(c.feature, prometheus.GaugeValue, 1, f.Name, f.Category.String())
		}
	}

	// Identical levels (one L2 per core, say) appear once.
	seen := make(map[string]bool)
	for _, cc := range info.Caches {
		level := strconv.Itoa(cc.Level)
		key := level + "/" + cc.Type.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		ch <- prometheus.MustNewConstMetric(c.cache, prometheus.GaugeValue, float64(cc.SizeBytes), level, cc.Type.String())
	}

	v := info.VendorInfo
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1,
		v.Vendor.String(), v.BrandString,
		strconv.FormatUint(uint64(v.Family), 10),
		strconv.FormatUint(uint64(v.Model), 10),
		strconv.FormatUint(uint64(v.Stepping), 10),
	)

	c.detections.Collect(ch)
	c.duration.Collect(ch)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
