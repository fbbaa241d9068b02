// Package cpu decodes the raw CPUID leaves of an x86-64 processor into a
// structured model: vendor, feature flags, core/thread topology and the
// cache hierarchy. Detection is best-effort: a leaf the processor does not
// implement makes the corresponding fact absent or defaulted, it never
// produces an error.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// Info is the full snapshot produced by one detection pass. Nothing in it
// is modified after Detect returns, so it can be shared freely.
type Info struct {
	VendorInfo `json:"vendor" yaml:"vendor"`

	Features  FeatureSet   `json:"features" yaml:"features"`
	Topology  Topology     `json:"topology" yaml:"topology"`
	Caches    []Cache      `json:"caches" yaml:"caches"`
	TLBs      []TLB        `json:"tlbs" yaml:"tlbs"`
	Address   AddressSizes `json:"address_sizes" yaml:"address_sizes"`
	Frequency Frequency    `json:"frequency" yaml:"frequency"`
}

// pass is the state of a single detection: its private leaf cache and
// the vendor, decoded once and consulted by every resolver.
type pass struct {
	leaves *cpuid.Cache
	vendor Vendor
	log    *slog.Logger
}

func newPass(q cpuid.Querier) *pass {
	leaves := cpuid.NewCache(q)
	p := &pass{
		leaves: leaves,
		vendor: vendorOf(leaves),
		log:    slog.Default().With("component", "cpu"),
	}
	p.log.Debug("detection pass",
		"vendor", p.vendor,
		"max_leaf", hex(leaves.MaxLeaf()),
		"max_extended_leaf", hex(leaves.MaxExtendedLeaf()),
	)
	return p
}

// lookup wraps cpuid.Cache.Lookup with a debug line for unsupported leaves.
func (p *pass) lookup(leaf, subleaf uint32) (cpuid.Result, bool) {
	r, ok := p.leaves.Lookup(leaf, subleaf)
	if !ok {
		p.log.Debug("leaf unsupported", "leaf", hex(leaf), "subleaf", subleaf)
	}
	return r, ok
}

// Detect runs a full detection pass against the processor the calling
// goroutine is currently running on. Hybrid core-type classification in
// the result covers that processor only; see ClassifyCores.
func Detect() *Info {
	return DetectWith(cpuid.Host)
}

// DetectWith runs a full detection pass against q, which may be the host
// processor or a replayed capture.
func DetectWith(q cpuid.Querier) *Info {
	p := newPass(q)
	features := p.features()
	info := &Info{
		VendorInfo: p.vendorInfo(),
		Features:   features,
		Topology:   p.topology(features),
		Caches:     p.caches(features),
		TLBs:       p.tlbs(),
		Address:    p.addressSizes(),
		Frequency:  p.frequency(),
	}
	p.log.Debug("detection complete", "queries", p.leaves.Len())
	return info
}

// DetectVendor decodes only the vendor information of the host processor.
func DetectVendor() VendorInfo { return DetectVendorWith(cpuid.Host) }

// DetectVendorWith decodes only the vendor information from q.
func DetectVendorWith(q cpuid.Querier) VendorInfo { return newPass(q).vendorInfo() }

// DetectFeatures decodes only the feature set of the host processor.
func DetectFeatures() FeatureSet { return DetectFeaturesWith(cpuid.Host) }

// DetectFeaturesWith decodes only the feature set from q.
func DetectFeaturesWith(q cpuid.Querier) FeatureSet { return newPass(q).features() }

// DetectTopology resolves only the topology of the host processor.
func DetectTopology() Topology { return DetectTopologyWith(cpuid.Host) }

// DetectTopologyWith resolves only the topology from q.
func DetectTopologyWith(q cpuid.Querier) Topology {
	p := newPass(q)
	return p.topology(p.features())
}

// DetectCaches walks the cache hierarchy of the host processor.
func DetectCaches() []Cache { return DetectCachesWith(cpuid.Host) }

// DetectCachesWith walks the cache hierarchy recorded in q.
func DetectCachesWith(q cpuid.Querier) []Cache {
	p := newPass(q)
	return p.caches(p.features())
}

// hex logs a leaf number the way the vendor manuals write it.
type hex uint32

func (h hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%#x", uint32(h)))
}
