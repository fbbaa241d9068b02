package cpu

import "github.com/assembler-0/cpudetect/internal/cpuid"

// CoreType is the microarchitecture class reported by leaf 0x1A.
type CoreType uint8

const (
	CoreTypeUnknown     CoreType = 0
	CoreTypeEfficiency  CoreType = 0x20
	CoreTypePerformance CoreType = 0x40
)

func (c CoreType) String() string {
	switch c {
	case CoreTypePerformance:
		return "performance"
	case CoreTypeEfficiency:
		return "efficiency"
	}
	return "unknown"
}

// MarshalText renders the core type by name in JSON and YAML output.
func (c CoreType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// LevelType is the domain type of one extended-topology sub-leaf.
type LevelType uint8

const (
	LevelInvalid LevelType = iota
	LevelSMT
	LevelCore
	LevelModule
	LevelTile
	LevelDie
)

func (l LevelType) String() string {
	switch l {
	case LevelSMT:
		return "SMT"
	case LevelCore:
		return "Core"
	case LevelModule:
		return "Module"
	case LevelTile:
		return "Tile"
	case LevelDie:
		return "Die"
	case LevelInvalid:
		return "Invalid"
	}
	return "Reserved"
}

// MarshalText renders the level type by name in JSON and YAML output.
func (l LevelType) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// TopologyLevel is one sub-leaf of leaf 0x1F or 0xB.
type TopologyLevel struct {
	Type LevelType `json:"type" yaml:"type"`

	// LogicalProcessors counts every logical processor at this level,
	// lower levels included.
	LogicalProcessors int `json:"logical_processors" yaml:"logical_processors"`

	// ShiftBits is the x2APIC ID shift to the next level up.
	ShiftBits uint32 `json:"shift_bits" yaml:"shift_bits"`
}

// TopologySource records which leaves the counts were derived from.
type TopologySource int

const (
	SourceDefault TopologySource = iota
	SourceLeaf1F
	SourceLeafB
	SourceAMD
	SourceIntelLegacy
)

func (s TopologySource) String() string {
	switch s {
	case SourceLeaf1F:
		return "leaf 0x1f"
	case SourceLeafB:
		return "leaf 0xb"
	case SourceAMD:
		return "leaf 0x80000008"
	case SourceIntelLegacy:
		return "leaf 4"
	}
	return "default"
}

// MarshalText renders the source by name in JSON and YAML output.
func (s TopologySource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Topology describes the core and thread layout of the package.
// LogicalProcessors >= PhysicalCores >= 1 always holds.
type Topology struct {
	// LogicalProcessors is the number of hardware threads.
	LogicalProcessors int `json:"logical_processors" yaml:"logical_processors"`

	// PhysicalCores is the number of cores, each running ThreadsPerCore
	// hardware threads.
	PhysicalCores int `json:"physical_cores" yaml:"physical_cores"`

	ThreadsPerCore int `json:"threads_per_core" yaml:"threads_per_core"`

	// Hyperthreading is LogicalProcessors > PhysicalCores.
	Hyperthreading bool `json:"hyperthreading" yaml:"hyperthreading"`

	// Hybrid is set when leaf 7 reports the HYBRID bit and leaf 0x1A
	// reports a core type, i.e. the package mixes performance and
	// efficiency cores.
	Hybrid bool `json:"hybrid" yaml:"hybrid"`

	// CoreType and NativeModelID describe the processor the pass ran on.
	// Only that one processor is classified; ClassifyCores covers the rest.
	CoreType      CoreType `json:"core_type" yaml:"core_type"`
	NativeModelID uint32   `json:"native_model_id" yaml:"native_model_id"`

	// PerformanceCores and EfficiencyCores count logical processors per
	// core type. They are only filled by WithCoreAssignments.
	PerformanceCores int `json:"performance_cores" yaml:"performance_cores"`
	EfficiencyCores  int `json:"efficiency_cores" yaml:"efficiency_cores"`

	// Cores is the per-processor classification from ClassifyCores.
	Cores []CoreAssignment `json:"cores,omitempty" yaml:"cores,omitempty"`

	// Levels lists the extended-topology levels, lowest first.
	Levels []TopologyLevel `json:"levels,omitempty" yaml:"levels,omitempty"`

	Source TopologySource `json:"source" yaml:"source"`
}

// defaultTopology is the degraded result for processors that describe
// nothing about their layout.
func defaultTopology() Topology {
	return Topology{LogicalProcessors: 1, PhysicalCores: 1, ThreadsPerCore: 1}
}

// maxTopologyLevels bounds the sub-leaf walk of 0x1F/0xB.
const maxTopologyLevels = 16

func (p *pass) topology(features FeatureSet) Topology {
	t, ok := p.extendedTopology()
	if !ok {
		switch p.vendor.style() {
		case styleAMD:
			t, ok = p.amdTopology(features)
		case styleIntel:
			t, ok = p.intelLegacyTopology()
		}
	}
	if !ok {
		t = defaultTopology()
	}

	if t.PhysicalCores < 1 {
		t.PhysicalCores = 1
	}
	if t.LogicalProcessors < t.PhysicalCores {
		t.LogicalProcessors = t.PhysicalCores
	}
	t.ThreadsPerCore = t.LogicalProcessors / t.PhysicalCores
	t.Hyperthreading = t.LogicalProcessors > t.PhysicalCores

	if p.vendor.style() == styleIntel {
		if r, ok := p.lookup(0x1A, 0); ok {
			t.CoreType = CoreType(r.Bits(cpuid.EAX, 24, 31))
			t.NativeModelID = r.Bits(cpuid.EAX, 0, 23)
			t.Hybrid = t.CoreType != CoreTypeUnknown && features.Has("HYBRID")
		}
	}

	p.log.Debug("topology resolved",
		"source", t.Source,
		"logical", t.LogicalProcessors,
		"physical", t.PhysicalCores,
		"hybrid", t.Hybrid,
	)
	return t
}

// extendedTopology walks leaf 0x1F, or 0xB when 0x1F is absent, until a
// sub-leaf reports level type 0. Each level's count already includes
// the levels below it, so the last level holds the package total.
func (p *pass) extendedTopology() (Topology, bool) {
	for _, leaf := range []uint32{0x1F, 0xB} {
		first, ok := p.lookup(leaf, 0)
		if !ok || first.Bits(cpuid.ECX, 8, 15) == 0 {
			continue
		}

		var t Topology
		smt := 0
		for sub := uint32(0); sub < maxTopologyLevels; sub++ {
			r := p.leaves.Get(leaf, sub)
			typ := LevelType(r.Bits(cpuid.ECX, 8, 15))
			if typ == LevelInvalid {
				break
			}
			lvl := TopologyLevel{
				Type:              typ,
				LogicalProcessors: int(r.Bits(cpuid.EBX, 0, 15)),
				ShiftBits:         r.Bits(cpuid.EAX, 0, 4),
			}
			t.Levels = append(t.Levels, lvl)
			if typ == LevelSMT {
				smt = lvl.LogicalProcessors
			}
			t.LogicalProcessors = lvl.LogicalProcessors
		}
		if t.LogicalProcessors == 0 {
			// Some hypervisors publish the levels but zero the counts.
			p.log.Debug("extended topology has no counts", "leaf", hex(leaf))
			continue
		}

		t.PhysicalCores = t.LogicalProcessors
		if smt > 0 {
			t.PhysicalCores = t.LogicalProcessors / smt
		}
		t.Source = SourceLeafB
		if leaf == 0x1F {
			t.Source = SourceLeaf1F
		}
		return t, true
	}
	return Topology{}, false
}

// amdTopology uses the NC field of 0x80000008 ECX, which counts the
// threads in the package minus one. With topology extensions, 0x8000001E
// EBX[15:8] gives the threads per compute unit.
func (p *pass) amdTopology(features FeatureSet) (Topology, bool) {
	r, ok := p.lookup(0x80000008, 0)
	if !ok {
		return Topology{}, false
	}
	logical := int(r.Bits(cpuid.ECX, 0, 7)) + 1
	if n := p.legacyLogicalCount(); n > logical {
		logical = n
	}

	threadsPerCore := 1
	if features.Has("TOPOEXT") {
		if e, ok := p.lookup(0x8000001E, 0); ok {
			threadsPerCore = int(e.Bits(cpuid.EBX, 8, 15)) + 1
		}
	}

	return Topology{
		LogicalProcessors: logical,
		PhysicalCores:     logical / threadsPerCore,
		Source:            SourceAMD,
	}, true
}

// intelLegacyTopology reads the cores-per-package field of leaf 4
// sub-leaf 0, EAX[31:26] plus one, together with leaf 1's logical count.
func (p *pass) intelLegacyTopology() (Topology, bool) {
	r, ok := p.lookup(4, 0)
	if !ok || r.Bits(cpuid.EAX, 0, 4) == 0 {
		return Topology{}, false
	}
	cores := int(r.Bits(cpuid.EAX, 26, 31)) + 1
	logical := p.legacyLogicalCount()
	if logical < cores {
		logical = cores
	}
	return Topology{
		LogicalProcessors: logical,
		PhysicalCores:     cores,
		Source:            SourceIntelLegacy,
	}, true
}

// legacyLogicalCount returns leaf 1 EBX[23:16], which is only valid when
// the HTT bit (EDX bit 28) is set. Otherwise the package has one thread.
func (p *pass) legacyLogicalCount() int {
	r, ok := p.lookup(1, 0)
	if !ok || !r.IsBitSet(cpuid.EDX, 28) {
		return 1
	}
	return int(r.Bits(cpuid.EBX, 16, 23))
}

// WithCoreAssignments returns a copy of t carrying the per-processor
// classification and the resulting core-type counts.
func (t Topology) WithCoreAssignments(cores []CoreAssignment) Topology {
	out := t
	out.Cores = append([]CoreAssignment(nil), cores...)
	out.PerformanceCores, out.EfficiencyCores = 0, 0
	for _, c := range cores {
		switch c.Type {
		case CoreTypePerformance:
			out.PerformanceCores++
		case CoreTypeEfficiency:
			out.EfficiencyCores++
		}
	}
	if out.PerformanceCores > 0 && out.EfficiencyCores > 0 {
		out.Hybrid = true
	}
	return out
}
