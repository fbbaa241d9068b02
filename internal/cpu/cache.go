package cpu

import (
	"fmt"

	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// CacheType is the kind of data a cache holds.
type CacheType uint8

const (
	CacheNull CacheType = iota
	CacheData
	CacheInstruction
	CacheUnified
)

func (t CacheType) String() string {
	switch t {
	case CacheData:
		return "Data"
	case CacheInstruction:
		return "Instruction"
	case CacheUnified:
		return "Unified"
	}
	return "Null"
}

// MarshalText renders the cache type by name in JSON and YAML output.
func (t CacheType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// WaysFullyAssociative is the Ways value of a fully associative cache.
const WaysFullyAssociative uint32 = 0xFFFFFFFF

// Cache describes one level of the cache hierarchy.
type Cache struct {
	Level     int       `json:"level" yaml:"level"`
	Type      CacheType `json:"type" yaml:"type"`
	SizeBytes uint64    `json:"size_bytes" yaml:"size_bytes"`
	LineSize  uint32    `json:"line_size" yaml:"line_size"`

	// Ways is the associativity, or WaysFullyAssociative.
	Ways       uint32 `json:"ways" yaml:"ways"`
	Partitions uint32 `json:"partitions" yaml:"partitions"`
	Sets       uint32 `json:"sets" yaml:"sets"`

	// SharedBy is the maximum number of logical processors sharing
	// this cache.
	SharedBy  uint32 `json:"shared_by" yaml:"shared_by"`
	Inclusive bool   `json:"inclusive" yaml:"inclusive"`
}

// FullyAssociative reports whether any line can be placed in any way.
func (c Cache) FullyAssociative() bool {
	return c.Ways == WaysFullyAssociative
}

// Name returns the conventional short name: L1d, L1i, L2, L3.
func (c Cache) Name() string {
	switch c.Type {
	case CacheData:
		return fmt.Sprintf("L%dd", c.Level)
	case CacheInstruction:
		return fmt.Sprintf("L%di", c.Level)
	}
	return fmt.Sprintf("L%d", c.Level)
}

// maxCacheSubleaves bounds the deterministic-cache walk.
const maxCacheSubleaves = 32

// caches dispatches on vendor style: leaf 4 for Intel-style parts,
// 0x8000001D for AMD-style parts with topology extensions, and the
// legacy 0x80000005/0x80000006 descriptors for older AMD parts.
// Unknown vendors get the leaf 4 walk.
func (p *pass) caches(features FeatureSet) []Cache {
	switch p.vendor.style() {
	case styleAMD:
		if features.Has("TOPOEXT") {
			if c := p.deterministicCaches(0x8000001D); len(c) > 0 {
				return c
			}
		}
		return p.amdLegacyCaches()
	}
	return p.deterministicCaches(4)
}

// deterministicCaches walks the sub-leaves of leaf until one reports
// cache type null. The list keeps enumeration order.
func (p *pass) deterministicCaches(leaf uint32) []Cache {
	if _, ok := p.lookup(leaf, 0); !ok {
		return nil
	}
	var out []Cache
	for sub := uint32(0); sub < maxCacheSubleaves; sub++ {
		c := decodeCacheLeaf(p.leaves.Get(leaf, sub))
		if c.Type == CacheNull {
			p.log.Debug("cache walk terminated", "leaf", hex(leaf), "subleaf", sub)
			break
		}
		out = append(out, c)
	}
	return out
}

// decodeCacheLeaf decodes one sub-leaf of leaf 4 or 0x8000001D. Every
// geometry field is stored minus one.
func decodeCacheLeaf(r cpuid.Result) Cache {
	typ := r.Bits(cpuid.EAX, 0, 4)
	if typ == 0 || typ > 3 {
		return Cache{}
	}
	ways := r.Bits(cpuid.EBX, 22, 31) + 1
	partitions := r.Bits(cpuid.EBX, 12, 21) + 1
	line := r.Bits(cpuid.EBX, 0, 11) + 1
	sets := r.ECX + 1

	c := Cache{
		Level:      int(r.Bits(cpuid.EAX, 5, 7)),
		Type:       CacheType(typ),
		SizeBytes:  uint64(ways) * uint64(partitions) * uint64(line) * uint64(sets),
		LineSize:   line,
		Ways:       ways,
		Partitions: partitions,
		Sets:       sets,
		SharedBy:   r.Bits(cpuid.EAX, 14, 25) + 1,
		Inclusive:  r.IsBitSet(cpuid.EDX, 1),
	}
	if r.IsBitSet(cpuid.EAX, 9) || r.Bits(cpuid.EBX, 22, 31) == 0x3FF {
		c.Ways = WaysFullyAssociative
	}
	return c
}

// amdLegacyCaches decodes 0x80000005 (L1, sizes in KB, raw way counts)
// and 0x80000006 (L2 in KB, L3 in 512 KB units, encoded way counts).
func (p *pass) amdLegacyCaches() []Cache {
	var out []Cache
	if r, ok := p.lookup(0x80000005, 0); ok {
		for _, d := range []struct {
			reg cpuid.Register
			typ CacheType
		}{{cpuid.ECX, CacheData}, {cpuid.EDX, CacheInstruction}} {
			size := uint64(r.Bits(d.reg, 24, 31)) * 1024
			ways := r.Bits(d.reg, 16, 23)
			if ways == 0xFF {
				ways = WaysFullyAssociative
			}
			if c, ok := legacyCache(1, d.typ, size, ways, r.Bits(d.reg, 0, 7)); ok {
				out = append(out, c)
			}
		}
	}
	if r, ok := p.lookup(0x80000006, 0); ok {
		l2 := uint64(r.Bits(cpuid.ECX, 16, 31)) * 1024
		if c, ok := legacyCache(2, CacheUnified, l2, amdAssociativity(r.Bits(cpuid.ECX, 12, 15)), r.Bits(cpuid.ECX, 0, 7)); ok {
			out = append(out, c)
		}
		l3 := uint64(r.Bits(cpuid.EDX, 18, 31)) * 512 * 1024
		if c, ok := legacyCache(3, CacheUnified, l3, amdAssociativity(r.Bits(cpuid.EDX, 12, 15)), r.Bits(cpuid.EDX, 0, 7)); ok {
			out = append(out, c)
		}
	}
	return out
}

func legacyCache(level int, typ CacheType, size uint64, ways, line uint32) (Cache, bool) {
	if size == 0 || ways == 0 {
		return Cache{}, false
	}
	c := Cache{
		Level:      level,
		Type:       typ,
		SizeBytes:  size,
		LineSize:   line,
		Ways:       ways,
		Partitions: 1,
		SharedBy:   1,
	}
	switch {
	case line == 0:
	case ways == WaysFullyAssociative:
		c.Sets = 1
	default:
		c.Sets = uint32(size / (uint64(ways) * uint64(line)))
	}
	return c, true
}

// amdAssociativity expands the 4-bit associativity code of 0x80000006.
// 0 means the cache or TLB is disabled.
func amdAssociativity(code uint32) uint32 {
	switch code {
	case 0x0:
		return 0
	case 0x1, 0x2, 0x3, 0x4:
		return code
	case 0x5:
		return 6
	case 0x6:
		return 8
	case 0x8:
		return 16
	case 0xA:
		return 32
	case 0xB:
		return 48
	case 0xC:
		return 64
	case 0xD:
		return 96
	case 0xE:
		return 128
	case 0xF:
		return WaysFullyAssociative
	}
	return 0
}
