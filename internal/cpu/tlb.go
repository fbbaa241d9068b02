package cpu

import "github.com/assembler-0/cpudetect/internal/cpuid"

// TLB describes one translation lookaside buffer.
type TLB struct {
	Level int       `json:"level" yaml:"level"`
	Type  CacheType `json:"type" yaml:"type"`

	// PageSizes lists the page sizes the TLB caches, e.g. "4K" or "2M/4M".
	PageSizes []string `json:"page_sizes" yaml:"page_sizes"`
	Entries   uint32   `json:"entries" yaml:"entries"`

	// Ways is the associativity, or WaysFullyAssociative.
	Ways             uint32 `json:"ways" yaml:"ways"`
	FullyAssociative bool   `json:"fully_associative" yaml:"fully_associative"`
}

// tlbs decodes the AMD descriptors in 0x80000005/0x80000006 and the
// Intel deterministic leaf 0x18. A processor implements at most one of
// the two meaningfully; the other reads as zero and yields nothing.
func (p *pass) tlbs() []TLB {
	var out []TLB
	out = append(out, p.amdL1TLBs()...)
	out = append(out, p.amdL2TLBs()...)
	out = append(out, p.intelTLBs()...)
	return out
}

// amdL1TLBs decodes 0x80000005 EAX (2M/4M pages) and EBX (4K pages).
// The high half describes the data TLB, the low half the instruction
// TLB: associativity in the upper byte, entries in the lower byte.
func (p *pass) amdL1TLBs() []TLB {
	r, ok := p.lookup(0x80000005, 0)
	if !ok {
		return nil
	}
	var out []TLB
	for _, g := range []struct {
		reg   cpuid.Register
		pages string
	}{{cpuid.EAX, "2M/4M"}, {cpuid.EBX, "4K"}} {
		for _, half := range []struct {
			lo  uint
			typ CacheType
		}{{16, CacheData}, {0, CacheInstruction}} {
			entries := r.Bits(g.reg, half.lo, half.lo+7)
			ways := r.Bits(g.reg, half.lo+8, half.lo+15)
			if ways == 0xFF {
				ways = WaysFullyAssociative
			}
			if t, ok := newTLB(1, half.typ, []string{g.pages}, entries, ways); ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// amdL2TLBs decodes 0x80000006 EAX (2M/4M pages) and EBX (4K pages):
// a 4-bit associativity code over 12 bits of entries per half.
func (p *pass) amdL2TLBs() []TLB {
	r, ok := p.lookup(0x80000006, 0)
	if !ok {
		return nil
	}
	var out []TLB
	for _, g := range []struct {
		reg   cpuid.Register
		pages string
	}{{cpuid.EAX, "2M/4M"}, {cpuid.EBX, "4K"}} {
		for _, half := range []struct {
			lo  uint
			typ CacheType
		}{{16, CacheData}, {0, CacheInstruction}} {
			entries := r.Bits(g.reg, half.lo, half.lo+11)
			ways := amdAssociativity(r.Bits(g.reg, half.lo+12, half.lo+15))
			if t, ok := newTLB(2, half.typ, []string{g.pages}, entries, ways); ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// intelTLBs walks leaf 0x18 sub-leaves 0 through the maximum reported in
// sub-leaf 0 EAX. Sub-leaves with type 0 are holes, not terminators.
func (p *pass) intelTLBs() []TLB {
	first, ok := p.lookup(0x18, 0)
	if !ok {
		return nil
	}
	var out []TLB
	for sub := uint32(0); sub <= first.EAX && sub < maxSubleafWalk; sub++ {
		r := p.leaves.Get(0x18, sub)
		typ := r.Bits(cpuid.EDX, 0, 4)
		if typ == 0 {
			continue
		}
		ct := CacheUnified
		switch typ {
		case 1, 4, 5: // data, load-only, store-only
			ct = CacheData
		case 2:
			ct = CacheInstruction
		}

		ways := r.Bits(cpuid.EBX, 16, 31)
		if r.IsBitSet(cpuid.EDX, 8) {
			ways = WaysFullyAssociative
		}
		entries := r.ECX
		if ways != WaysFullyAssociative {
			entries *= ways
		}
		if t, ok := newTLB(int(r.Bits(cpuid.EDX, 5, 7)), ct, intelPageSizes(r.Bits(cpuid.EBX, 0, 3)), entries, ways); ok {
			out = append(out, t)
		}
	}
	return out
}

// maxSubleafWalk bounds walks driven by a count read from the processor.
const maxSubleafWalk = 64

func intelPageSizes(mask uint32) []string {
	var sizes []string
	for i, s := range []string{"4K", "2M", "4M", "1G"} {
		if mask&(1<<i) != 0 {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

func newTLB(level int, typ CacheType, pages []string, entries, ways uint32) (TLB, bool) {
	if entries == 0 || ways == 0 {
		return TLB{}, false
	}
	return TLB{
		Level:            level,
		Type:             typ,
		PageSizes:        pages,
		Entries:          entries,
		Ways:             ways,
		FullyAssociative: ways == WaysFullyAssociative,
	}, true
}
