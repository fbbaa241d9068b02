package cpu

import "github.com/assembler-0/cpudetect/internal/cpuid"

// defaultCrystalHz is used when leaf 0x15 does not report the crystal
// clock. It is the crystal of most Intel client parts.
const defaultCrystalHz = 24_000_000

// Frequency holds the nominal clocks in MHz. Zero means unknown.
type Frequency struct {
	BaseMHz uint32 `json:"base_mhz" yaml:"base_mhz"`
	MaxMHz  uint32 `json:"max_mhz" yaml:"max_mhz"`
	BusMHz  uint32 `json:"bus_mhz" yaml:"bus_mhz"`
	TSCMHz  uint32 `json:"tsc_mhz" yaml:"tsc_mhz"`
}

func (p *pass) frequency() Frequency {
	var f Frequency
	if r, ok := p.lookup(0x16, 0); ok {
		f.BaseMHz = r.Bits(cpuid.EAX, 0, 15)
		f.MaxMHz = r.Bits(cpuid.EBX, 0, 15)
		f.BusMHz = r.Bits(cpuid.ECX, 0, 15)
	}
	// TSC = crystal * EBX / EAX.
	if r, ok := p.lookup(0x15, 0); ok && r.EAX != 0 && r.EBX != 0 {
		crystal := uint64(r.ECX)
		if crystal == 0 {
			crystal = defaultCrystalHz
		}
		f.TSCMHz = uint32(crystal * uint64(r.EBX) / uint64(r.EAX) / 1_000_000)
	}
	return f
}
