package cpu

import "github.com/assembler-0/cpudetect/internal/cpuid"

// AddressSizes are the address widths in bits.
type AddressSizes struct {
	PhysicalBits uint32 `json:"physical_bits" yaml:"physical_bits"`
	VirtualBits  uint32 `json:"virtual_bits" yaml:"virtual_bits"`

	// GuestPhysicalBits is 0 unless a hypervisor overrides the guest
	// physical width, in which case PhysicalBits applies to the host.
	GuestPhysicalBits uint32 `json:"guest_physical_bits" yaml:"guest_physical_bits"`
}

// addressSizes reads 0x80000008 EAX. Without that leaf the processor is
// assumed to have 36-bit physical and 48-bit virtual addresses.
func (p *pass) addressSizes() AddressSizes {
	a := AddressSizes{PhysicalBits: 36, VirtualBits: 48}
	if r, ok := p.lookup(0x80000008, 0); ok && r.EAX != 0 {
		a.PhysicalBits = r.Bits(cpuid.EAX, 0, 7)
		a.VirtualBits = r.Bits(cpuid.EAX, 8, 15)
		a.GuestPhysicalBits = r.Bits(cpuid.EAX, 16, 23)
	}
	return a
}
