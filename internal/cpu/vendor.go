package cpu

import (
	"strings"

	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// Vendor identifies the processor manufacturer.
type Vendor int

const (
	VendorUnknown Vendor = iota
	VendorIntel
	VendorAMD
	VendorHygon
	VendorZhaoxin
	VendorCentaur
)

var vendorIDs = map[string]Vendor{
	"GenuineIntel": VendorIntel,
	"AuthenticAMD": VendorAMD,
	"HygonGenuine": VendorHygon,
	"  Shanghai  ": VendorZhaoxin,
	"CentaurHauls": VendorCentaur,
}

// String returns the vendor's short name.
func (v Vendor) String() string {
	switch v {
	case VendorIntel:
		return "Intel"
	case VendorAMD:
		return "AMD"
	case VendorHygon:
		return "Hygon"
	case VendorZhaoxin:
		return "Zhaoxin"
	case VendorCentaur:
		return "Centaur"
	}
	return "Unknown"
}

// MarshalText renders the vendor by name in JSON and YAML output.
func (v Vendor) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// vendorStyle selects which family of bit layouts the downstream
// decoders use. It is computed once per pass.
type vendorStyle int

const (
	styleUnknown vendorStyle = iota
	styleIntel
	styleAMD
)

func (v Vendor) style() vendorStyle {
	switch v {
	case VendorIntel, VendorZhaoxin, VendorCentaur:
		return styleIntel
	case VendorAMD, VendorHygon:
		return styleAMD
	}
	return styleUnknown
}

// VendorInfo identifies the processor.
type VendorInfo struct {
	// Vendor is the manufacturer decoded from VendorString.
	Vendor Vendor `json:"vendor" yaml:"vendor"`

	// VendorString is the raw 12-character ID from leaf 0, e.g. "GenuineIntel".
	VendorString string `json:"vendor_string" yaml:"vendor_string"`

	// BrandString is the marketing name from leaves 0x80000002-0x80000004,
	// or "" when those leaves are not implemented.
	BrandString string `json:"brand_string" yaml:"brand_string"`

	// Family, Model and Stepping are the display values from leaf 1,
	// with the extended fields folded in.
	Family   uint32 `json:"family" yaml:"family"`
	Model    uint32 `json:"model" yaml:"model"`
	Stepping uint32 `json:"stepping" yaml:"stepping"`

	// MaxLeaf and MaxExtendedLeaf bound every other query.
	MaxLeaf         uint32 `json:"max_leaf" yaml:"max_leaf"`
	MaxExtendedLeaf uint32 `json:"max_extended_leaf" yaml:"max_extended_leaf"`
}

func vendorOf(leaves *cpuid.Cache) Vendor {
	return vendorIDs[vendorString(leaves.Get(0, 0))]
}

// vendorString assembles the vendor ID from leaf 0. The characters are
// stored in EBX, EDX, ECX order, each register little-endian.
func vendorString(r cpuid.Result) string {
	return strings.TrimRight(string(r.Bytes(cpuid.EBX, cpuid.EDX, cpuid.ECX)), "\x00")
}

func (p *pass) vendorInfo() VendorInfo {
	v := VendorInfo{
		Vendor:          p.vendor,
		VendorString:    vendorString(p.leaves.Get(0, 0)),
		MaxLeaf:         p.leaves.MaxLeaf(),
		MaxExtendedLeaf: p.leaves.MaxExtendedLeaf(),
	}
	if p.leaves.MaxLeaf() >= 1 {
		v.Family, v.Model, v.Stepping = decodeSignature(p.leaves.Get(1, 0).EAX, p.vendor.style())
	}
	v.BrandString = p.brandString()
	return v
}

// decodeSignature splits the leaf 1 EAX processor signature. The
// extended family is added only when the base family is 0xF. The
// extended model is prepended for base family 0xF, and for Intel-style
// parts also for base family 0x6.
func decodeSignature(eax uint32, style vendorStyle) (family, model, stepping uint32) {
	stepping = eax & 0xF
	baseModel := (eax >> 4) & 0xF
	baseFamily := (eax >> 8) & 0xF
	extModel := (eax >> 16) & 0xF
	extFamily := (eax >> 20) & 0xFF

	family = baseFamily
	if baseFamily == 0xF {
		family += extFamily
	}

	model = baseModel
	if baseFamily == 0xF || (baseFamily == 0x6 && style == styleIntel) {
		model |= extModel << 4
	}
	return family, model, stepping
}

func (p *pass) brandString() string {
	if p.leaves.MaxExtendedLeaf() < 0x80000004 {
		return ""
	}
	brand := make([]byte, 0, 48)
	for leaf := uint32(0x80000002); leaf <= 0x80000004; leaf++ {
		brand = append(brand, p.leaves.Get(leaf, 0).Bytes(cpuid.EAX, cpuid.EBX, cpuid.ECX, cpuid.EDX)...)
	}
	s := string(brand)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
