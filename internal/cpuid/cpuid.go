// Package cpuid is the thin layer between the decoders and the CPUID
// instruction. Query issues the instruction; everything else in the
// module goes through a Querier so detection can run against the host
// processor or against recorded leaves.
//
// Query must only run on an x86-64 processor. On every other
// architecture it returns all-zero registers, which the decoders treat
// as "leaf unsupported".
package cpuid

import "fmt"

// ExtendedBase is the first leaf of the extended leaf space.
const ExtendedBase uint32 = 0x80000000

// Register selects one of the four registers CPUID fills in.
type Register uint8

const (
	EAX Register = iota
	EBX
	ECX
	EDX
)

// String returns the register's assembler name.
func (r Register) String() string {
	switch r {
	case EAX:
		return "EAX"
	case EBX:
		return "EBX"
	case ECX:
		return "ECX"
	case EDX:
		return "EDX"
	}
	return fmt.Sprintf("Register(%d)", uint8(r))
}

// MarshalText renders the register by name in JSON and YAML output.
func (r Register) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Result holds the registers returned for one (leaf, sub-leaf) pair.
type Result struct {
	EAX uint32 `json:"eax" yaml:"eax"`
	EBX uint32 `json:"ebx" yaml:"ebx"`
	ECX uint32 `json:"ecx" yaml:"ecx"`
	EDX uint32 `json:"edx" yaml:"edx"`
}

// Get returns the value of a single register.
func (r Result) Get(reg Register) uint32 {
	switch reg {
	case EAX:
		return r.EAX
	case EBX:
		return r.EBX
	case ECX:
		return r.ECX
	case EDX:
		return r.EDX
	}
	return 0
}

// IsBitSet reports whether bit is set in reg. Bits above 31 are never set.
func (r Result) IsBitSet(reg Register, bit uint) bool {
	if bit > 31 {
		return false
	}
	return r.Get(reg)&(1<<bit) != 0
}

// Bits extracts the inclusive bit range [lo, hi] of reg, shifted down.
func (r Result) Bits(reg Register, lo, hi uint) uint32 {
	if hi > 31 || lo > hi {
		return 0
	}
	width := hi - lo + 1
	if width == 32 {
		return r.Get(reg)
	}
	return (r.Get(reg) >> lo) & (1<<width - 1)
}

// IsZero reports whether all four registers are zero.
func (r Result) IsZero() bool {
	return r == Result{}
}

// Bytes returns the registers in the given order, each little-endian.
// Vendor and brand strings are laid out this way.
func (r Result) Bytes(order ...Register) []byte {
	out := make([]byte, 0, 4*len(order))
	for _, reg := range order {
		v := r.Get(reg)
		out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return out
}

// Querier answers CPUID queries. The host implementation is Host;
// tests and replayed captures provide their own.
type Querier interface {
	Query(leaf, subleaf uint32) Result
}

// QueryFunc adapts a plain function to the Querier interface.
type QueryFunc func(leaf, subleaf uint32) Result

// Query calls f(leaf, subleaf).
func (f QueryFunc) Query(leaf, subleaf uint32) Result {
	return f(leaf, subleaf)
}

// Host queries the processor the calling goroutine is running on.
var Host Querier = QueryFunc(Query)

// Query executes CPUID with EAX=leaf and ECX=subleaf on the current
// processor. There is no error path: unsupported leaves return whatever
// the processor answers, so callers check the leaf against MaxLeaf or
// MaxExtendedLeaf first.
func Query(leaf, subleaf uint32) Result {
	a, b, c, d := cpuid(leaf, subleaf)
	return Result{EAX: a, EBX: b, ECX: c, EDX: d}
}

// MaxLeaf returns the highest standard leaf of the host processor.
func MaxLeaf() uint32 {
	return Query(0, 0).EAX
}

// MaxExtendedLeaf returns the highest extended leaf of the host
// processor, or 0 if the extended range is not implemented.
func MaxExtendedLeaf() uint32 {
	return normalizeExtended(Query(ExtendedBase, 0).EAX)
}

// IsExtended reports whether leaf belongs to the extended leaf space.
func IsExtended(leaf uint32) bool {
	return leaf >= ExtendedBase
}

// normalizeExtended drops a max-extended value that does not point into
// the extended range. Processors without extended leaves echo back the
// data of their highest standard leaf here.
func normalizeExtended(v uint32) uint32 {
	if v < ExtendedBase {
		return 0
	}
	return v
}
