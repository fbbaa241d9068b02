package cpuid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for capture files whose extension is not
// .json, .yaml, .yml or .cbor.
var ErrUnknownFormat = errors.New("unknown capture format")

// maxSubleaves bounds every sub-leaf walk. Real processors stop well
// before this; a broken hypervisor might not.
const maxSubleaves = 64

// Leaves is an in-memory Querier. Pairs that are not present answer
// with all-zero registers, like a processor that does not implement
// them.
type Leaves map[Key]Result

// Query returns the recorded result for (leaf, subleaf).
func (l Leaves) Query(leaf, subleaf uint32) Result {
	return l[Key{Leaf: leaf, Subleaf: subleaf}]
}

// Set records r for (leaf, subleaf) and returns l for chaining.
func (l Leaves) Set(leaf, subleaf uint32, r Result) Leaves {
	l[Key{Leaf: leaf, Subleaf: subleaf}] = r
	return l
}

// Entry is one recorded query in a Dump.
type Entry struct {
	Leaf    uint32 `json:"leaf" yaml:"leaf" cbor:"leaf"`
	Subleaf uint32 `json:"subleaf" yaml:"subleaf" cbor:"subleaf"`
	EAX     uint32 `json:"eax" yaml:"eax" cbor:"eax"`
	EBX     uint32 `json:"ebx" yaml:"ebx" cbor:"ebx"`
	ECX     uint32 `json:"ecx" yaml:"ecx" cbor:"ecx"`
	EDX     uint32 `json:"edx" yaml:"edx" cbor:"edx"`
}

// Dump is a recorded set of CPUID results that can be replayed later
// on any machine.
type Dump struct {
	Entries []Entry `json:"entries" yaml:"entries" cbor:"entries"`
}

// Querier returns a Querier answering from the recorded entries.
func (d *Dump) Querier() Querier {
	l := make(Leaves, len(d.Entries))
	for _, e := range d.Entries {
		l.Set(e.Leaf, e.Subleaf, Result{EAX: e.EAX, EBX: e.EBX, ECX: e.ECX, EDX: e.EDX})
	}
	return l
}

// DumpOf converts in-memory leaves to a Dump sorted by leaf and sub-leaf.
func DumpOf(l Leaves) *Dump {
	d := &Dump{Entries: make([]Entry, 0, len(l))}
	for k, r := range l {
		d.add(k.Leaf, k.Subleaf, r)
	}
	d.sort()
	return d
}

func (d *Dump) add(leaf, subleaf uint32, r Result) {
	d.Entries = append(d.Entries, Entry{
		Leaf:    leaf,
		Subleaf: subleaf,
		EAX:     r.EAX,
		EBX:     r.EBX,
		ECX:     r.ECX,
		EDX:     r.EDX,
	})
}

func (d *Dump) sort() {
	sort.Slice(d.Entries, func(i, j int) bool {
		if d.Entries[i].Leaf != d.Entries[j].Leaf {
			return d.Entries[i].Leaf < d.Entries[j].Leaf
		}
		return d.Entries[i].Subleaf < d.Entries[j].Subleaf
	})
}

// Capture walks every supported standard and extended leaf of q,
// including the sub-leaves of the enumerating leaves, and records the
// results.
func Capture(q Querier) *Dump {
	c := NewCache(q)
	d := &Dump{}

	for leaf := uint32(0); leaf <= c.MaxLeaf(); leaf++ {
		captureLeaf(d, c, leaf)
	}
	if c.MaxExtendedLeaf() != 0 {
		for leaf := ExtendedBase; leaf <= c.MaxExtendedLeaf(); leaf++ {
			captureLeaf(d, c, leaf)
		}
	}
	d.sort()
	return d
}

func captureLeaf(d *Dump, c *Cache, leaf uint32) {
	first := c.Get(leaf, 0)
	d.add(leaf, 0, first)

	for sub := uint32(1); sub < maxSubleaves; sub++ {
		if !hasSubleaf(leaf, sub, first) {
			return
		}
		r := c.Get(leaf, sub)
		if subleafTerminates(leaf, r) {
			return
		}
		if leaf == 0xD && r.IsZero() {
			// XSAVE state components are sparse.
			continue
		}
		d.add(leaf, sub, r)
	}
}

// hasSubleaf reports whether sub-leaf sub of leaf should be read at all,
// given sub-leaf 0.
func hasSubleaf(leaf, sub uint32, first Result) bool {
	if CountsSubleaves(leaf) {
		return sub <= first.EAX
	}
	switch leaf {
	case 0x4, 0xB, 0xD, 0x1F, 0x8000001D:
		return true
	}
	return false
}

// subleafTerminates reports whether r marks the end of leaf's sub-leaf
// enumeration.
func subleafTerminates(leaf uint32, r Result) bool {
	switch leaf {
	case 0x4, 0x8000001D:
		return r.EAX&0x1F == 0
	case 0xB, 0x1F:
		return r.Bits(ECX, 8, 15) == 0
	}
	return false
}

// Format is a capture file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// cborEnc uses core deterministic encoding so the same capture always
// produces the same bytes.
var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cpuid: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes d in the given format.
func (d *Dump) Marshal(f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatCBOR:
		return cborEnc.Marshal(d)
	}
	return nil, fmt.Errorf("%q: %w", f, ErrUnknownFormat)
}

// Unmarshal decodes data in the given format.
func Unmarshal(f Format, data []byte) (*Dump, error) {
	var d Dump
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &d)
	case FormatYAML:
		err = yaml.Unmarshal(data, &d)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &d)
	default:
		return nil, fmt.Errorf("%q: %w", f, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s capture: %w", f, err)
	}
	return &d, nil
}

// WriteFile writes d to path in the format implied by its extension.
func WriteFile(path string, d *Dump) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := d.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a capture written by WriteFile.
func ReadFile(path string) (*Dump, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Unmarshal(f, data)
}
