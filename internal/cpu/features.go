package cpu

import (
	"encoding/json"
	"sort"
	"strings"
)

// FeatureSet is the set of features reported present by one detection
// pass. The zero value is an empty set. A FeatureSet is never modified
// after it is built.
type FeatureSet struct {
	present map[string]struct{}
}

// features decodes the whole registry in one pass. A feature is present
// when its raw bit is set and every feature it requires, transitively, is
// present as well.
func (p *pass) features() FeatureSet {
	raw := make([]bool, len(registry))
	for i, f := range registry {
		r, ok := p.leaves.Lookup(f.Leaf, f.Subleaf)
		if !ok {
			continue
		}
		raw[i] = r.IsBitSet(f.Register, f.Bit)
	}

	// Resolve gates depth-first. The table has no cycles; buildRegistry
	// rejects unknown names, and gates only point at simpler features.
	state := make([]int8, len(registry)) // 0 unknown, 1 present, -1 absent
	var resolve func(i int) bool
	resolve = func(i int) bool {
		switch state[i] {
		case 1:
			return true
		case -1:
			return false
		}
		ok := raw[i]
		for _, dep := range registry[i].Requires {
			if !ok {
				break
			}
			ok = resolve(byName[dep])
		}
		if ok {
			state[i] = 1
		} else {
			state[i] = -1
		}
		return ok
	}

	set := FeatureSet{present: make(map[string]struct{})}
	for i, f := range registry {
		if resolve(i) {
			set.present[f.Name] = struct{}{}
		} else if raw[i] {
			p.log.Debug("feature gated off", "feature", f.Name, "requires", f.Requires)
		}
	}
	return set
}

// Has reports whether the named feature is present. Names are matched
// exactly, case included.
func (s FeatureSet) Has(name string) bool {
	_, ok := s.present[name]
	return ok
}

// Len returns the number of present features.
func (s FeatureSet) Len() int {
	return len(s.present)
}

// Names returns the present feature names in sorted order.
func (s FeatureSet) Names() []string {
	names := make([]string, 0, len(s.present))
	for name := range s.present {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory groups the present features by category. Each list is in
// registry order, which keeps related bits next to each other.
func (s FeatureSet) ByCategory() map[Category][]string {
	out := make(map[Category][]string)
	for _, f := range registry {
		if s.Has(f.Name) {
			out[f.Category] = append(out[f.Category], f.Name)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of names.
func (s FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// MarshalYAML encodes the set as a sorted list of names.
func (s FeatureSet) MarshalYAML() (interface{}, error) {
	return s.Names(), nil
}

// simdHighlights are the vector extensions FeatureSummary reports, in
// roughly ascending order of width.
var simdHighlights = []struct {
	name, label string
}{
	{"SSE4.2", "SSE4.2"},
	{"AVX", "AVX"},
	{"AVX2", "AVX2"},
	{"F16C", "F16C"},
	{"FMA", "FMA"},
	{"AVX512F", "AVX-512"},
	{"AVX_VNNI", "AVX-VNNI"},
	{"AMX_TILE", "AMX"},
}

// FeatureSummary returns a short human-readable string of the SIMD
// features that matter most for kernel dispatch.
func FeatureSummary(s FeatureSet) string {
	var parts []string
	for _, h := range simdHighlights {
		if s.Has(h.name) {
			parts = append(parts, h.label)
		}
	}
	if len(parts) == 0 {
		return "none detected"
	}
	return strings.Join(parts, " ")
}
