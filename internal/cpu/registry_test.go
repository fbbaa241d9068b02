package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assembler-0/cpudetect/internal/cpuid"
)

func TestRegistryIsUnique(t *testing.T) {
	type slot struct {
		leaf, subleaf uint32
		reg           cpuid.Register
		bit           uint
	}
	names := make(map[string]bool)
	slots := make(map[slot]string)
	for _, f := range Features() {
		assert.False(t, names[f.Name], "duplicate name %s", f.Name)
		names[f.Name] = true

		s := slot{f.Leaf, f.Subleaf, f.Register, f.Bit}
		prev, dup := slots[s]
		assert.False(t, dup, "%s and %s share a bit", prev, f.Name)
		slots[s] = f.Name

		assert.LessOrEqual(t, f.Bit, uint(31), f.Name)
		assert.NotEmpty(t, f.Description, f.Name)
	}
	assert.GreaterOrEqual(t, len(names), 200)
}

func TestRegistryGatesAreAcyclic(t *testing.T) {
	var visit func(name string, path map[string]bool)
	visit = func(name string, path map[string]bool) {
		require.False(t, path[name], "cycle through %s", name)
		path[name] = true
		f, ok := LookupFeature(name)
		require.True(t, ok, "unknown gate %s", name)
		for _, dep := range f.Requires {
			visit(dep, path)
		}
		delete(path, name)
	}
	for _, f := range Features() {
		visit(f.Name, map[string]bool{})
	}
}

func TestRegistryGates(t *testing.T) {
	tests := map[string][]string{
		"AVX":            {"OSXSAVE"},
		"AVX2":           {"AVX"},
		"FMA":            {"AVX"},
		"AVX512F":        {"AVX"},
		"AVX512BW":       {"AVX512F"},
		"AVX512_FP16":    {"AVX512F"},
		"AVX512_BF16":    {"AVX512F"},
		"AMX_TILE":       {"OSXSAVE"},
		"AMX_INT8":       {"AMX_TILE"},
		"SSE4.2":         nil,
		"OSXSAVE":        nil,
		"AMD_STIBP":      nil,
		"AVX_NE_CONVERT": {"AVX"},
	}
	for name, want := range tests {
		f, ok := LookupFeature(name)
		require.True(t, ok, name)
		assert.Equal(t, want, f.Requires, name)
	}
}

func TestLookupFeature(t *testing.T) {
	f, ok := LookupFeature("AVX2")
	require.True(t, ok)
	assert.Equal(t, uint32(7), f.Leaf)
	assert.Equal(t, uint32(0), f.Subleaf)
	assert.Equal(t, cpuid.EBX, f.Register)
	assert.Equal(t, uint(5), f.Bit)
	assert.Equal(t, CategorySIMD, f.Category)

	_, ok = LookupFeature("avx2")
	assert.False(t, ok, "names are case-sensitive")
	_, ok = LookupFeature("")
	assert.False(t, ok)
}

func TestFeaturesReturnsCopy(t *testing.T) {
	a := Features()
	a[0].Name = "MUTATED"
	assert.NotEqual(t, "MUTATED", Features()[0].Name)
}

func TestFeatureGatesCannotBeModified(t *testing.T) {
	all := Features()
	i := byName["AVX"]
	require.Equal(t, []string{"OSXSAVE"}, all[i].Requires)
	all[i].Requires[0] = "PBE"

	f, ok := LookupFeature("AVX")
	require.True(t, ok)
	f.Requires[0] = "PBE"

	f, _ = LookupFeature("AVX")
	assert.Equal(t, []string{"OSXSAVE"}, f.Requires)
	assert.Equal(t, []string{"OSXSAVE"}, Features()[i].Requires)
	assert.True(t, DetectFeaturesWith(alderLake()).Has("AVX"))
}

func TestBuildRegistryRejectsBadTables(t *testing.T) {
	dupName := []bitGroup{
		{1, 0, cpuid.EDX, []bitDef{{0, "X", sys, "x"}}},
		{1, 0, cpuid.ECX, []bitDef{{0, "X", sys, "x"}}},
	}
	assert.Panics(t, func() { buildRegistry(dupName, nil) })

	dupSlot := []bitGroup{
		{1, 0, cpuid.EDX, []bitDef{{0, "X", sys, "x"}, {0, "Y", sys, "y"}}},
	}
	assert.Panics(t, func() { buildRegistry(dupSlot, nil) })

	unknownGate := []bitGroup{
		{1, 0, cpuid.EDX, []bitDef{{0, "X", sys, "x"}}},
	}
	assert.Panics(t, func() { buildRegistry(unknownGate, map[string][]string{"X": {"NOPE"}}) })
}

func TestCategoryNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range Categories {
		assert.False(t, seen[c.String()])
		seen[c.String()] = true
	}
	for _, f := range Features() {
		assert.True(t, seen[f.Category.String()], f.Name)
	}
	assert.True(t, strings.EqualFold("simd", CategorySIMD.String()))
}
