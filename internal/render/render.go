// Package render formats detection results for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/assembler-0/cpudetect/internal/cpu"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(22)
	featureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yesStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// wrapWidth is where feature lists wrap.
const wrapWidth = 76

// Info writes every section.
func Info(w io.Writer, info *cpu.Info) {
	Vendor(w, info.VendorInfo)
	fmt.Fprintln(w)
	Topology(w, info.Topology)
	fmt.Fprintln(w)
	Caches(w, info.Caches, info.TLBs)
	fmt.Fprintln(w)
	Platform(w, info.Address, info.Frequency)
	fmt.Fprintln(w)
	Features(w, info.Features)
}

// Vendor writes the identification section.
func Vendor(w io.Writer, v cpu.VendorInfo) {
	heading(w, "Processor")
	field(w, "Vendor", fmt.Sprintf("%s (%s)", v.Vendor, v.VendorString))
	if v.BrandString != "" {
		field(w, "Brand", v.BrandString)
	}
	field(w, "Family / Model / Step", fmt.Sprintf("%#x / %#x / %d", v.Family, v.Model, v.Stepping))
	field(w, "Max leaf", fmt.Sprintf("%#x / %#x", v.MaxLeaf, v.MaxExtendedLeaf))
}

// Topology writes the core/thread section.
func Topology(w io.Writer, t cpu.Topology) {
	heading(w, "Topology")
	field(w, "Logical processors", fmt.Sprint(t.LogicalProcessors))
	field(w, "Physical cores", fmt.Sprint(t.PhysicalCores))
	field(w, "Threads per core", fmt.Sprint(t.ThreadsPerCore))
	field(w, "Hyper-Threading", yesNo(t.Hyperthreading))
	field(w, "Hybrid", yesNo(t.Hybrid))
	if t.Hybrid {
		field(w, "This core", fmt.Sprintf("%s (native model %#x)", t.CoreType, t.NativeModelID))
	}
	if len(t.Cores) > 0 {
		field(w, "P / E processors", fmt.Sprintf("%d / %d", t.PerformanceCores, t.EfficiencyCores))
	}
	for _, l := range t.Levels {
		field(w, "  "+l.Type.String()+" level", fmt.Sprintf("%d logical, shift %d", l.LogicalProcessors, l.ShiftBits))
	}
	field(w, "Source", t.Source.String())
	field(w, "Suggested threads", fmt.Sprint(cpu.OptimalThreadCount(t)))
}

// Caches writes the cache and TLB section.
func Caches(w io.Writer, caches []cpu.Cache, tlbs []cpu.TLB) {
	heading(w, "Caches")
	if len(caches) == 0 {
		fmt.Fprintln(w, "  none reported")
	}
	for _, c := range caches {
		field(w, c.Name(), fmt.Sprintf("%s, %s, %d-byte lines, shared by %d",
			humanize.IBytes(c.SizeBytes), ways(c.Ways), c.LineSize, c.SharedBy))
	}
	for _, t := range tlbs {
		field(w, fmt.Sprintf("L%d %s TLB", t.Level, t.Type), fmt.Sprintf("%s pages, %s entries, %s",
			strings.Join(t.PageSizes, "/"), humanize.Comma(int64(t.Entries)), ways(t.Ways)))
	}
}

// Platform writes address widths and clocks.
func Platform(w io.Writer, a cpu.AddressSizes, f cpu.Frequency) {
	heading(w, "Platform")
	field(w, "Address bits", fmt.Sprintf("%d physical, %d virtual", a.PhysicalBits, a.VirtualBits))
	if a.GuestPhysicalBits != 0 {
		field(w, "Guest physical bits", fmt.Sprint(a.GuestPhysicalBits))
	}
	field(w, "Base / max / bus", fmt.Sprintf("%s / %s / %s", mhz(f.BaseMHz), mhz(f.MaxMHz), mhz(f.BusMHz)))
	field(w, "TSC", mhz(f.TSCMHz))
}

// Features writes the feature list grouped by category.
func Features(w io.Writer, s cpu.FeatureSet) {
	heading(w, fmt.Sprintf("Features (%d)", s.Len()))
	groups := s.ByCategory()
	for _, cat := range cpu.Categories {
		names := groups[cat]
		if len(names) == 0 {
			continue
		}
		fmt.Fprintln(w, "  "+labelStyle.Render(cat.String()))
		for _, line := range wrap(names, wrapWidth) {
			fmt.Fprintln(w, "    "+featureStyle.Render(line))
		}
	}
}

// FeatureChecks writes one line per requested name and reports whether
// all of them are present.
func FeatureChecks(w io.Writer, s cpu.FeatureSet, names []string) bool {
	all := true
	for _, n := range names {
		ok := s.Has(n)
		if !ok {
			all = false
		}
		field(w, n, yesNo(ok))
	}
	return all
}

func heading(w io.Writer, s string) {
	fmt.Fprintln(w, headingStyle.Render(s))
}

func field(w io.Writer, label, value string) {
	fmt.Fprintln(w, "  "+labelStyle.Render(label)+" "+value)
}

func yesNo(b bool) string {
	if b {
		return yesStyle.Render("yes")
	}
	return noStyle.Render("no")
}

func ways(n uint32) string {
	switch n {
	case cpu.WaysFullyAssociative:
		return "fully associative"
	case 1:
		return "direct mapped"
	}
	return fmt.Sprintf("%d-way", n)
}

func mhz(v uint32) string {
	if v == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d MHz", v)
}

// wrap joins names with spaces into lines no wider than width.
func wrap(names []string, width int) []string {
	var lines []string
	var b strings.Builder
	for _, n := range names {
		if b.Len() > 0 && b.Len()+1+len(n) > width {
			lines = append(lines, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(n)
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}
