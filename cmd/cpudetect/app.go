package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/assembler-0/cpudetect/internal/affinity"
	"github.com/assembler-0/cpudetect/internal/config"
	"github.com/assembler-0/cpudetect/internal/cpu"
	"github.com/assembler-0/cpudetect/internal/cpuid"
	"github.com/assembler-0/cpudetect/internal/render"
)

// app carries what every subcommand needs: the configuration, where to
// write, and the querier selected by --from.
type app struct {
	cfg *config.Config
	out io.Writer
	q   cpuid.Querier
}

// open selects the querier: a replayed capture or the host processor.
func (a *app) open() error {
	if a.cfg.From == "" {
		a.q = cpuid.Host
		return nil
	}
	d, err := cpuid.ReadFile(a.cfg.From)
	if err != nil {
		return fmt.Errorf("load capture: %w", err)
	}
	slog.Debug("replaying capture", "path", a.cfg.From, "entries", len(d.Entries))
	a.q = d.Querier()
	return nil
}

// detect runs a full pass and, with --per-cpu, classifies every processor.
func (a *app) detect(ctx context.Context) *cpu.Info {
	info := cpu.DetectWith(a.q)
	if a.cfg.PerCPU {
		info.Topology = a.classify(ctx, info.Topology)
	}
	return info
}

func (a *app) classify(ctx context.Context, t cpu.Topology) cpu.Topology {
	if a.cfg.From != "" {
		slog.Warn("--per-cpu needs the host processor; ignored when replaying a capture")
		return t
	}
	cores, err := cpu.ClassifyCores(ctx)
	if errors.Is(err, affinity.ErrUnsupported) {
		slog.Warn("per-processor classification unavailable", "error", err)
		return t
	}
	if err != nil {
		slog.Warn("per-processor classification failed", "error", err)
		return t
	}
	return t.WithCoreAssignments(cores)
}

func (a *app) runAll(ctx context.Context) error {
	info := a.detect(ctx)
	if a.cfg.Output == config.OutputText {
		render.Info(a.out, info)
		return nil
	}
	return a.encode(info)
}

func (a *app) runVendor() error {
	v := cpu.DetectVendorWith(a.q)
	if a.cfg.Output == config.OutputText {
		render.Vendor(a.out, v)
		return nil
	}
	return a.encode(v)
}

func (a *app) runFeatures(names []string) error {
	fs := cpu.DetectFeaturesWith(a.q)
	if len(names) == 0 {
		if a.cfg.Output == config.OutputText {
			render.Features(a.out, fs)
			return nil
		}
		return a.encode(fs)
	}

	for _, n := range names {
		if _, ok := cpu.LookupFeature(n); !ok {
			slog.Warn("feature not in registry", "name", n)
		}
	}

	var all bool
	if a.cfg.Output == config.OutputText {
		all = render.FeatureChecks(a.out, fs, names)
	} else {
		present := make(map[string]bool, len(names))
		all = true
		for _, n := range names {
			present[n] = fs.Has(n)
			all = all && present[n]
		}
		if err := a.encode(present); err != nil {
			return err
		}
	}
	if !all {
		return errFeaturesMissing
	}
	return nil
}

func (a *app) runTopology(ctx context.Context) error {
	t := cpu.DetectTopologyWith(a.q)
	if a.cfg.PerCPU {
		t = a.classify(ctx, t)
	}
	if a.cfg.Output == config.OutputText {
		render.Topology(a.out, t)
		return nil
	}
	return a.encode(t)
}

func (a *app) runCache() error {
	info := cpu.DetectWith(a.q)
	if a.cfg.Output == config.OutputText {
		render.Caches(a.out, info.Caches, info.TLBs)
		return nil
	}
	return a.encode(map[string]interface{}{
		"caches": info.Caches,
		"tlbs":   info.TLBs,
	})
}

func (a *app) runLeaf(args []string) error {
	leaf, err := parseUint32(args[0])
	if err != nil {
		return fmt.Errorf("invalid leaf %q: %w", args[0], err)
	}
	var sub uint32
	if len(args) > 1 {
		if sub, err = parseUint32(args[1]); err != nil {
			return fmt.Errorf("invalid subleaf %q: %w", args[1], err)
		}
	}

	r, ok := cpuid.NewCache(a.q).Lookup(leaf, sub)
	if !ok {
		slog.Warn("leaf not supported by this processor", "leaf", fmt.Sprintf("%#x", leaf), "subleaf", sub)
	}
	if a.cfg.Output != config.OutputText {
		return a.encode(map[string]interface{}{
			"leaf":      leaf,
			"subleaf":   sub,
			"supported": ok,
			"registers": r,
		})
	}
	fmt.Fprintf(a.out, "leaf %#x subleaf %d\n", leaf, sub)
	for _, reg := range []cpuid.Register{cpuid.EAX, cpuid.EBX, cpuid.ECX, cpuid.EDX} {
		v := r.Get(reg)
		fmt.Fprintf(a.out, "  %s  0x%08x  %032b\n", reg, v, v)
	}
	return nil
}

func (a *app) runCapture(path string) error {
	d := cpuid.Capture(a.q)
	if err := cpuid.WriteFile(path, d); err != nil {
		return err
	}
	slog.Info("capture written", "path", path, "entries", len(d.Entries))
	return nil
}

// encode prints v as JSON or YAML per --output.
func (a *app) encode(v interface{}) error {
	switch a.cfg.Output {
	case config.OutputJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q", a.cfg.Output)
}

// parseUint32 accepts decimal and 0x-prefixed hexadecimal.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
