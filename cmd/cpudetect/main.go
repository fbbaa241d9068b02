// cpudetect: CPUID capability and topology decoder
//
// Usage:
//
//	cpudetect
//	cpudetect features AVX2 AVX512F
//	cpudetect leaf 0x7 0 -o json
//	cpudetect capture host.yaml
//	cpudetect --from host.yaml topology
//	cpudetect serve --port 9273
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/assembler-0/cpudetect/internal/api"
	"github.com/assembler-0/cpudetect/internal/config"
	"github.com/assembler-0/cpudetect/internal/cpu"
	"github.com/assembler-0/cpudetect/internal/logging"
	"github.com/assembler-0/cpudetect/internal/metrics"
)

// overridden during build with ldflags
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	app := &app{cfg: &cfg}

	root := &cobra.Command{
		Use:           "cpudetect",
		Short:         "Decode CPUID into features, topology and caches",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetDefault("cpudetect", version, cfg.LogLevel)
			app.out = cmd.OutOrStdout()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return app.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runAll(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfg.Output, "output", "o", config.EnvOrDefault("CPUDETECT_OUTPUT", config.OutputText),
		"Output format: text, json or yaml")
	pf.StringVar(&cfg.From, "from", config.EnvOrDefault("CPUDETECT_FROM", ""),
		"Replay a capture file (.json, .yaml, .cbor) instead of the host processor")
	pf.BoolVar(&cfg.PerCPU, "per-cpu", false,
		"Classify every processor's core type by pinning a thread to each")
	pf.StringVar(&cfg.LogLevel, "log-level", config.EnvOrDefault(logging.EnvLevel, "info"),
		"Log level: debug, info, warn or error")

	root.AddCommand(
		&cobra.Command{
			Use:   "vendor",
			Short: "Show vendor, brand and signature",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runVendor()
			},
		},
		&cobra.Command{
			Use:   "features [NAME...]",
			Short: "List features, or check the named ones (exit 1 if any is absent)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runFeatures(args)
			},
		},
		&cobra.Command{
			Use:   "topology",
			Short: "Show core and thread topology",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runTopology(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "cache",
			Short: "Show the cache hierarchy and TLBs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runCache()
			},
		},
		&cobra.Command{
			Use:   "leaf LEAF [SUBLEAF]",
			Short: "Show the raw registers of one CPUID query (hex or decimal)",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runLeaf(args)
			},
		},
		&cobra.Command{
			Use:   "capture FILE",
			Short: "Record every supported leaf to FILE (.json, .yaml or .cbor)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.runCapture(args[0])
			},
		},
		newServeCmd(app),
	)
	return root
}

func newServeCmd(app *app) *cobra.Command {
	cfg := app.cfg
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP diagnostic server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mc := metrics.NewCollector(func() *cpu.Info { return app.detect(ctx) })
			srv := api.NewServer(cfg, app.q, mc)
			return srv.Run(ctx)
		},
	}

	port := config.DefaultPort
	if v := config.EnvOrDefault("CPUDETECT_PORT", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			port = config.DefaultPort
		}
	}

	f := serve.Flags()
	f.IntVarP(&cfg.Port, "port", "p", port, "HTTP port")
	f.StringVar(&cfg.Host, "host", "0.0.0.0", "Bind address")
	return serve
}

// errFeaturesMissing makes `features NAME...` exit non-zero.
var errFeaturesMissing = errors.New("one or more features are not present")
