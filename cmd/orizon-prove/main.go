// Command orizon-prove checks refinement predicates from the command line
// and serves the prover over HTTP/3.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/refinement/internal/cli"
	"github.com/orizon-lang/refinement/internal/config"
	"github.com/orizon-lang/refinement/internal/prover"
	"github.com/orizon-lang/refinement/internal/registry"
	"github.com/orizon-lang/refinement/internal/solver"
)

const appName = "orizon-prove"

// errNotProven makes the process exit 1 without an error banner.
var errNotProven = errors.New("not proven")

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errNotProven) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app is the state shared by subcommands, built once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	metrics  *prometheus.Registry
	prover   *prover.Prover
	closers  []io.Closer
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Refinement predicate prover",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `orizon-prove decides whether a refinement predicate follows from known
facts, using pattern rules, Fourier-Motzkin elimination over the rationals
and an optional external SMT solver.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help":
				return nil
			}
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output JSON")

	cmd.AddCommand(
		proveCmd(a),
		brandCmd(a),
		widenCmd(a),
		registryCmd(a),
		serveCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				cli.PrintVersion(cmd.OutOrStdout(), appName, a.jsonOutput)
			},
		},
	)

	return cmd
}

func (a *app) setup(logOut io.Writer) error {
	bootstrap, err := cli.NewLogger(logOut, levelOr(a.logLevel, "info"))
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader(bootstrap).Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = cli.NewLogger(logOut, levelOr(a.logLevel, cfg.Log.Level))
	if err != nil {
		return err
	}

	a.registry = registry.New()
	registry.RegisterBuiltins(a.registry)
	if len(cfg.Registry.Seeds) > 0 {
		n, err := a.registry.LoadSeeds(cfg.Registry.Seeds, cli.Version, a.logger)
		if err != nil {
			return err
		}
		a.logger.Debug("seed packs loaded", slog.Int("packs", n))
	}

	a.metrics = prometheus.NewRegistry()
	opts := []prover.Option{
		prover.WithLogger(a.logger),
		prover.WithTimeout(cfg.Solver.Timeout),
		prover.WithMetrics(prover.NewMetrics(a.metrics)),
	}

	if plugin := a.plugin(); plugin != nil {
		opts = append(opts, prover.WithPlugin(plugin))
	}

	a.prover = prover.New(a.registry, opts...)
	return nil
}

func (a *app) plugin() solver.Plugin {
	switch a.cfg.Solver.Kind {
	case config.SolverSMTLib:
		return solver.NewSMTLib(a.cfg.Solver.Command, a.logger)
	case config.SolverRemote:
		tlsCfg := solver.InsecureTLS()
		if !a.cfg.Solver.Insecure {
			tlsCfg = nil
		}
		r := solver.NewRemote(a.cfg.Solver.Endpoint, tlsCfg, a.logger)
		a.closers = append(a.closers, r)
		return r
	default:
		return nil
	}
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func levelOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
