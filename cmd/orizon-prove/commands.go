package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orizon-lang/refinement/internal/cli"
	"github.com/orizon-lang/refinement/internal/proof"
	"github.com/orizon-lang/refinement/internal/registry"
	"github.com/orizon-lang/refinement/internal/server"
)

func proveCmd(a *app) *cobra.Command {
	var factArgs []string

	cmd := &cobra.Command{
		Use:   "prove <goal>",
		Short: "Prove a goal predicate from facts",
		Example: `  orizon-prove prove "x + y > 0" --fact "x: x > 0" --fact "y: y >= 0"
  orizon-prove prove "a > 0" -f "a > b" -f "b > 0" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cli.ParseFacts(factArgs)
			if err != nil {
				return err
			}
			r := a.prover.TryProve(cmd.Context(), args[0], fs)
			return a.report(cmd, r)
		},
	}

	cmd.Flags().StringArrayVarP(&factArgs, "fact", "f", nil, `Known fact as "variable: predicate" (repeatable)`)
	return cmd
}

func brandCmd(a *app) *cobra.Command {
	var factArgs []string

	cmd := &cobra.Command{
		Use:     "brand <variable> <brand>",
		Short:   "Prove that a variable satisfies a brand's predicate",
		Example: `  orizon-prove brand port Port --fact "port: port >= 1024 && port <= 2048"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cli.ParseFacts(factArgs)
			if err != nil {
				return err
			}
			r := a.prover.ProveBrand(cmd.Context(), args[0], args[1], fs)
			return a.report(cmd, r)
		},
	}

	cmd.Flags().StringArrayVarP(&factArgs, "fact", "f", nil, `Known fact as "variable: predicate" (repeatable)`)
	return cmd
}

func widenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "widen <from> <to>",
		Short:   "Check that one brand widens to another",
		Example: `  orizon-prove widen "Range<0, 10>" Percentage`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.report(cmd, a.prover.Widen(cmd.Context(), args[0], args[1]))
		},
	}
}

func (a *app) report(cmd *cobra.Command, r proof.Result) error {
	if err := cli.PrintResult(cmd.OutOrStdout(), r, a.jsonOutput); err != nil {
		return err
	}
	if !r.Proven {
		return errNotProven
	}
	return nil
}

type brandRow struct {
	Brand    string                    `json:"brand"`
	Template string                    `json:"template"`
	Info     registry.DecidabilityInfo `json:"decidability"`
}

func registryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "List registered brands and subtyping rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []brandRow
			for _, b := range a.registry.Brands() {
				tmpl, _ := a.registry.Predicate(b)
				rows = append(rows, brandRow{Brand: b, Template: tmpl, Info: a.registry.Decidability(b)})
			}
			rules := a.registry.SubtypingRules()

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"brands": rows, "subtyping": rules})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BRAND\tPREDICATE\tDECIDABILITY\tSTRATEGY")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Brand, r.Template, r.Info.Decidability, r.Info.PreferredStrategy)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "FROM\tTO\tPROOF\t")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.From, r.To, r.ProofID)
			}
			return tw.Flush()
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prover over HTTP/3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := a.cfg.Server
			if srv.CertFile == "" {
				a.logger.Warn("no certificate configured, using a generated one",
					slog.Any("hosts", server.SANs(addr, srv.SelfSigned.Hosts)),
					slog.String("key_type", srv.SelfSigned.KeyType))
			}
			tlsCfg, err := server.ServerTLS(addr, server.TLSOptions{
				CertFile: srv.CertFile,
				KeyFile:  srv.KeyFile,
				Hosts:    srv.SelfSigned.Hosts,
				ValidFor: srv.SelfSigned.ValidFor,
				KeyType:  srv.SelfSigned.KeyType,
			})
			if err != nil {
				return fmt.Errorf("tls: %w", err)
			}

			if a.cfg.Registry.Watch && len(a.cfg.Registry.Seeds) > 0 {
				w, err := a.registry.Watch(a.cfg.Registry.Seeds, cli.Version, a.logger)
				if err != nil {
					return err
				}
				a.closers = append(a.closers, w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := server.New(addr, tlsCfg, a.prover, a.metrics, a.logger)
			bound, err := s.Start()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on https://%s\n", bound)

			<-ctx.Done()
			a.logger.Info("shutting down", slog.String("addr", bound))
			return s.Stop()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "UDP listen address (default from config)")
	return cmd
}
