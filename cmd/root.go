/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/go-kit/log"
	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/logging"
	"github.com/jacobarthurs/pgplanviz/internal/output"
	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default warn, info for serve)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: logfmt, json")
}

var rootCmd = &cobra.Command{
	Use:          "pgplanviz",
	SilenceUsage: true,
	Short:        "Visualize, analyze and compare PostgreSQL query plans",
	Long: `pgplanviz turns PostgreSQL EXPLAIN plans into positioned graphs with
severity badges and per-node advice.

Plans can be rendered in the terminal, exported as Graphviz DOT, stored in
Neo4j, or served over HTTP to a browser front end.
Supports SQL, and JSON input formats.`,
	Example: `  # Analyze a single query
  pgplanviz analyze query.sql

  # Compare two plans
  pgplanviz compare old.sql new.sql

  # Render a plan with Graphviz
  pgplanviz analyze plan.json --format dot | dot -Tsvg > plan.svg

  # Serve the HTTP API
  pgplanviz serve

  # Setup connection profiles
  pgplanviz init`,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cliLogger writes diagnostics to stderr so stdout stays parseable.
func cliLogger(cmd *cobra.Command) (log.Logger, error) {
	lvl, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if lvl == "" {
		lvl = "warn"
	}
	return logging.New(os.Stderr, format, lvl)
}

// cliAdvisor builds the advisor named by --advisor. OpenAI settings come from
// the same config file and environment as serve.
func cliAdvisor(cmd *cobra.Command, cfg *config.Config) (advisor.Advisor, error) {
	kind, _ := cmd.Flags().GetString("advisor")
	return advisor.New(kind, cfg.OpenAI)
}

func advisorContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeouts.Advisor > 0 {
		return context.WithTimeout(ctx, cfg.Timeouts.Advisor)
	}
	return context.WithCancel(ctx)
}

func theme(cmd *cobra.Command) output.Theme {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewTheme(os.Stdout, !noColor && output.ColorEnabled(os.Stdout))
}

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %q: must be one of %v", format, allowed)
}
