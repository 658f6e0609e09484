/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"os"

	"github.com/go-kit/log/level"
	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/output"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/present"
	"github.com/jacobarthurs/pgplanviz/internal/profile"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a single query plan",
	Long: `Build the plan graph of a single PostgreSQL query and annotate it with
per-node advice.

Input can be a SQL file, or JSON file (EXPLAIN output).
Use "-" to read from stdin. If no file is provided, enters interactive mode.

For SQL input, a database connection is required to run EXPLAIN (ANALYZE, COSTS, VERBOSE, BUFFERS, FORMAT JSON).

Advice comes from the built-in rules (--advisor local, the default), from an
OpenAI model (--advisor openai, reads openai.api_key or OPENAI_API_KEY), or is
skipped entirely (--advisor none). If the advisor fails the graph is still
printed and the failure is logged.`,
	Example: `  # Analyze from file
  pgplanviz analyze query.sql

  # Use saved profile
  pgplanviz analyze query.sql --profile prod

  # Plan only, without executing the query
  pgplanviz analyze query.sql --no-analyze

  # Graph as JSON for another tool
  pgplanviz analyze plan.json --format json --advisor none

  # Read from stdin
  cat query.sql | pgplanviz analyze -

  # Interactive mode
  pgplanviz analyze`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")
		noAnalyze, _ := cmd.Flags().GetBool("no-analyze")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if err := checkFormat(format, "text", "json", "dot"); err != nil {
			return err
		}

		logger, err := cliLogger(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		adv, err := cliAdvisor(cmd, cfg)
		if err != nil {
			return err
		}

		connStr, err := profile.ResolveConnStr(db, profileName)
		if err != nil {
			return err
		}
		opts, err := profile.Options()
		if err != nil {
			return err
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		in, err := plan.Resolve(cmd.Context(), file, connStr, "", plan.Options{Analyze: !noAnalyze, Timeout: timeout})
		if err != nil {
			return err
		}

		ctx, cancel := advisorContext(cmd.Context(), cfg)
		defer cancel()

		var source present.DiagnosticSource
		if adv != nil {
			source = adv
		}
		view := present.Analyze(ctx, in, source, opts)
		if view.Err != nil {
			level.Warn(logger).Log("msg", "diagnostics unavailable", "err", view.Err)
		}
		level.Debug(logger).Log("msg", "graph built", "nodes", len(view.Graph.Nodes), "fingerprint", view.Graph.Fingerprint)

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, analyzeJSON{
				Query:        in.Query,
				Plan:         in.Explain,
				AnalysisView: view,
			})
		case "dot":
			return output.RenderDOT(os.Stdout, view.Graph)
		default:
			return output.RenderAnalysisText(os.Stdout, in.Explain, view, theme(cmd))
		}
	},
}

type analyzeJSON struct {
	Query string             `json:"query,omitempty"`
	Plan  plan.ExplainOutput `json:"plan"`
	present.AnalysisView
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	analyzeCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json, dot")
	analyzeCmd.Flags().StringP("advisor", "a", "local", "Advice source: local, openai, none")
	analyzeCmd.Flags().Bool("no-analyze", false, "Run EXPLAIN without ANALYZE (the query is not executed)")
	analyzeCmd.Flags().Duration("timeout", 0, "Statement timeout for EXPLAIN, e.g. 30s (0 for none)")
	analyzeCmd.Flags().Bool("no-color", false, "Disable colored output")
	analyzeCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
