/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/logging"
	"github.com/jacobarthurs/pgplanviz/internal/profile"
	"github.com/jacobarthurs/pgplanviz/internal/server"
	"github.com/jacobarthurs/pgplanviz/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the plan graph HTTP API",
	Long: `Start the HTTP API used by the browser front end.

The API connects to PostgreSQL on behalf of the browser, runs EXPLAIN, and
returns positioned plan graphs with severity badges. Advice comes from the
configured advisor (local rules or OpenAI).

Settings are read from .pgplanviz.yaml in the current directory or $HOME,
then PGPLANVIZ_* environment variables, then flags. Badge thresholds and
layout come from the profile config written by 'pgplanviz init'.

Endpoints:
  GET  /api/                   service banner
  POST /api/graph              graph for a posted plan, with optional diagnostics
  POST /api/pg/connect         open a database session
  POST /api/pg/execute-explain run EXPLAIN in a session
  POST /api/pg/analyze-plan    advice for a plan
  POST /api/pg/compare-plans   compare two plans
  POST /api/pg/chat            follow-up questions about a plan
  GET  /healthz                liveness
  GET  /metrics                Prometheus metrics`,
	Example: `  # Serve on the default port with local advice
  pgplanviz serve

  # Use OpenAI and restrict CORS to the front end
  OPENAI_API_KEY=sk-... pgplanviz serve --advisor openai --cors-origins http://localhost:3000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndMerge(cmd)
		if err != nil {
			return err
		}

		logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
		if err != nil {
			return err
		}

		opts, err := profile.Options()
		if err != nil {
			return err
		}

		adv, err := advisor.New(cfg.Advisor, cfg.OpenAI)
		if err != nil {
			return fmt.Errorf("advisor: %w", err)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv, err := server.New(cfg, server.Deps{
			Store:    session.NewStore(opts, cfg.Timeouts.Connect),
			Advisor:  adv,
			Graph:    opts,
			Logger:   logger,
			Registry: reg,
		})
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8001", "Address to listen on")
	serveCmd.Flags().String("advisor", "local", "Advice source: local, openai, none")
	serveCmd.Flags().String("cors-origins", "*", "Comma separated list of allowed origins")
	serveCmd.Flags().String("openai-model", advisor.DefaultModel, "OpenAI chat model")
}
