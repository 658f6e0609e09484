/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/present"
	"github.com/jacobarthurs/pgplanviz/internal/profile"
	"github.com/jacobarthurs/pgplanviz/internal/sink"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Store a plan graph in Neo4j",
	Long: `Build the annotated graph of a query plan and store it in a Neo4j database.

Each plan is stored under a name as a (:Plan) node with a [:ROOT] relationship
to its root (:PlanNode); operators are linked with [:HAS_CHILD]. Exporting a
plan under an existing name replaces it.

Neo4j settings are read from .pgplanviz.yaml (neo4j.uri, neo4j.user,
neo4j.password, neo4j.database), PGPLANVIZ_NEO4J_* environment variables
and flags. Input handling is the same as for analyze.`,
	Example: `  # Export a saved plan
  pgplanviz export plan.json --name orders-report

  # Run the query and export, without advice
  pgplanviz export query.sql --profile prod --advisor none --neo4j-pass secret`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		name, _ := cmd.Flags().GetString("name")
		noAnalyze, _ := cmd.Flags().GetBool("no-analyze")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		logger, err := cliLogger(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.LoadAndMerge(cmd)
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
		if in.Explain.Root() == nil {
			return fmt.Errorf("input contains no plan to export")
		}

		actx, cancel := advisorContext(cmd.Context(), cfg)
		defer cancel()
		var source present.DiagnosticSource
		if adv != nil {
			source = adv
		}
		view := present.Analyze(actx, in, source, opts)
		if view.Err != nil {
			level.Warn(logger).Log("msg", "exporting without diagnostics", "err", view.Err)
		}

		if name == "" {
			name = "plan-" + view.Graph.Fingerprint[:12]
		}

		store, err := sink.NewNeo4j(cfg.Neo4j)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		if err := store.VerifyConnectivity(cmd.Context()); err != nil {
			return fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.Neo4j.URI, err)
		}

		stats, err := store.Export(cmd.Context(), name, in, view.Graph)
		if err != nil {
			return err
		}
		level.Info(logger).Log("msg", "plan exported", "name", name, "nodes", len(view.Graph.Nodes))

		fmt.Printf("Exported plan %q: %d nodes created, %d relationships created, %d nodes replaced.\n",
			name, stats.NodesCreated, stats.RelationshipsCreated, stats.NodesDeleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	exportCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	exportCmd.Flags().StringP("name", "n", "", "Name to store the plan under (default: derived from the plan shape)")
	exportCmd.Flags().StringP("advisor", "a", "local", "Advice source: local, openai, none")
	exportCmd.Flags().Bool("no-analyze", false, "Run EXPLAIN without ANALYZE (the query is not executed)")
	exportCmd.Flags().Duration("timeout", 0, "Statement timeout for EXPLAIN, e.g. 30s (0 for none)")
	exportCmd.Flags().String("neo4j-uri", "bolt://localhost:7687", "URI for the Neo4j database")
	exportCmd.Flags().String("neo4j-user", "neo4j", "Username for the Neo4j database")
	exportCmd.Flags().String("neo4j-pass", "", "Password for the Neo4j database")
	exportCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
