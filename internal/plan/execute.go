package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Options controls how EXPLAIN is run against a live database.
type Options struct {
	// Analyze executes the statement (EXPLAIN ANALYZE). The transaction is
	// always rolled back afterwards.
	Analyze bool
	Timeout time.Duration
}

func explainPrefix(analyze bool) string {
	if analyze {
		return "EXPLAIN (ANALYZE, COSTS, VERBOSE, BUFFERS, FORMAT JSON) "
	}
	return "EXPLAIN (COSTS, VERBOSE, BUFFERS, FORMAT JSON) "
}

func Execute(ctx context.Context, dbConn string, sql string, opts Options) ([]ExplainOutput, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty SQL statement")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dbConn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jsonStr string
	err = tx.QueryRow(ctx, explainPrefix(opts.Analyze)+sql).Scan(&jsonStr)
	if err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}

	return ParseJSONPlan([]byte(jsonStr))
}
