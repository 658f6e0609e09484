// Package sink stores plan graphs in Neo4j so several plans can be queried
// side by side with Cypher.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Stats counts what an export changed in the database.
type Stats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	PropertiesSet        int
}

type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4j(cfg config.Neo4jConfig) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	return &Neo4j{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4j) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4j) VerifyConnectivity(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Export replaces the stored copy of the plan named name with g. Nodes are
// keyed by (plan, id) so re-exporting the same plan is idempotent.
func (s *Neo4j) Export(ctx context.Context, name string, in plan.Input, g graph.Graph) (Stats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var stats Stats

		res, err := tx.Run(ctx, deleteQuery, map[string]any{"plan": name})
		if err != nil {
			return nil, fmt.Errorf("failed to delete previous plan: %w", err)
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		stats.add(summary.Counters())

		query, params := upsertStatement(name, in, g)
		res, err = tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert plan graph: %w", err)
		}
		summary, err = res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		stats.add(summary.Counters())
		return stats, nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("exporting plan %q: %w", name, err)
	}
	return out.(Stats), nil
}

func (s *Stats) add(c neo4j.Counters) {
	s.NodesCreated += c.NodesCreated()
	s.NodesDeleted += c.NodesDeleted()
	s.RelationshipsCreated += c.RelationshipsCreated()
	s.PropertiesSet += c.PropertiesSet()
}

const deleteQuery = "MATCH (n:PlanNode {plan: $plan}) DETACH DELETE n"

// upsertStatement builds one parameterized statement that stores the plan,
// its nodes and the parent->child relationships.
func upsertStatement(name string, in plan.Input, g graph.Graph) (string, map[string]any) {
	var query bytes.Buffer

	nodes := make([]map[string]any, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = map[string]any{
			"id":    n.ID,
			"props": nodeProps(n),
		}
	}
	params := map[string]any{
		"plan": name,
		"meta": map[string]any{
			"fingerprint":    g.Fingerprint,
			"query":          in.Query,
			"execution_time": in.Explain.ExecutionTime,
			"planning_time":  in.Explain.PlanningTime,
			"nodes":          len(g.Nodes),
			"exported_at":    time.Now().UTC().Format(time.RFC3339),
		},
		"nodes": nodes,
	}

	query.WriteString("MERGE (p:Plan {name: $plan})\n")
	query.WriteString("SET p += $meta\n")
	query.WriteString("WITH p\n")
	query.WriteString("UNWIND $nodes AS node_data\n")
	query.WriteString("MERGE (n:PlanNode {plan: $plan, id: node_data.id})\n")
	query.WriteString("SET n += node_data.props\n")
	query.WriteString("WITH p, n WHERE n.id = $root\n")
	query.WriteString("MERGE (p)-[:ROOT]->(n)\n")
	params["root"] = graph.NodeID(0)

	if len(g.Edges) > 0 {
		edges := make([]map[string]string, len(g.Edges))
		for i, e := range g.Edges {
			edges[i] = map[string]string{
				"source": e.Source,
				"target": e.Target,
				"color":  e.Color,
			}
		}
		params["edges"] = edges
		query.WriteString("WITH DISTINCT p\n")
		query.WriteString("UNWIND $edges AS edge_data\n")
		query.WriteString("MATCH (parent:PlanNode {plan: $plan, id: edge_data.source})\n")
		query.WriteString("MATCH (child:PlanNode {plan: $plan, id: edge_data.target})\n")
		query.WriteString("MERGE (parent)-[r:HAS_CHILD]->(child)\n")
		query.WriteString("SET r.color = edge_data.color\n")
	}

	return query.String(), params
}

// nodeProps flattens a node into the primitive properties Neo4j can store.
func nodeProps(n graph.Node) map[string]any {
	props := map[string]any{
		"path":     n.Path,
		"label":    n.Label,
		"depth":    n.Depth,
		"severity": n.Severity.String(),
		"hint":     n.Hint.String(),
		"fill":     n.Style.Fill,
		"border":   n.Style.Border,
	}
	if n.Advice != "" {
		props["advice"] = n.Advice
	}
	for key, prop := range propertyNames {
		if v, ok := n.Attributes[key]; ok {
			props[prop] = v
		}
	}
	if b := n.Badges.Cost; b != nil {
		props["cost_level"] = b.Level.String()
	}
	if b := n.Badges.Time; b != nil {
		props["time_level"] = b.Level.String()
	}
	if b := n.Badges.Rows; b != nil {
		props["rows_level"] = b.Level.String()
	}
	return props
}

var propertyNames = map[string]string{
	"Total Cost":    "total_cost",
	"Startup Cost":  "startup_cost",
	"Plan Rows":     "plan_rows",
	"Actual Rows":   "actual_rows",
	"Actual Time":   "actual_time",
	"Actual Loops":  "actual_loops",
	"Relation Name": "relation",
	"Alias":         "alias",
	"Index Name":    "index",
	"Filter":        "filter",
	"Index Cond":    "index_cond",
	"Hash Cond":     "hash_cond",
	"Join Type":     "join_type",
	"Sort Method":   "sort_method",
}
