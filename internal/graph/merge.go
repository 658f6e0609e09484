package graph

import (
	"encoding/json"
	"errors"

	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

var ErrStaleDiagnostics = errors.New("diagnostics belong to a different plan")

type Diagnostic struct {
	Severity severity.Level `json:"severity"`
	Advice   string         `json:"advice"`
}

// UnmarshalJSON reads severity the way advisor output is read: a value
// outside the known scale becomes Unclassified and the advice is kept.
func (d *Diagnostic) UnmarshalJSON(data []byte) error {
	var raw struct {
		Severity string `json:"severity"`
		Advice   string `json:"advice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	level, err := severity.ParseLevel(raw.Severity)
	if err != nil {
		level = severity.Unclassified
	}
	d.Severity, d.Advice = level, raw.Advice
	return nil
}

// DiagnosticMap is keyed by node id as assigned by Flatten and Walk.
type DiagnosticMap map[string]Diagnostic

// Diagnostics is a DiagnosticMap tagged with the fingerprint of the graph it
// was computed for. An empty fingerprint means unknown.
type Diagnostics struct {
	Fingerprint string        `json:"fingerprint,omitempty"`
	Nodes       DiagnosticMap `json:"nodes"`
}

// Merge returns a copy of g with each node's severity and advice taken from
// diags. Nodes without an entry fall back to severity none and no advice.
// Node styles and edge colors follow the merged severity.
func Merge(g Graph, diags DiagnosticMap) Graph {
	out := g.Clone()

	border := make(map[string]string, len(out.Nodes))
	for i := range out.Nodes {
		n := &out.Nodes[i]
		d, ok := diags[n.ID]
		switch {
		case !ok:
			n.Severity, n.Advice = severity.None, ""
		case d.Severity == severity.Unclassified:
			n.Severity, n.Advice = severity.None, d.Advice
		default:
			n.Severity, n.Advice = d.Severity, d.Advice
		}
		n.Style = styleFor(n.Hint, n.Severity)
		border[n.ID] = n.Style.Border
	}

	for i := range out.Edges {
		if c, ok := border[out.Edges[i].Target]; ok {
			out.Edges[i].Color = c
		}
	}
	return out
}

// Annotate merges d onto g, refusing diagnostics computed for another tree
// shape. On refusal the returned graph carries no annotations.
func Annotate(g Graph, d Diagnostics) (Graph, error) {
	if d.Fingerprint != "" && d.Fingerprint != g.Fingerprint {
		return Merge(g, nil), ErrStaleDiagnostics
	}
	return Merge(g, d.Nodes), nil
}
