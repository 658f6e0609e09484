package present

import (
	"sync"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// Ticket identifies one loaded plan. Diagnostics requested for a plan carry
// its ticket back so they can be dropped if another plan was loaded since.
type Ticket struct {
	Generation  uint64 `json:"generation"`
	Fingerprint string `json:"fingerprint"`
}

// Tracker holds the plan currently shown in one session.
type Tracker struct {
	mu   sync.Mutex
	opts graph.Options

	generation uint64
	base       graph.Graph
	current    graph.Graph
	input      plan.Input
	loaded     bool
}

func NewTracker(opts graph.Options) *Tracker {
	return &Tracker{opts: opts}
}

// Load replaces the tracked plan and returns the unannotated graph.
func (t *Tracker) Load(in plan.Input) (Ticket, graph.Graph) {
	g := graph.Build(in.Explain.Root(), t.opts)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	t.base, t.current = g, g
	t.input = in
	t.loaded = true
	return Ticket{Generation: t.generation, Fingerprint: g.Fingerprint}, g
}

// Apply merges d onto the tracked graph if ticket is still current. A stale
// ticket, or diagnostics for another tree shape, leave the tracked state
// untouched and return graph.ErrStaleDiagnostics with the unannotated graph.
func (t *Tracker) Apply(ticket Ticket, d graph.Diagnostics) (graph.Graph, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded || ticket.Generation != t.generation || ticket.Fingerprint != t.base.Fingerprint {
		return graph.Merge(t.base, nil), graph.ErrStaleDiagnostics
	}
	if d.Fingerprint == "" {
		d.Fingerprint = ticket.Fingerprint
	}

	g, err := graph.Annotate(t.base, d)
	if err != nil {
		return g, err
	}
	t.current = g
	return g, nil
}

// Current returns the latest graph for the session, annotated if diagnostics
// were applied, together with its ticket and input.
func (t *Tracker) Current() (Ticket, graph.Graph, plan.Input, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Ticket{Generation: t.generation, Fingerprint: t.base.Fingerprint}, t.current, t.input, t.loaded
}
