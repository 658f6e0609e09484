// Package advisor produces diagnostics, comparisons and chat replies for
// execution plans. The OpenAI implementation asks a model; the local one
// runs the rule-based analyzer and the structural comparator.
package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

var (
	ErrChatUnsupported = errors.New("chat is not supported by this advisor")
	ErrNoChoices       = errors.New("model returned no choices")
	ErrMissingAPIKey   = errors.New("openai api key not configured")
)

type ChatRequest struct {
	Message string
	Plan    plan.Input
	History []ChatMessage
}

type Advisor interface {
	AnalyzePlan(ctx context.Context, in plan.Input) (*Analysis, error)
	ComparePlans(ctx context.Context, a, b plan.Input) (*Comparison, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// New returns the advisor named by kind. "none" and the empty string return
// a nil Advisor, meaning graphs are rendered without diagnostics.
func New(kind string, cfg OpenAIConfig) (Advisor, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(), nil
	case "openai":
		o, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown advisor %q: expected local, openai or none", kind)
	}
}
