package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJSONPlan accepts the array EXPLAIN (FORMAT JSON) returns, or a single
// entry of it as stored by the web API.
func ParseJSONPlan(data []byte) ([]ExplainOutput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single ExplainOutput
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("invalid EXPLAIN JSON: %w", err)
		}
		return []ExplainOutput{single}, nil
	}

	var plans []ExplainOutput
	if err := json.Unmarshal(trimmed, &plans); err != nil {
		return nil, fmt.Errorf("invalid EXPLAIN JSON: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("empty EXPLAIN output")
	}
	return plans, nil
}
