package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Input is a resolved plan together with the SQL text it came from, when known.
type Input struct {
	Explain ExplainOutput
	Query   string
}

var stdin io.Reader = os.Stdin

func Resolve(ctx context.Context, input string, dbConn string, label string, opts Options) (Input, error) {
	data, err := readInput(input, label)
	if err != nil {
		return Input{}, err
	}

	var plans []ExplainOutput
	var query string

	switch detectType(data, input) {
	case "json":
		plans, err = ParseJSONPlan(data)
	case "sql":
		query = strings.TrimSpace(string(data))
		if strings.HasPrefix(strings.ToUpper(query), "EXPLAIN") {
			return Input{}, fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
		}
		if dbConn == "" {
			return Input{}, fmt.Errorf("SQL input requires a database connection")
		}
		plans, err = Execute(ctx, dbConn, query, opts)
	case "text":
		return Input{}, fmt.Errorf(`text format not supported - use JSON format:

%s<your query>

Then provide the complete JSON output.`, explainPrefix(true))
	default:
		return Input{}, fmt.Errorf("unable to detect %sinput type: expected JSON plan, SQL query, or .json/.sql file", label)
	}

	if err != nil {
		return Input{}, err
	}
	if len(plans) == 0 {
		return Input{}, fmt.Errorf("no query plan found in %sinput", label)
	}
	return Input{Explain: plans[0], Query: query}, nil
}

func readInput(input string, label string) ([]byte, error) {
	switch input {
	case "":
		return readInteractive(label)
	case "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(input)
	}
}

func readInteractive(label string) ([]byte, error) {
	fmt.Printf("Paste %s%soutput or SQL query", label, explainPrefix(true))
	if runtime.GOOS == "windows" {
		fmt.Print(" (Ctrl+Z, Enter to submit)\n")
	} else {
		fmt.Print(" (Ctrl+D to submit)\n")
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if (strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")) && !json.Valid(data) {
		return nil, fmt.Errorf("input appears truncated; for large inputs use: pgplanviz analyze <file>")
	}

	return data, nil
}

var sqlKeywords = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "VALUES", "TABLE", "EXPLAIN"}

func detectType(data []byte, filename string) string {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return "json"
	case strings.HasSuffix(filename, ".sql"):
		return "sql"
	case strings.HasSuffix(filename, ".txt"):
		return "text"
	}

	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "json"
	}
	if strings.Contains(trimmed, "(cost=") {
		return "text"
	}

	upper := strings.ToUpper(trimmed)
	for _, kw := range sqlKeywords {
		if strings.HasPrefix(upper, kw) {
			return "sql"
		}
	}

	return "unknown"
}
