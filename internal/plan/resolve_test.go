package plan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDetectType_Extensions(t *testing.T) {
	cases := map[string]string{
		"plan.json":   "json",
		"query.sql":   "sql",
		"explain.txt": "text",
	}
	for name, want := range cases {
		if got := detectType([]byte("anything"), name); got != want {
			t.Errorf("detectType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestDetectType_JSONContentWithWhitespace(t *testing.T) {
	got := detectType([]byte(`  [{"Plan": {"Node Type": "Seq Scan"}}]`), "-")
	if got != "json" {
		t.Errorf("got %q, want json", got)
	}
}

func TestDetectType_SingleObject(t *testing.T) {
	got := detectType([]byte(`{"Plan": {"Node Type": "Result"}}`), "")
	if got != "json" {
		t.Errorf("got %q, want json", got)
	}
}

func TestDetectType_TextExplain(t *testing.T) {
	got := detectType([]byte("Seq Scan on users  (cost=0.00..1.01 rows=1 width=4)"), "")
	if got != "text" {
		t.Errorf("got %q, want text", got)
	}
}

func TestDetectType_SQLKeywords(t *testing.T) {
	for _, q := range []string{"select 1", "WITH x AS (SELECT 1) SELECT * FROM x", "values (1)", "delete from t"} {
		if got := detectType([]byte(q), ""); got != "sql" {
			t.Errorf("detectType(%q) = %q, want sql", q, got)
		}
	}
}

func TestDetectType_ExtensionOverridesContent(t *testing.T) {
	got := detectType([]byte(`[{"Plan": {}}]`), "queries.sql")
	if got != "sql" {
		t.Errorf("got %q, want sql (extension takes priority)", got)
	}
}

func TestDetectType_Unknown(t *testing.T) {
	if got := detectType([]byte("hello there"), ""); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestReadInput_Stdin(t *testing.T) {
	orig := stdin
	stdin = strings.NewReader(`[{"Plan": {}}]`)
	defer func() { stdin = orig }()

	data, err := readInput("-", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `[{"Plan": {}}]` {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestReadInput_MissingFile(t *testing.T) {
	if _, err := readInput("/nonexistent/file.json", ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolve_JSONFile(t *testing.T) {
	path := writeFile(t, "plan.json", `[{
		"Plan": {
			"Node Type": "Seq Scan",
			"Relation Name": "users",
			"Total Cost": 20.0,
			"Plan Rows": 100,
			"Actual Total Time": 0.1,
			"Actual Rows": 100,
			"Actual Loops": 1
		},
		"Execution Time": 0.2
	}]`)

	in, err := Resolve(context.Background(), path, "", "", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Explain.Plan.NodeType != "Seq Scan" {
		t.Errorf("NodeType = %q, want Seq Scan", in.Explain.Plan.NodeType)
	}
	if in.Query != "" {
		t.Errorf("Query = %q, want empty for JSON input", in.Query)
	}
}

func TestResolve_SQLFileWithoutDB(t *testing.T) {
	path := writeFile(t, "query.sql", "SELECT 1")

	_, err := Resolve(context.Background(), path, "", "", Options{})
	if err == nil || !strings.Contains(err.Error(), "requires a database connection") {
		t.Fatalf("expected missing connection error, got %v", err)
	}
}

func TestResolve_RejectsExplainPrefix(t *testing.T) {
	path := writeFile(t, "query.sql", "EXPLAIN SELECT 1")

	_, err := Resolve(context.Background(), path, "postgres://localhost/db", "", Options{})
	if err == nil || !strings.Contains(err.Error(), "EXPLAIN prefix") {
		t.Fatalf("expected EXPLAIN prefix error, got %v", err)
	}
}

func TestResolve_TextFormat(t *testing.T) {
	path := writeFile(t, "plan.txt", "Seq Scan on users  (cost=0.00..1.01 rows=1 width=4)")

	_, err := Resolve(context.Background(), path, "", "", Options{})
	if err == nil || !strings.Contains(err.Error(), "text format not supported") {
		t.Fatalf("expected text format error, got %v", err)
	}
}

func TestResolve_InvalidJSON(t *testing.T) {
	path := writeFile(t, "bad.json", "not json at all")

	if _, err := Resolve(context.Background(), path, "", "", Options{}); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestResolve_EmptyJSONArray(t *testing.T) {
	path := writeFile(t, "empty.json", "[]")

	if _, err := Resolve(context.Background(), path, "", "", Options{}); err == nil {
		t.Fatal("expected error for empty JSON array")
	}
}

func TestResolve_UnknownLabelInError(t *testing.T) {
	orig := stdin
	stdin = strings.NewReader("hello there")
	defer func() { stdin = orig }()

	_, err := Resolve(context.Background(), "-", "", "second ", Options{})
	if err == nil || !strings.Contains(err.Error(), "detect second input") {
		t.Fatalf("expected labelled detection error, got %v", err)
	}
}

func TestExplainPrefix(t *testing.T) {
	if got := explainPrefix(true); !strings.Contains(got, "ANALYZE") {
		t.Errorf("analyze prefix = %q", got)
	}
	if got := explainPrefix(false); strings.Contains(got, "ANALYZE") {
		t.Errorf("plain prefix = %q, should not analyze", got)
	}
}
