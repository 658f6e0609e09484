package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origFunc := configDirFunc
	configDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	t.Cleanup(func() { configDirFunc = origFunc })
	return tmpDir
}

func mustAdd(t *testing.T, pairs ...string) {
	t.Helper()
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := Add(pairs[i], pairs[i+1]); err != nil {
			t.Fatalf("Add(%q) failed: %v", pairs[i], err)
		}
	}
}

func TestAdd_NewAndUpdate(t *testing.T) {
	setupTestConfig(t)
	mustAdd(t, "prod", "postgres://localhost/prod_v1", "prod", "postgres://localhost/prod_v2", "dev", "postgres://localhost/dev")

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Name != "prod" || profiles[0].ConnStr != "postgres://localhost/prod_v2" {
		t.Errorf("got %+v, want updated prod profile first", profiles[0])
	}
}

func TestRemove(t *testing.T) {
	setupTestConfig(t)
	mustAdd(t, "prod", "postgres://localhost/prod", "dev", "postgres://localhost/dev")
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	if err := Remove("staging"); err == nil {
		t.Error("expected error when removing non-existent profile")
	}
	if err := Remove("prod"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	profiles, _ := List()
	if len(profiles) != 1 || profiles[0].Name != "dev" {
		t.Errorf("remaining profiles = %+v, want [dev]", profiles)
	}
	if def, _ := GetDefault(); def != "" {
		t.Errorf("default = %q, want cleared with removed profile", def)
	}
}

func TestResolve(t *testing.T) {
	setupTestConfig(t)

	if _, err := Resolve("anything"); err == nil {
		t.Fatal("expected error when no config file exists")
	}

	mustAdd(t, "prod", "postgres://prod-host/db")
	connStr, err := Resolve("prod")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if connStr != "postgres://prod-host/db" {
		t.Errorf("ConnStr = %q", connStr)
	}
	if _, err := Resolve("nonexistent"); err == nil {
		t.Error("expected error for non-existent profile")
	}
}

func TestDefaults(t *testing.T) {
	setupTestConfig(t)
	mustAdd(t, "prod", "postgres://prod-host/db")

	if err := SetDefault("nonexistent"); err == nil {
		t.Error("expected error when setting non-existent profile as default")
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if def, _ := GetDefault(); def != "prod" {
		t.Errorf("default = %q, want prod", def)
	}
	if err := ClearDefault(); err != nil {
		t.Fatalf("ClearDefault failed: %v", err)
	}
	if def, _ := GetDefault(); def != "" {
		t.Errorf("default = %q, want empty", def)
	}
}

func TestResolveConnStr_Precedence(t *testing.T) {
	setupTestConfig(t)

	if got, _ := ResolveConnStr("", ""); got != "" {
		t.Errorf("no config: got %q, want empty", got)
	}

	mustAdd(t, "prod", "postgres://prod-host/db", "dev", "postgres://localhost/db")
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	cases := []struct {
		db, profile, want string
	}{
		{"postgres://direct/db", "dev", "postgres://direct/db"},
		{"", "dev", "postgres://localhost/db"},
		{"", "", "postgres://prod-host/db"},
	}
	for _, tc := range cases {
		got, err := ResolveConnStr(tc.db, tc.profile)
		if err != nil {
			t.Fatalf("ResolveConnStr(%q, %q): %v", tc.db, tc.profile, err)
		}
		if got != tc.want {
			t.Errorf("ResolveConnStr(%q, %q) = %q, want %q", tc.db, tc.profile, got, tc.want)
		}
	}
}

func TestList_EmptyConfig(t *testing.T) {
	setupTestConfig(t)

	profiles, err := List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles != nil {
		t.Errorf("expected nil profiles, got %v", profiles)
	}
}

func TestInit_WritesTemplateOnce(t *testing.T) {
	dir := setupTestConfig(t)

	path, err := Init(false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if path != filepath.Join(dir, "config.yaml") {
		t.Errorf("path = %q", path)
	}

	if _, err := Init(false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second Init error = %v, want ErrConfigExists", err)
	}
	if _, err := Init(true); err != nil {
		t.Errorf("forced Init failed: %v", err)
	}

	connStr, err := ResolveConnStr("", "")
	if err != nil {
		t.Fatalf("ResolveConnStr failed: %v", err)
	}
	if connStr == "" {
		t.Error("template default profile should resolve")
	}
}

func TestOptions(t *testing.T) {
	dir := setupTestConfig(t)

	opts, err := Options()
	if err != nil {
		t.Fatalf("Options without config: %v", err)
	}
	if opts != graph.DefaultOptions() {
		t.Errorf("got %+v, want defaults", opts)
	}

	data := "thresholds:\n  cost: 500\nlayout:\n  compact: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	opts, err = Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.Thresholds.Cost != 500 || opts.Thresholds.Time != 1 {
		t.Errorf("thresholds = %+v, want cost 500 and default time", opts.Thresholds)
	}
	if !opts.Layout.Compact || opts.Layout.RowHeight != graph.DefaultRowHeight {
		t.Errorf("layout = %+v, want compact with default spacing", opts.Layout)
	}
}

func TestOptions_InvalidYAML(t *testing.T) {
	dir := setupTestConfig(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("thresholds: ["), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Options(); err == nil {
		t.Error("expected parse error")
	}
}
