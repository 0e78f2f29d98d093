package buildcfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyPresetReplacesNonAliasTablesOnly(t *testing.T) {
	config := Document{
		"alias":  map[string]any{"b": "cargo build"},
		"target": map[string]any{"runner": "old-runner"},
	}
	preset := Document{
		"target": map[string]any{"runner": "new-runner"},
		"build":  map[string]any{"rustflags": []any{"-C", "link-arg=-Tlink.x"}},
		"alias":  map[string]any{"b": "should not leak through"},
	}

	got := ApplyPreset(config, preset)

	if got["target"].(map[string]any)["runner"] != "new-runner" {
		t.Fatalf("target table not replaced: %+v", got["target"])
	}
	if _, ok := got["build"]; !ok {
		t.Fatal("new table from preset not present")
	}
	if got["alias"].(map[string]any)["b"] != "cargo build" {
		t.Fatalf("alias table must survive untouched, got %+v", got["alias"])
	}
}

func TestCleanKeepsOnlyAlias(t *testing.T) {
	config := Document{
		"alias":  map[string]any{"b": "cargo build"},
		"target": map[string]any{"runner": "qemu"},
		"build":  map[string]any{"rustflags": []any{"-C", "foo"}},
	}

	got := Clean(config)

	if len(got) != 1 {
		t.Fatalf("Clean left %d tables, want 1: %+v", len(got), got)
	}
	if got["alias"].(map[string]any)["b"] != "cargo build" {
		t.Fatalf("alias table not preserved: %+v", got["alias"])
	}
}

func TestCleanOnConfigWithoutAliasIsEmpty(t *testing.T) {
	got := Clean(Document{"target": map[string]any{"runner": "qemu"}})
	if len(got) != 0 {
		t.Fatalf("Clean() = %+v, want empty", got)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	want := Document{"alias": map[string]any{"b": "cargo build"}}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	alias, ok := got["alias"].(map[string]any)
	if !ok || alias["b"] != "cargo build" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestListPresetsSortsByNameAndSkipsNonToml(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"release.toml", "debug.toml", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[alias]\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	presets, err := ListPresets(dir)
	if err != nil {
		t.Fatalf("ListPresets: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("ListPresets() = %+v, want 2 entries", presets)
	}
	if presets[0].Name != "debug" || presets[1].Name != "release" {
		t.Fatalf("presets not sorted by name: %+v", presets)
	}
}
