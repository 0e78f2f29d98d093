// Package buildcfg models the kconfig tool's configuration surface: a
// writeable .cargo/config.toml and a directory of named preset
// options.toml files, each a set of top-level tables. load replaces
// the live config's non-alias tables with a preset's, and clean strips
// them, always leaving the alias table untouched.
package buildcfg

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

// aliasTable is the one top-level table load and clean never touch.
const aliasTable = "alias"

// Document is a parsed TOML document as a set of top-level tables.
type Document map[string]any

// Load parses path as a TOML document.
func Load(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, kernerr.New(kernerr.InvalidArgument, "reading config: "+err.Error())
	}
	var doc Document
	if err := toml.Unmarshal(b, &doc); err != nil {
		return nil, kernerr.New(kernerr.InvalidArgument, "parsing config: "+err.Error())
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save writes doc to path as TOML.
func Save(path string, doc Document) error {
	b, err := toml.Marshal(doc)
	if err != nil {
		return kernerr.New(kernerr.InvalidArgument, "encoding config: "+err.Error())
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return kernerr.New(kernerr.InvalidArgument, "writing config: "+err.Error())
	}
	return nil
}

// Preset is one named options.toml file discovered in a presets
// directory.
type Preset struct {
	Name string
	Path string
}

// ListPresets enumerates the *.toml files directly under dir,
// returning them sorted by name for a stable, predictable listing in
// the interactive UI.
func ListPresets(dir string) ([]Preset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kernerr.New(kernerr.InvalidArgument, "reading presets directory: "+err.Error())
	}
	var out []Preset
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".toml")]
		out = append(out, Preset{Name: name, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ApplyPreset replaces every non-alias top-level table in config with
// the corresponding table from preset, leaving config's own alias
// table (and any preset table also named alias) untouched.
func ApplyPreset(config, preset Document) Document {
	out := Document{}
	if a, ok := config[aliasTable]; ok {
		out[aliasTable] = a
	}
	for k, v := range preset {
		if k == aliasTable {
			continue
		}
		out[k] = v
	}
	return out
}

// Clean returns config with every top-level table removed except
// alias.
func Clean(config Document) Document {
	out := Document{}
	if a, ok := config[aliasTable]; ok {
		out[aliasTable] = a
	}
	return out
}
