package session

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/psykit/psykit/pkg/psylib"
)

// Block describes one experiment block: a named routine, an optional
// run condition, and an optional loop guard.
type Block struct {
	// Name identifies the routine the player runs for this block.
	Name string `json:"name"`
	// RunIf, when non-empty, is an expression gating the whole block.
	RunIf string `json:"runIf,omitempty"`
	// LoopWhile, when non-empty, is an expression re-evaluated before
	// each iteration; the block repeats while it holds. Empty means
	// run once.
	LoopWhile string `json:"loopWhile,omitempty"`
	// Conditions optionally names a tabular resource whose rows drive
	// the block's iterations.
	Conditions string `json:"conditions,omitempty"`
	// Resources lists resource names this block needs downloaded
	// before it starts. Empty means the block only relies on the
	// session-wide preload.
	Resources []string `json:"resources,omitempty"`
}

// Manifest is the on-disk description of an experiment session.
type Manifest struct {
	Name      string                 `json:"name"`
	Resources []psylib.ResourceEntry `json:"resources"`
	Blocks    []Block                `json:"blocks"`
}

// ParseManifest decodes and validates manifest JSON.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads a manifest from the given filesystem.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	return ParseManifest(raw)
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no name")
	}
	names := make(map[string]bool, len(m.Resources))
	for _, r := range m.Resources {
		if r.Name == "" {
			return fmt.Errorf("manifest %q: resource with empty name", m.Name)
		}
		if names[r.Name] {
			return fmt.Errorf("manifest %q: duplicate resource %q", m.Name, r.Name)
		}
		names[r.Name] = true
	}
	seen := make(map[string]bool, len(m.Blocks))
	for i, b := range m.Blocks {
		if b.Name == "" {
			return fmt.Errorf("manifest %q: block %d has no name", m.Name, i)
		}
		if seen[b.Name] {
			return fmt.Errorf("manifest %q: duplicate block %q", m.Name, b.Name)
		}
		seen[b.Name] = true
		for _, res := range b.Resources {
			if !names[res] {
				return fmt.Errorf("manifest %q: block %q references unknown resource %q", m.Name, b.Name, res)
			}
		}
		if b.Conditions != "" && !names[b.Conditions] {
			return fmt.Errorf("manifest %q: block %q references unknown conditions %q", m.Name, b.Name, b.Conditions)
		}
	}
	return nil
}

// ResourceNames returns the names of all declared resources, in
// manifest order.
func (m *Manifest) ResourceNames() []string {
	out := make([]string, 0, len(m.Resources))
	for _, r := range m.Resources {
		out = append(out, r.Name)
	}
	return out
}
