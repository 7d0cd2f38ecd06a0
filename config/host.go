// Package config is the demo host's persisted state: the SFZ path it last
// loaded plus any opcode-level parameter overrides the user dialed in
// through the host UI (an editor, a CLI flag, a MIDI-learn binding — the
// core has no opinion on the source). spec.md §6 places persistence outside
// the core entirely; config.HostState is the concrete struct cmd/sfzplay
// loads and saves so this repo has a real, buildable answer to "where does
// that live" instead of leaving it as an unimplemented interface.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override pins a single opcode on a single region to a value other than
// what the loaded SFZ file specifies. RegionIndex is the 0-based position of
// the region in load order (the same order synth.Synth.GetNumRegions()
// counts); Opcode is the family name region.Opcode.Family() would report
// (e.g. "cutoff", "eq_freq"); Parameter is the family's numeric suffix, or
// nil for an unindexed opcode.
type Override struct {
	RegionIndex int    `yaml:"region"`
	Opcode      string `yaml:"opcode"`
	Parameter   *int   `yaml:"parameter,omitempty"`
	Value       string `yaml:"value"`
}

// HostState is the host's entire persisted footprint: which instrument was
// open and what the user changed about it since.
type HostState struct {
	SFZPath      string     `yaml:"sfz_path"`
	SampleRoot   string     `yaml:"sample_root,omitempty"`
	MasterVolume float64    `yaml:"master_volume"`
	Overrides    []Override `yaml:"overrides,omitempty"`
}

// DefaultHostState is what a fresh host starts from before any file is
// loaded or any override applied.
func DefaultHostState() HostState {
	return HostState{MasterVolume: 1.0}
}

// Load reads and unmarshals a YAML host-state file. A missing file is not
// an error — it's the first-run case — and returns DefaultHostState().
func Load(path string) (HostState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultHostState(), nil
	}
	if err != nil {
		return HostState{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var s HostState
	if err := yaml.Unmarshal(data, &s); err != nil {
		return HostState{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if s.MasterVolume == 0 {
		s.MasterVolume = 1.0
	}
	return s, nil
}

// Save marshals and writes the host state to path, creating parent
// directories as needed.
func (s HostState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ResolveSamplePath joins a sample path recorded against SampleRoot and
// rejects any result that escapes it, the same containment check a host
// needs before trusting a path read back out of a config file (or an SFZ
// region's sample= opcode, if a future host wires this in) well enough to
// open it. A zero-value SampleRoot disables the check and just cleans the
// join, matching a host that hasn't opted into sandboxing sample lookup.
func (s HostState) ResolveSamplePath(rel string) (string, error) {
	if s.SampleRoot == "" {
		return filepath.Clean(rel), nil
	}
	if filepath.IsAbs(rel) || strings.Contains(rel, "..") {
		return "", fmt.Errorf("config: sample path %q escapes sample root", rel)
	}
	root, err := filepath.Abs(s.SampleRoot)
	if err != nil {
		return "", fmt.Errorf("config: resolve sample root: %w", err)
	}
	full := filepath.Join(root, rel)
	relBack, err := filepath.Rel(root, full)
	if err != nil || strings.HasPrefix(relBack, "..") {
		return "", fmt.Errorf("config: sample path %q escapes sample root", rel)
	}
	return full, nil
}
