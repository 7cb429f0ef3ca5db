// Package fixture describes file-system trees declaratively. A Manifest
// lists directories, files and symlinks together with the environment,
// working directory and clock settings a test expects, and can be loaded
// from YAML or JSON, applied to any backend, and captured back from a
// populated *memfs.FS.
package fixture

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the manifest format version written by Save.
const Version = 1

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrUnknownFormat   = errors.New("unknown manifest format")
)

// EntryType names the kind of node an Entry creates.
type EntryType string

const (
	EntryDir     EntryType = "dir"
	EntryFile    EntryType = "file"
	EntrySymlink EntryType = "symlink"
)

// Manifest is the on-disk description of a tree.
type Manifest struct {
	Version      int               `json:"version" yaml:"version"`
	Seed         *uint64           `json:"seed,omitempty" yaml:"seed,omitempty"`
	Time         *time.Time        `json:"time,omitempty" yaml:"time,omitempty"`
	DisableSleep bool              `json:"disable_sleep,omitempty" yaml:"disable_sleep,omitempty"`
	Cwd          string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Entries      []Entry           `json:"entries" yaml:"entries"`
}

// Entry is one node. Files take at most one content source; with none the
// file is empty.
type Entry struct {
	Path   string    `json:"path" yaml:"path"`
	Type   EntryType `json:"type" yaml:"type"`
	Mode   uint32    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Text   string    `json:"text,omitempty" yaml:"text,omitempty"`
	Base64 string    `json:"base64,omitempty" yaml:"base64,omitempty"`
	JSON   any       `json:"json,omitempty" yaml:"json,omitempty"`
	YAML   any       `json:"yaml,omitempty" yaml:"yaml,omitempty"`
	Target string    `json:"target,omitempty" yaml:"target,omitempty"`
}

func (e Entry) sources() int {
	n := 0
	if e.Text != "" {
		n++
	}
	if e.Base64 != "" {
		n++
	}
	if e.JSON != nil {
		n++
	}
	if e.YAML != nil {
		n++
	}
	return n
}

// Content renders the file body described by e.
func (e Entry) Content() ([]byte, error) {
	switch {
	case e.Text != "":
		return []byte(e.Text), nil
	case e.Base64 != "":
		data, err := base64.StdEncoding.DecodeString(e.Base64)
		if err != nil {
			return nil, fmt.Errorf("%s: decoding base64: %w", e.Path, err)
		}
		return data, nil
	case e.JSON != nil:
		data, err := json.MarshalIndent(e.JSON, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%s: encoding JSON: %w", e.Path, err)
		}
		return append(data, '\n'), nil
	case e.YAML != nil:
		data, err := yaml.Marshal(e.YAML)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding YAML: %w", e.Path, err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// Validate checks that every entry is well formed.
func (m *Manifest) Validate() error {
	if m.Version > Version {
		return fmt.Errorf("%w: version %d is newer than %d", ErrInvalidManifest, m.Version, Version)
	}
	for i, e := range m.Entries {
		if e.Path == "" {
			return fmt.Errorf("%w: entry %d has no path", ErrInvalidManifest, i)
		}
		switch e.Type {
		case EntryDir:
			if e.sources() > 0 || e.Target != "" {
				return fmt.Errorf("%w: directory %s has content", ErrInvalidManifest, e.Path)
			}
		case EntryFile:
			if e.sources() > 1 {
				return fmt.Errorf("%w: file %s has more than one content source", ErrInvalidManifest, e.Path)
			}
			if e.Target != "" {
				return fmt.Errorf("%w: file %s has a target", ErrInvalidManifest, e.Path)
			}
		case EntrySymlink:
			if e.Target == "" {
				return fmt.Errorf("%w: symlink %s has no target", ErrInvalidManifest, e.Path)
			}
			if e.sources() > 0 {
				return fmt.Errorf("%w: symlink %s has content", ErrInvalidManifest, e.Path)
			}
		default:
			return fmt.Errorf("%w: entry %s has unknown type %q", ErrInvalidManifest, e.Path, e.Type)
		}
	}
	return nil
}

// MergeEnv copies env into the manifest, replacing existing keys.
func (m *Manifest) MergeEnv(env map[string]string) {
	if len(env) == 0 {
		return
	}
	if m.Env == nil {
		m.Env = make(map[string]string, len(env))
	}
	for k, v := range env {
		m.Env[k] = v
	}
}
