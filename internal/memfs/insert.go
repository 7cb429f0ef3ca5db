package memfs

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Insert writes data to p, creating missing parent directories first.
func (vfs *FS) Insert(p string, data []byte) error {
	if parent := Dir(p); parent != "" {
		if err := vfs.CreateDirAll(parent); err != nil {
			return err
		}
	}
	return vfs.Write(p, data)
}

// InsertString is Insert for string content.
func (vfs *FS) InsertString(p, s string) error {
	return vfs.Insert(p, []byte(s))
}

// InsertJSON writes v as indented JSON.
func (vfs *FS) InsertJSON(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return newError(OpWrite, p, fmt.Errorf("encoding JSON: %w", err))
	}
	return vfs.Insert(p, append(data, '\n'))
}

// InsertYAML writes v as YAML.
func (vfs *FS) InsertYAML(p string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return newError(OpWrite, p, fmt.Errorf("encoding YAML: %w", err))
	}
	return vfs.Insert(p, data)
}

// MustInsert is Insert that panics on failure, for test setup.
func (vfs *FS) MustInsert(p string, data []byte) *FS {
	if err := vfs.Insert(p, data); err != nil {
		panic(err)
	}
	return vfs
}
