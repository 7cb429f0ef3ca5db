package fixture

import (
	"bytes"
	"encoding/base64"
	"unicode/utf8"

	"memsys/internal/memfs"
)

// Snapshot captures everything under root as a manifest. Entries come out
// in walk order, so applying the result to an empty FS rebuilds the same
// tree. The environment and working directory are captured too; clock
// settings are not observable and are left unset.
func Snapshot(vfs *memfs.FS, root string) (*Manifest, error) {
	m := &Manifest{Version: Version}

	err := vfs.Walk(root, func(p string, d memfs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		meta := d.Metadata()
		e := Entry{Path: memfs.Normalize(p), Mode: meta.Permissions()}

		switch d.FileType() {
		case memfs.TypeDir:
			e.Type = EntryDir
		case memfs.TypeSymlink:
			target, err := vfs.ReadLink(p)
			if err != nil {
				return err
			}
			e.Type = EntrySymlink
			e.Target = target
			e.Mode = 0
		default:
			data, err := vfs.Read(p)
			if err != nil {
				return err
			}
			e.Type = EntryFile
			if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
				e.Text = string(data)
			} else {
				e.Base64 = base64.StdEncoding.EncodeToString(data)
			}
		}
		m.Entries = append(m.Entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if env := vfs.EnvVars(); len(env) > 0 {
		m.Env = env
	}
	if cwd, err := vfs.CurrentDir(); err == nil && cwd != memfs.Normalize(root) {
		m.Cwd = cwd
	}

	logger.Debug("Captured %d entries under %s", len(m.Entries), root)
	return m, nil
}
