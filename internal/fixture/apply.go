package fixture

import (
	"fmt"
	"sort"

	"memsys/internal/memfs"
)

// Target is what Apply needs from a backend. Both *memfs.FS and
// *hostfs.FS satisfy it.
type Target interface {
	memfs.DirAllCreator
	memfs.FileWriter
	memfs.Symlinker
	memfs.PermissionSetter
	memfs.EnvWriter
	memfs.CurrentDirSetter
}

// Apply populates target from m. Clock settings are applied first so that
// created entries carry the fixed time; they are skipped with a warning
// when the target has no such control. Directory modes are set last so a
// read-only directory does not block its own children.
func Apply(target Target, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	applyClock(target, m)

	type dirMode struct {
		path string
		mode uint32
	}
	var dirModes []dirMode

	for i, e := range m.Entries {
		var err error
		switch e.Type {
		case EntryDir:
			err = target.CreateDirAll(e.Path)
			if err == nil && e.Mode != 0 {
				dirModes = append(dirModes, dirMode{e.Path, e.Mode})
			}
		case EntryFile:
			err = applyFile(target, e)
		case EntrySymlink:
			if err = createParent(target, e.Path); err == nil {
				err = target.SymlinkFile(e.Target, e.Path)
			}
		}
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.Path, err)
		}
	}

	for i := len(dirModes) - 1; i >= 0; i-- {
		if err := target.SetPermissions(dirModes[i].path, dirModes[i].mode); err != nil {
			return fmt.Errorf("chmod %s: %w", dirModes[i].path, err)
		}
	}

	keys := make([]string, 0, len(m.Env))
	for k := range m.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		target.SetEnvVar(k, m.Env[k])
	}

	if m.Cwd != "" {
		if err := target.SetCurrentDir(m.Cwd); err != nil {
			return fmt.Errorf("cwd %s: %w", m.Cwd, err)
		}
	}

	logger.Debug("Applied %d entries and %d env vars", len(m.Entries), len(m.Env))
	return nil
}

func applyFile(target Target, e Entry) error {
	data, err := e.Content()
	if err != nil {
		return err
	}
	if err := createParent(target, e.Path); err != nil {
		return err
	}
	if err := target.Write(e.Path, data); err != nil {
		return err
	}
	if e.Mode != 0 {
		return target.SetPermissions(e.Path, e.Mode)
	}
	return nil
}

func createParent(target Target, p string) error {
	parent := memfs.Dir(p)
	if parent == "" {
		return nil
	}
	return target.CreateDirAll(parent)
}

func applyClock(target Target, m *Manifest) {
	if m.Time != nil {
		if tf, ok := target.(memfs.TimeFixer); ok {
			t := *m.Time
			tf.SetTime(&t)
		} else {
			logger.Warn("Target %T cannot fix the clock; ignoring time", target)
		}
	}
	if m.Seed != nil {
		if s, ok := target.(memfs.Seeder); ok {
			seed := *m.Seed
			s.SetSeed(&seed)
		} else {
			logger.Warn("Target %T cannot be seeded; ignoring seed", target)
		}
	}
	if m.DisableSleep {
		if sd, ok := target.(memfs.SleepDisabler); ok {
			sd.DisableSleep()
		} else {
			logger.Warn("Target %T cannot disable sleep", target)
		}
	}
}
