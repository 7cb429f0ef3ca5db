package memfs

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"memsys/internal/logging"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("memfs")
	errLogger = logging.GetLogger().WithPrefix("error")
)

// ErrEnvNotPresent is returned by EnvVar for an unset variable.
var ErrEnvNotPresent = errors.New("environment variable not present")

const defaultUmask uint32 = 0o022

// FS is an in-memory file system with its own working directory,
// environment, clock and random source. The tree, cwd, environment and
// clock configuration are guarded by one reader/writer lock; file content
// has a separate lock per file so open handles do not contend on the tree.
//
// An FS is safe for concurrent use. A *FileHandle is not.
type FS struct {
	mu           sync.RWMutex
	top          *dirNode // holds the root entries; "" is "/", "C:" a drive
	cwd          vpath
	envs         map[string]string
	fixedTime    *time.Time
	rng          *lcg
	sleepEnabled bool
	umask        uint32
}

// Option configures an FS at construction.
type Option func(*FS)

// WithSeed makes Random deterministic.
func WithSeed(seed uint64) Option {
	return func(vfs *FS) {
		vfs.setSeedLocked(&seed)
	}
}

// WithTime fixes the clock.
func WithTime(t time.Time) Option {
	return func(vfs *FS) {
		vfs.fixedTime = &t
	}
}

// WithSleepDisabled makes Sleep a no-op.
func WithSleepDisabled() Option {
	return func(vfs *FS) {
		vfs.sleepEnabled = false
	}
}

// WithCwd sets the initial working directory. It is not checked; the
// directory should be created before relative paths are used.
func WithCwd(p string) Option {
	return func(vfs *FS) {
		cwd := parsePath(p)
		if cwd.rooted || cwd.volume != "" {
			vfs.cwd = cwd.normalized()
		}
	}
}

// WithEnv seeds the environment map.
func WithEnv(envs map[string]string) Option {
	return func(vfs *FS) {
		maps.Copy(vfs.envs, envs)
	}
}

// New creates an FS containing only the root directory "/" with cwd "/".
func New(opts ...Option) *FS {
	vfs := NewEmpty(opts...)
	vfs.top.insertAt(0, newDirNode("", defaultDirMode, vfs.timeNowLocked()))
	vfsLogger.Debug("Created in-memory file system")
	return vfs
}

// NewEmpty creates an FS with no root entries at all. Roots ("/" or drive
// volumes such as "C:/") are created with CreateDirAll.
func NewEmpty(opts ...Option) *FS {
	vfs := &FS{
		top:          &dirNode{},
		cwd:          parsePath(separator),
		envs:         make(map[string]string),
		sleepEnabled: true,
		umask:        defaultUmask,
	}
	for _, opt := range opts {
		opt(vfs)
	}
	return vfs
}

// absolute folds p against the working directory. Caller holds vfs.mu.
func (vfs *FS) absolute(p string) (vpath, error) {
	if p == "" {
		return vpath{}, fmt.Errorf("empty path: %w", ErrInvalidInput)
	}
	vp := parsePath(p)
	if !vp.rooted && vp.volume == "" {
		vp = vfs.cwd.join(vp)
	}
	return vp.normalized(), nil
}

// Canonicalize returns the absolute, symlink-free, normalized form of an
// existing path.
func (vfs *FS) Canonicalize(p string) (string, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return "", newError(OpCanonicalize, p, err)
	}
	canonical, _, err := vfs.lookupEntry(abs)
	if err != nil {
		return "", newError(OpCanonicalize, p, err)
	}
	return canonical.String(), nil
}

// CurrentDir returns the working directory.
func (vfs *FS) CurrentDir() (string, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()
	return vfs.cwd.String(), nil
}

// SetCurrentDir changes the working directory. The path must resolve to an
// existing directory; the canonical form is stored.
func (vfs *FS) SetCurrentDir(p string) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return newError(OpChdir, p, err)
	}
	canonical, e, err := vfs.lookupEntry(abs)
	if err != nil {
		return newError(OpChdir, p, err)
	}
	if e.fileType() != TypeDir {
		return newError(OpChdir, p, ErrNotDir)
	}
	vfs.cwd = canonical
	vfsLogger.Debug("Changed working directory to %q", canonical.String())
	return nil
}

// EnvVarOS returns the value of key and whether it is set.
func (vfs *FS) EnvVarOS(key string) (string, bool) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()
	v, ok := vfs.envs[key]
	return v, ok
}

// EnvVar returns the value of key or ErrEnvNotPresent.
func (vfs *FS) EnvVar(key string) (string, error) {
	v, ok := vfs.EnvVarOS(key)
	if !ok {
		return "", newError(OpEnv, key, ErrEnvNotPresent)
	}
	return v, nil
}

// EnvVarPath returns the value of key as a path, or false when it is unset
// or empty.
func (vfs *FS) EnvVarPath(key string) (string, bool) {
	v, ok := vfs.EnvVarOS(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// SetEnvVar sets key to value.
func (vfs *FS) SetEnvVar(key, value string) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	vfs.envs[key] = value
}

// RemoveEnvVar unsets key.
func (vfs *FS) RemoveEnvVar(key string) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	delete(vfs.envs, key)
}

// EnvVars returns a copy of the environment.
func (vfs *FS) EnvVars() map[string]string {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()
	return maps.Clone(vfs.envs)
}

// HomeDir returns $HOME.
func (vfs *FS) HomeDir() (string, bool) {
	return vfs.EnvVarPath("HOME")
}

// CacheDir returns $HOME/.cache.
func (vfs *FS) CacheDir() (string, bool) {
	home, ok := vfs.HomeDir()
	if !ok {
		return "", false
	}
	return Join(home, ".cache"), true
}

// TempDir returns "tmp" under the first root. It does not create it.
func (vfs *FS) TempDir() (string, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	if len(vfs.top.children) == 0 {
		return "", newError(OpTempDir, "", fmt.Errorf("create a root before getting the temp dir: %w", ErrNotFound))
	}
	root := vpath{volume: vfs.top.children[0].name(), rooted: true}
	return root.child("tmp").String(), nil
}

// TempPath returns a fresh path "dir/<prefix><uuid>". The UUID is drawn
// from Random, so it is reproducible when a seed is set.
func (vfs *FS) TempPath(dir, prefix string) (string, error) {
	id, err := uuid.NewRandomFromReader(vfs.RandReader())
	if err != nil {
		return "", err
	}
	return Join(dir, prefix+id.String()), nil
}

// Umask returns the stored umask. It is recorded only, never applied.
func (vfs *FS) Umask() uint32 {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()
	return vfs.umask
}

// SetUmask stores a new umask and returns the previous one.
func (vfs *FS) SetUmask(mask uint32) uint32 {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	old := vfs.umask
	vfs.umask = mask
	return old
}
