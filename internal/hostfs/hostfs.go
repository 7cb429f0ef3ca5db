// Package hostfs implements the memfs capability interfaces on the real
// file system, confined to a base directory. Paths are slash-separated and
// absolute paths are taken relative to the base.
package hostfs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"memsys/internal/logging"
	"memsys/internal/memfs"
)

var (
	hostLogger = logging.GetLogger().WithPrefix("hostfs")
)

// FS is a host directory viewed through the memfs capabilities.
type FS struct {
	base string

	mu  sync.RWMutex
	cwd string
}

var (
	_ memfs.Canonicalizer               = (*FS)(nil)
	_ memfs.CurrentDirGetter            = (*FS)(nil)
	_ memfs.CurrentDirSetter            = (*FS)(nil)
	_ memfs.EnvReader                   = (*FS)(nil)
	_ memfs.EnvWriter                   = (*FS)(nil)
	_ memfs.DirAllCreator               = (*FS)(nil)
	_ memfs.FileReader                  = (*FS)(nil)
	_ memfs.StringReader                = (*FS)(nil)
	_ memfs.FileWriter                  = (*FS)(nil)
	_ memfs.FileRemover                 = (*FS)(nil)
	_ memfs.SymlinkRemover              = (*FS)(nil)
	_ memfs.DirRemover                  = (*FS)(nil)
	_ memfs.Renamer                     = (*FS)(nil)
	_ memfs.HardLinker                  = (*FS)(nil)
	_ memfs.Symlinker                   = (*FS)(nil)
	_ memfs.LinkReader                  = (*FS)(nil)
	_ memfs.PermissionSetter            = (*FS)(nil)
	_ memfs.ExistenceChecker            = (*FS)(nil)
	_ memfs.Opener[*os.File]            = (*FS)(nil)
	_ memfs.MetadataReader[fs.FileInfo] = (*FS)(nil)
	_ memfs.DirReader[fs.DirEntry]      = (*FS)(nil)
	_ memfs.Clock                       = (*FS)(nil)
	_ memfs.Entropy                     = (*FS)(nil)
	_ memfs.Sleeper                     = (*FS)(nil)
)

// New returns an FS rooted at base, which must be an existing directory.
func New(base string) (*FS, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "hostfs", Path: base, Err: memfs.ErrNotDir}
	}
	hostLogger.Debug("Rooted host file system at %s", abs)
	return &FS{base: abs, cwd: "/"}, nil
}

// Base returns the host directory backing "/".
func (h *FS) Base() string {
	return h.base
}

// virtual returns the normalized absolute form of p.
func (h *FS) virtual(p string) string {
	if !memfs.IsAbs(p) {
		h.mu.RLock()
		p = memfs.Join(h.cwd, p)
		h.mu.RUnlock()
	}
	return memfs.Normalize(p)
}

// real maps p onto the host.
func (h *FS) real(p string) string {
	return filepath.Join(h.base, filepath.FromSlash(h.virtual(p)))
}

// fromReal maps a host path back, reporting false when it lies outside base.
func (h *FS) fromReal(hostPath string) (string, bool) {
	rel, err := filepath.Rel(h.base, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "/", true
	}
	return "/" + filepath.ToSlash(rel), true
}

func (h *FS) Canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(h.real(p))
	if err != nil {
		return "", err
	}
	v, ok := h.fromReal(resolved)
	if !ok {
		return "", &fs.PathError{Op: memfs.OpCanonicalize, Path: p, Err: fmt.Errorf("resolves outside %s: %w", h.base, memfs.ErrInvalidInput)}
	}
	return v, nil
}

func (h *FS) CurrentDir() (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cwd, nil
}

func (h *FS) SetCurrentDir(p string) error {
	canonical, err := h.Canonicalize(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(h.real(canonical))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: memfs.OpChdir, Path: p, Err: memfs.ErrNotDir}
	}
	h.mu.Lock()
	h.cwd = canonical
	h.mu.Unlock()
	return nil
}

// EnvVarOS reads the process environment.
func (h *FS) EnvVarOS(key string) (string, bool) {
	return os.LookupEnv(key)
}

// SetEnvVar writes the process environment.
func (h *FS) SetEnvVar(key, value string) {
	if err := os.Setenv(key, value); err != nil {
		hostLogger.Warn("Failed to set %s: %v", key, err)
	}
}

func (h *FS) CreateDirAll(p string) error {
	return os.MkdirAll(h.real(p), 0o777)
}

func (h *FS) Read(p string) ([]byte, error) {
	return os.ReadFile(h.real(p))
}

func (h *FS) ReadToString(p string) (string, error) {
	data, err := h.Read(p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", &fs.PathError{Op: memfs.OpRead, Path: p, Err: memfs.ErrInvalidData}
	}
	return string(data), nil
}

func (h *FS) Write(p string, data []byte) error {
	return os.WriteFile(h.real(p), data, 0o666)
}

// RemoveFile removes a regular file, refusing directories and symlinks
// like memfs.
func (h *FS) RemoveFile(p string) error {
	hostPath := h.real(p)
	info, err := os.Lstat(hostPath)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return &fs.PathError{Op: memfs.OpRemove, Path: p, Err: memfs.ErrNotFile}
	}
	return os.Remove(hostPath)
}

// RemoveSymlink removes the link at p, never its target.
func (h *FS) RemoveSymlink(p string) error {
	hostPath := h.real(p)
	info, err := os.Lstat(hostPath)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return &fs.PathError{Op: memfs.OpRemove, Path: p, Err: fmt.Errorf("not a symlink: %w", memfs.ErrInvalidInput)}
	}
	return os.Remove(hostPath)
}

func (h *FS) RemoveDirAll(p string) error {
	return os.RemoveAll(h.real(p))
}

func (h *FS) Rename(from, to string) error {
	return os.Rename(h.real(from), h.real(to))
}

func (h *FS) HardLink(src, dst string) error {
	return os.Link(h.real(src), h.real(dst))
}

// SymlinkFile creates link. An absolute original is rebased under the base
// directory; a relative one is stored as given.
func (h *FS) SymlinkFile(original, link string) error {
	target := filepath.FromSlash(original)
	if memfs.IsAbs(original) {
		target = h.real(original)
	}
	return os.Symlink(target, h.real(link))
}

func (h *FS) SymlinkDir(original, link string) error {
	return h.SymlinkFile(original, link)
}

func (h *FS) ReadLink(p string) (string, error) {
	target, err := os.Readlink(h.real(p))
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(target) {
		if v, ok := h.fromReal(target); ok {
			return v, nil
		}
	}
	return filepath.ToSlash(target), nil
}

func (h *FS) SetPermissions(p string, mode uint32) error {
	return os.Chmod(h.real(p), fs.FileMode(mode)&fs.ModePerm)
}

func (h *FS) Exists(p string) (bool, error) {
	_, err := os.Stat(h.real(p))
	return presence(err)
}

func (h *FS) IsFile(p string) (bool, error) {
	info, err := os.Stat(h.real(p))
	if ok, err := presence(err); !ok {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (h *FS) IsDir(p string) (bool, error) {
	info, err := os.Stat(h.real(p))
	if ok, err := presence(err); !ok {
		return false, err
	}
	return info.IsDir(), nil
}

func (h *FS) IsSymlink(p string) (bool, error) {
	info, err := os.Lstat(h.real(p))
	if ok, err := presence(err); !ok {
		return false, err
	}
	return info.Mode()&fs.ModeSymlink != 0, nil
}

func presence(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Open maps opts onto os.OpenFile flags.
func (h *FS) Open(p string, opts memfs.OpenOptions) (*os.File, error) {
	var flag int
	switch {
	case opts.Write && opts.Read:
		flag = os.O_RDWR
	case opts.Write || opts.Append:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if opts.Append {
		flag |= os.O_APPEND
	}
	if opts.Truncate {
		flag |= os.O_TRUNC
	}
	if opts.Create || opts.CreateNew {
		flag |= os.O_CREATE
	}
	if opts.CreateNew {
		flag |= os.O_EXCL
	}
	mode := fs.FileMode(opts.Mode)
	if mode == 0 {
		mode = 0o666
	}
	return os.OpenFile(h.real(p), flag, mode)
}

func (h *FS) Metadata(p string) (fs.FileInfo, error) {
	return os.Stat(h.real(p))
}

func (h *FS) SymlinkMetadata(p string) (fs.FileInfo, error) {
	return os.Lstat(h.real(p))
}

func (h *FS) ReadDirAll(p string) ([]fs.DirEntry, error) {
	return os.ReadDir(h.real(p))
}

func (h *FS) TimeNow() time.Time {
	return time.Now()
}

func (h *FS) Random(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

func (h *FS) Sleep(d time.Duration) {
	time.Sleep(d)
}
