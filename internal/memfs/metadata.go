package memfs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Metadata is a point-in-time snapshot of an entry's attributes. It
// implements fs.FileInfo.
type Metadata struct {
	name     string
	ftype    FileType
	size     int64
	mode     uint32
	created  time.Time
	modified time.Time
}

var _ fs.FileInfo = Metadata{}

func fileMetadata(name string, d *fileData) Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Metadata{
		name:     name,
		ftype:    TypeFile,
		size:     int64(len(d.data)),
		mode:     d.mode,
		created:  d.created,
		modified: d.modified,
	}
}

func entryMetadata(e entry) Metadata {
	switch n := e.(type) {
	case *fileNode:
		return fileMetadata(n.fname, n.data)
	case *dirNode:
		return Metadata{
			name:     n.dname,
			ftype:    TypeDir,
			mode:     n.mode,
			created:  n.created,
			modified: n.modified,
		}
	case *symlinkNode:
		return Metadata{
			name:     n.sname,
			ftype:    TypeSymlink,
			size:     int64(len(n.target)),
			mode:     0o777,
			created:  n.created,
			modified: n.modified,
		}
	}
	panic(fmt.Sprintf("memfs: unknown entry type %T", e))
}

func (m Metadata) Type() FileType { return m.ftype }
func (m Metadata) Created() time.Time { return m.created }
func (m Metadata) Modified() time.Time { return m.modified }
func (m Metadata) Permissions() uint32 { return m.mode }
func (m Metadata) IsFile() bool { return m.ftype == TypeFile }
func (m Metadata) IsSymlink() bool { return m.ftype == TypeSymlink }
func (m Metadata) Name() string { return m.name }
func (m Metadata) Size() int64 { return m.size }
func (m Metadata) ModTime() time.Time { return m.modified }
func (m Metadata) IsDir() bool { return m.ftype == TypeDir }
func (m Metadata) Sys() any { return nil }

// Mode returns the permission bits with the fs.FileMode type bits set.
func (m Metadata) Mode() fs.FileMode {
	mode := fs.FileMode(m.mode) & fs.ModePerm
	switch m.ftype {
	case TypeDir:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	}
	return mode
}

var errNoField = fmt.Errorf("field not modelled in memory: %w", ErrUnsupported)

// Accessed, Dev, Ino, Uid, Gid and Nlink are not tracked.
func (m Metadata) Accessed() (time.Time, error) { return time.Time{}, errNoField }
func (m Metadata) Dev() (uint64, error) { return 0, errNoField }
func (m Metadata) Ino() (uint64, error) { return 0, errNoField }
func (m Metadata) Uid() (uint32, error) { return 0, errNoField }
func (m Metadata) Gid() (uint32, error) { return 0, errNoField }
func (m Metadata) Nlink() (uint64, error) { return 0, errNoField }

// Metadata returns the attributes of the entry at p, following symlinks.
func (vfs *FS) Metadata(p string) (Metadata, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return Metadata{}, newError(OpMetadata, p, err)
	}
	_, e, err := vfs.lookupEntry(abs)
	if err != nil {
		return Metadata{}, newError(OpMetadata, p, err)
	}
	return entryMetadata(e), nil
}

// SymlinkMetadata is Metadata without following a symlink in the final
// position.
func (vfs *FS) SymlinkMetadata(p string) (Metadata, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return Metadata{}, newError(OpSymlinkStat, p, err)
	}
	r, err := vfs.lookup(abs, false)
	if err != nil {
		return Metadata{}, newError(OpSymlinkStat, p, err)
	}
	if r.status == lookupNotFound {
		return Metadata{}, newError(OpSymlinkStat, p, ErrNotFound)
	}
	return entryMetadata(r.entry), nil
}

// Exists reports whether p resolves to an entry. A missing path is not an
// error; a symlink loop is.
func (vfs *FS) Exists(p string) (bool, error) {
	_, err := vfs.Metadata(p)
	return presence(err)
}

// ExistsNoErr is Exists treating every error as absence.
func (vfs *FS) ExistsNoErr(p string) bool {
	ok, _ := vfs.Exists(p)
	return ok
}

// IsFile reports whether p resolves to a file.
func (vfs *FS) IsFile(p string) (bool, error) {
	m, err := vfs.Metadata(p)
	if ok, err := presence(err); !ok {
		return false, err
	}
	return m.IsFile(), nil
}

// IsDir reports whether p resolves to a directory.
func (vfs *FS) IsDir(p string) (bool, error) {
	m, err := vfs.Metadata(p)
	if ok, err := presence(err); !ok {
		return false, err
	}
	return m.IsDir(), nil
}

// IsSymlink reports whether p itself is a symlink.
func (vfs *FS) IsSymlink(p string) (bool, error) {
	m, err := vfs.SymlinkMetadata(p)
	if ok, err := presence(err); !ok {
		return false, err
	}
	return m.IsSymlink(), nil
}

func presence(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err), errors.Is(err, ErrLeadsIntoFile):
		return false, nil
	default:
		return false, err
	}
}

// DirEntry is one child of a directory listing. It implements fs.DirEntry.
type DirEntry struct {
	path string
	meta Metadata
}

var _ fs.DirEntry = DirEntry{}

// Name returns the child's name.
func (d DirEntry) Name() string { return d.meta.name }

// Path returns the listed directory joined with Name.
func (d DirEntry) Path() string { return d.path }

// FileType returns the child's own type; symlinks are not followed.
func (d DirEntry) FileType() FileType { return d.meta.ftype }

// Metadata returns the snapshot taken when the directory was read.
func (d DirEntry) Metadata() Metadata { return d.meta }

func (d DirEntry) IsDir() bool { return d.meta.IsDir() }
func (d DirEntry) Type() fs.FileMode { return d.meta.Mode().Type() }
func (d DirEntry) Info() (fs.FileInfo, error) { return d.meta, nil }

// DirIterator walks a snapshot of a directory's children in name order.
// Changes to the tree after ReadDir returns are not reflected.
type DirIterator struct {
	entries []DirEntry
	pos     int
	cur     DirEntry
}

// Next advances to the next entry and reports whether there is one.
func (it *DirIterator) Next() bool {
	if it.pos >= len(it.entries) {
		return false
	}
	it.cur = it.entries[it.pos]
	it.pos++
	return true
}

// Entry returns the entry Next advanced to.
func (it *DirIterator) Entry() DirEntry {
	return it.cur
}

// Err always returns nil; the snapshot cannot fail part way.
func (it *DirIterator) Err() error {
	return nil
}

// ReadDir lists the directory at p, following symlinks to reach it.
func (vfs *FS) ReadDir(p string) (*DirIterator, error) {
	entries, err := vfs.ReadDirAll(p)
	if err != nil {
		return nil, err
	}
	return &DirIterator{entries: entries}, nil
}

// ReadDirAll returns every child of the directory at p sorted by name.
func (vfs *FS) ReadDirAll(p string) ([]DirEntry, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return nil, newError(OpReadDir, p, err)
	}
	_, e, err := vfs.lookupEntry(abs)
	if err != nil {
		return nil, newError(OpReadDir, p, err)
	}
	dir, ok := e.(*dirNode)
	if !ok {
		return nil, newError(OpReadDir, p, ErrNotDir)
	}

	// Entry paths are built on the path as given, not its canonical form.
	base := parsePath(p).normalized()
	entries := make([]DirEntry, 0, len(dir.children))
	for _, child := range dir.children {
		entries = append(entries, DirEntry{
			path: base.child(child.name()).String(),
			meta: entryMetadata(child),
		})
	}
	return entries, nil
}

// WalkFunc is called by Walk for each entry. Returning fs.SkipDir from a
// directory skips its children; fs.SkipAll stops the walk.
type WalkFunc func(path string, entry DirEntry, err error) error

// Walk visits root and everything under it in lexical order. Symlinks are
// reported but never followed.
func (vfs *FS) Walk(root string, fn WalkFunc) error {
	meta, err := vfs.SymlinkMetadata(root)
	if err != nil {
		err = fn(root, DirEntry{}, err)
	} else {
		err = vfs.walk(root, DirEntry{path: root, meta: meta}, fn)
	}
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (vfs *FS) walk(p string, d DirEntry, fn WalkFunc) error {
	if err := fn(p, d, nil); err != nil || !d.IsDir() {
		if errors.Is(err, fs.SkipDir) && d.IsDir() {
			return nil
		}
		return err
	}

	children, err := vfs.ReadDirAll(p)
	if err != nil {
		err = fn(p, d, err)
		if err != nil {
			if errors.Is(err, fs.SkipDir) {
				return nil
			}
			return err
		}
	}
	for _, child := range children {
		if err := vfs.walk(child.Path(), child, fn); err != nil {
			if errors.Is(err, fs.SkipDir) {
				break
			}
			return err
		}
	}
	return nil
}
