package memfs

import (
	"fmt"

	"memsys/internal/logging"
)

var (
	treeLogger = logging.GetLogger().WithPrefix("tree")
)

// CreateDirOptions controls CreateDir.
type CreateDirOptions struct {
	Recursive bool
	Mode      uint32 // zero means 0o777
}

func (o CreateDirOptions) mode() uint32 {
	if o.Mode == 0 {
		return defaultDirMode
	}
	return o.Mode
}

// findDirectory returns the directory at p. It first resolves p following
// symlinks so creation under a symlinked parent lands in the real location,
// then walks the canonical path from the root. With createMissing, absent
// components are inserted as empty directories. Caller holds vfs.mu, for
// writing when createMissing is set.
func (vfs *FS) findDirectory(p vpath, createMissing bool, mode uint32) (*dirNode, vpath, error) {
	r, err := vfs.lookup(p, true)
	if err != nil {
		return nil, vpath{}, err
	}
	canonical := r.path

	keys := canonical.keys()
	if len(keys) == 0 {
		return nil, vpath{}, fmt.Errorf("empty path: %w", ErrInvalidInput)
	}

	now := vfs.timeNowLocked()
	dir := vfs.top
	for _, key := range keys {
		i, found := dir.search(key)
		if !found {
			if !createMissing {
				return nil, vpath{}, ErrNotFound
			}
			created := newDirNode(key, mode, now)
			dir.insertAt(i, created)
			dir.touch(now)
			treeLogger.Debug("Created directory %q under %q", key, dir.name())
			dir = created
			continue
		}

		next, ok := dir.children[i].(*dirNode)
		if !ok {
			return nil, vpath{}, ErrLeadsIntoFile
		}
		dir = next
	}
	return dir, canonical, nil
}

// parentOf splits p into its resolved parent directory and final name.
// Caller holds vfs.mu.
func (vfs *FS) parentOf(p vpath, createMissing bool) (*dirNode, string, error) {
	parent, name, ok := p.parent()
	if !ok {
		return nil, "", ErrNoRoot
	}
	dir, _, err := vfs.findDirectory(parent, createMissing, defaultDirMode)
	if err != nil {
		return nil, "", err
	}
	return dir, name, nil
}

// CreateDirAll creates p and every missing parent. It succeeds when p is
// already a directory and fails if an existing component is a file.
func (vfs *FS) CreateDirAll(p string) error {
	return vfs.CreateDir(p, CreateDirOptions{Recursive: true})
}

// CreateDir creates a directory. Without Recursive the parent must exist
// and p must not.
func (vfs *FS) CreateDir(p string, opts CreateDirOptions) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return newError(OpCreateDir, p, err)
	}

	if opts.Recursive || abs.isRoot() {
		if !opts.Recursive {
			if r, err := vfs.lookup(abs, true); err == nil && r.status == lookupFound {
				return newError(OpCreateDir, p, ErrAlreadyExists)
			}
		}
		if _, _, err := vfs.findDirectory(abs, true, opts.mode()); err != nil {
			return newError(OpCreateDir, p, err)
		}
		return nil
	}

	dir, name, err := vfs.parentOf(abs, false)
	if err != nil {
		return newError(OpCreateDir, p, err)
	}
	i, found := dir.search(name)
	if found {
		return newError(OpCreateDir, p, ErrAlreadyExists)
	}
	now := vfs.timeNowLocked()
	dir.insertAt(i, newDirNode(name, opts.mode(), now))
	dir.touch(now)
	treeLogger.Debug("Created directory %q", abs.String())
	return nil
}

// RemoveFile removes a regular file. Directories and symlinks are
// rejected with ErrNotFile; use RemoveDir or RemoveSymlink for those.
func (vfs *FS) RemoveFile(p string) error {
	return vfs.removeEntry(OpRemove, p, TypeFile)
}

// RemoveSymlink removes the symlink at p itself, never its target.
func (vfs *FS) RemoveSymlink(p string) error {
	return vfs.removeEntry(OpRemove, p, TypeSymlink)
}

func (vfs *FS) removeEntry(op, p string, want FileType) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return newError(op, p, err)
	}
	dir, name, err := vfs.parentOf(abs, false)
	if err != nil {
		return newError(op, p, err)
	}
	i, found := dir.search(name)
	if !found {
		return newError(op, p, ErrNotFound)
	}
	if got := dir.children[i].fileType(); got != want {
		if want == TypeSymlink {
			return newError(op, p, fmt.Errorf("not a symlink: %w", ErrInvalidInput))
		}
		return newError(op, p, ErrNotFile)
	}
	dir.removeAt(i)
	dir.touch(vfs.timeNowLocked())
	treeLogger.Debug("Removed %q", abs.String())
	return nil
}

// RemoveDir removes an empty directory.
func (vfs *FS) RemoveDir(p string) error {
	return vfs.removeDir(p, false)
}

// RemoveDirAll removes a directory and everything under it. Open handles
// on removed files keep working against their detached content.
func (vfs *FS) RemoveDirAll(p string) error {
	return vfs.removeDir(p, true)
}

func (vfs *FS) removeDir(p string, recursive bool) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return newError(OpRemoveDir, p, err)
	}
	dir, name, err := vfs.parentOf(abs, false)
	if err != nil {
		return newError(OpRemoveDir, p, err)
	}
	i, found := dir.search(name)
	if !found {
		return newError(OpRemoveDir, p, ErrNotFound)
	}
	target, ok := dir.children[i].(*dirNode)
	if !ok {
		return newError(OpRemoveDir, p, ErrNotDir)
	}
	if !recursive && len(target.children) > 0 {
		return newError(OpRemoveDir, p, ErrNotEmpty)
	}
	dir.removeAt(i)
	dir.touch(vfs.timeNowLocked())
	treeLogger.Debug("Removed directory %q (recursive=%v)", abs.String(), recursive)
	return nil
}

// Rename moves a file to a new path. The source is detached first and put
// back if anything after that fails, so a failed rename changes nothing.
// An existing file or symlink at the destination is replaced; an existing
// directory is not. Renaming directories or symlinks is unsupported.
func (vfs *FS) Rename(from, to string) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	fromAbs, err := vfs.absolute(from)
	if err != nil {
		return newError(OpRename, from, err)
	}
	toAbs, err := vfs.absolute(to)
	if err != nil {
		return newError(OpRename, to, err)
	}

	fromDir, fromName, err := vfs.parentOf(fromAbs, false)
	if err != nil {
		return newError(OpRename, from, err)
	}
	fromIdx, found := fromDir.search(fromName)
	if !found {
		return newError(OpRename, from, ErrNotFound)
	}

	detached := fromDir.removeAt(fromIdx)
	restore := func() {
		fromDir.insertAt(fromIdx, detached)
	}

	file, ok := detached.(*fileNode)
	if !ok {
		restore()
		return newError(OpRename, from, fmt.Errorf("cannot rename directories or symlinks: %w", ErrUnsupported))
	}

	toDir, toName, err := vfs.parentOf(toAbs, false)
	if err != nil {
		restore()
		return newError(OpRename, to, err)
	}

	now := vfs.timeNowLocked()
	toIdx, exists := toDir.search(toName)
	if exists {
		if toDir.children[toIdx].fileType() == TypeDir {
			restore()
			return newError(OpRename, to, ErrRenameOntoDir)
		}
		file.rename(toName)
		toDir.children[toIdx] = file
	} else {
		file.rename(toName)
		toDir.insertAt(toIdx, file)
	}
	fromDir.touch(now)
	toDir.touch(now)

	treeLogger.Debug("Renamed %q to %q (replaced=%v)", fromAbs.String(), toAbs.String(), exists)
	return nil
}

// SymlinkFile creates link pointing at original. The target is stored
// verbatim and resolved at lookup time relative to the link's directory.
// An existing file or symlink at link is replaced; a directory is not.
func (vfs *FS) SymlinkFile(original, link string) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(link)
	if err != nil {
		return newError(OpSymlink, link, err)
	}
	dir, name, err := vfs.parentOf(abs, false)
	if err != nil {
		return newError(OpSymlink, link, err)
	}

	now := vfs.timeNowLocked()
	node := &symlinkNode{sname: name, target: original, created: now, modified: now}
	i, found := dir.search(name)
	if found {
		if dir.children[i].fileType() == TypeDir {
			return newError(OpSymlink, link, fmt.Errorf("directory already exists: %w", ErrAlreadyExists))
		}
		dir.children[i] = node
	} else {
		dir.insertAt(i, node)
	}
	dir.touch(now)

	treeLogger.Debug("Linked %q -> %q", abs.String(), original)
	return nil
}

// SymlinkDir is SymlinkFile; the tree does not distinguish link kinds.
func (vfs *FS) SymlinkDir(original, link string) error {
	return vfs.SymlinkFile(original, link)
}

// ReadLink returns the raw target of the symlink at p.
func (vfs *FS) ReadLink(p string) (string, error) {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return "", newError(OpReadLink, p, err)
	}
	r, err := vfs.lookup(abs, false)
	if err != nil {
		return "", newError(OpReadLink, p, err)
	}
	switch r.status {
	case lookupSymlink:
		return r.link.target, nil
	case lookupNotFound:
		return "", newError(OpReadLink, p, ErrNotFound)
	default:
		return "", newError(OpReadLink, p, fmt.Errorf("not a symlink: %w", ErrInvalidInput))
	}
}

// HardLink copies the content of src into a new independent file at dst.
// Unlike a POSIX hard link the two paths do not share storage afterwards.
func (vfs *FS) HardLink(src, dst string) error {
	_, err := vfs.copyFile(OpHardLink, src, dst)
	return err
}

// Copy copies the content of from into to and returns the bytes copied.
func (vfs *FS) Copy(from, to string) (int64, error) {
	return vfs.copyFile(OpCopy, from, to)
}

// copyFile reads from and writes to within one writer-lock section, so no
// other structural operation can interleave between the two.
func (vfs *FS) copyFile(op, from, to string) (int64, error) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(from)
	if err != nil {
		return 0, newError(op, from, err)
	}
	_, e, err := vfs.lookupEntry(abs)
	if err != nil {
		return 0, newError(op, from, err)
	}
	file, ok := e.(*fileNode)
	if !ok {
		return 0, newError(op, from, fmt.Errorf("cannot link or copy directories: %w", ErrUnsupported))
	}
	file.data.mu.RLock()
	content := append([]byte(nil), file.data.data...)
	file.data.mu.RUnlock()

	if err := vfs.replaceLocked(op, to, content); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

// SetPermissions stores mode on the file or directory at p. Modes are
// recorded only, never enforced.
func (vfs *FS) SetPermissions(p string, mode uint32) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	abs, err := vfs.absolute(p)
	if err != nil {
		return newError(OpSetPermissions, p, err)
	}
	_, e, err := vfs.lookupEntry(abs)
	if err != nil {
		return newError(OpSetPermissions, p, err)
	}
	switch n := e.(type) {
	case *fileNode:
		n.data.mu.Lock()
		n.data.mode = mode
		n.data.mu.Unlock()
	case *dirNode:
		n.mode = mode
	}
	return nil
}
