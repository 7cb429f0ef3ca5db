package mount

import (
	"context"
	"os"

	"memsys/internal/logging"
	"memsys/internal/memfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is a directory node. path is the canonical path inside the tree.
type Dir struct {
	srv  *Server
	path string
}

var _ Directory = (*Dir)(nil)

func (d *Dir) child(name string) string {
	return memfs.Join(d.path, name)
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path)
	return toFuseError(OpGetattr, d.path, d.srv.fillAttr(d.path, a))
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	childPath := d.child(name)
	dirLogger.Trace("Looking up %q in directory %q", name, d.path)

	n, err := d.srv.node(childPath)
	if err != nil {
		return nil, toFuseError(OpLookup, childPath, err)
	}
	return n, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path)

	children, err := d.srv.vfs.ReadDirAll(d.path)
	if err != nil {
		return nil, toFuseError(OpReadDir, d.path, err)
	}

	entries := make([]fuse.Dirent, 0, len(children)+2)
	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	for _, child := range children {
		entries = append(entries, fuse.Dirent{
			Name: child.Name(),
			Type: direntType(child.FileType()),
		})
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path, len(children))
	return entries, nil
}

func direntType(t memfs.FileType) fuse.DirentType {
	switch t {
	case memfs.TypeDir:
		return fuse.DT_Dir
	case memfs.TypeSymlink:
		return fuse.DT_Link
	default:
		return fuse.DT_File
	}
}

// Mkdir implements the NodeMkdirer interface.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	newPath := d.child(req.Name)
	dirLogger.Debug("Creating directory %q", newPath)

	err := d.srv.vfs.CreateDir(newPath, memfs.CreateDirOptions{Mode: uint32(req.Mode.Perm())})
	if err != nil {
		return nil, toFuseError(OpMkdir, newPath, err)
	}
	return &Dir{srv: d.srv, path: newPath}, nil
}

// Create implements the NodeCreater interface, creating and opening a file.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	newPath := d.child(req.Name)
	dirLogger.Debug("Creating file %q with flags %v", newPath, req.Flags)

	opts := openOptions(req.Flags)
	opts.Create = true
	opts.Mode = uint32(req.Mode.Perm())

	h, err := d.srv.vfs.Open(newPath, opts)
	if err != nil {
		return nil, nil, toFuseError(OpCreate, newPath, err)
	}
	resp.Flags |= fuse.OpenDirectIO
	return &File{srv: d.srv, path: newPath}, &Handle{h: h, path: newPath}, nil
}

// Remove implements the NodeRemover interface, removing a file or directory.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	childPath := d.child(req.Name)
	dirLogger.Debug("Removing %q (isDir=%v)", childPath, req.Dir)

	if req.Dir {
		return toFuseError(OpRemove, childPath, d.srv.vfs.RemoveDir(childPath))
	}

	// unlink applies to symlinks as well as files
	meta, err := d.srv.vfs.SymlinkMetadata(childPath)
	if err != nil {
		return toFuseError(OpRemove, childPath, err)
	}
	if meta.IsSymlink() {
		err = d.srv.vfs.RemoveSymlink(childPath)
	} else {
		err = d.srv.vfs.RemoveFile(childPath)
	}
	return toFuseError(OpRemove, childPath, err)
}

// Rename implements the NodeRenamer interface, moving a file.
func (d *Dir) Rename(_ context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		dirLogger.Error("Rename target is not a directory node: %T", newDir)
		return toFuseError(OpRename, d.child(req.OldName), memfs.ErrInvalidInput)
	}

	oldPath := d.child(req.OldName)
	newPath := target.child(req.NewName)
	dirLogger.Debug("Renaming %q to %q", oldPath, newPath)

	return toFuseError(OpRename, oldPath, d.srv.vfs.Rename(oldPath, newPath))
}

// Symlink implements the NodeSymlinker interface.
func (d *Dir) Symlink(_ context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	linkPath := d.child(req.NewName)
	dirLogger.Debug("Linking %q -> %q", linkPath, req.Target)

	if err := d.srv.vfs.SymlinkFile(req.Target, linkPath); err != nil {
		return nil, toFuseError(OpSymlink, linkPath, err)
	}
	return &Link{srv: d.srv, path: linkPath}, nil
}

// Link is a symlink node.
type Link struct {
	srv  *Server
	path string
}

var _ Symlink = (*Link)(nil)

// Attr implements the Node interface.
func (l *Link) Attr(_ context.Context, a *fuse.Attr) error {
	if err := l.srv.fillAttr(l.path, a); err != nil {
		return toFuseError(OpGetattr, l.path, err)
	}
	a.Mode = os.ModeSymlink | 0o777
	return nil
}

// Readlink implements the NodeReadlinker interface.
func (l *Link) Readlink(_ context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	target, err := l.srv.vfs.ReadLink(l.path)
	if err != nil {
		return "", toFuseError(OpReadlink, l.path, err)
	}
	return target, nil
}
