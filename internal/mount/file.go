package mount

import (
	"context"
	"errors"
	"io"

	"memsys/internal/logging"
	"memsys/internal/memfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is a regular file node.
type File struct {
	srv  *Server
	path string
}

var _ FileNode = (*File)(nil)

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	fileLogger.Trace("Getting attributes for file: %q", f.path)
	return toFuseError(OpGetattr, f.path, f.srv.fillAttr(f.path, a))
}

func openOptions(flags fuse.OpenFlags) memfs.OpenOptions {
	return memfs.OpenOptions{
		Read:      flags.IsReadOnly() || flags.IsReadWrite(),
		Write:     flags.IsWriteOnly() || flags.IsReadWrite(),
		Create:    flags&fuse.OpenCreate != 0,
		CreateNew: flags&fuse.OpenCreate != 0 && flags&fuse.OpenExclusive != 0,
		Truncate:  flags&fuse.OpenTruncate != 0,
		Append:    flags&fuse.OpenAppend != 0,
	}
}

// Open implements the NodeOpener interface.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening file %q with flags %v", f.path, req.Flags)

	h, err := f.srv.vfs.Open(f.path, openOptions(req.Flags))
	if err != nil {
		return nil, toFuseError(OpOpen, f.path, err)
	}
	resp.Flags |= fuse.OpenDirectIO
	return &Handle{h: h, path: f.path}, nil
}

// Setattr implements the NodeSetattrer interface. Size and mode changes
// are applied; ownership and times are ignored.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		fileLogger.Debug("Truncating %q to %d bytes", f.path, req.Size)
		h, err := f.srv.vfs.Open(f.path, memfs.OpenOptions{Write: true})
		if err != nil {
			return toFuseError(OpSetattr, f.path, err)
		}
		err = h.Truncate(int64(req.Size))
		h.Close()
		if err != nil {
			return toFuseError(OpSetattr, f.path, err)
		}
	}
	if req.Valid.Mode() {
		if err := f.srv.vfs.SetPermissions(f.path, uint32(req.Mode.Perm())); err != nil {
			return toFuseError(OpSetattr, f.path, err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

// Fsync implements the NodeFsyncer interface. There is nothing to flush.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

// Handle is an open file. Reads and writes are positional, so the
// underlying cursor is never moved.
type Handle struct {
	h    *memfs.FileHandle
	path string // For logging purposes
}

var _ FileHandle = (*Handle)(nil)

// Read implements the HandleReader interface.
func (fh *Handle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from file %q at offset %d", req.Size, fh.path, req.Offset)

	resp.Data = make([]byte, req.Size)
	n, err := fh.h.ReadAt(resp.Data, req.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return toFuseError(OpRead, fh.path, err)
	}
	resp.Data = resp.Data[:n]
	return nil
}

// Write implements the HandleWriter interface.
func (fh *Handle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to file %q at offset %d", len(req.Data), fh.path, req.Offset)

	offset := req.Offset
	if req.FileFlags&fuse.OpenAppend != 0 {
		meta, err := fh.h.Stat()
		if err != nil {
			return toFuseError(OpWrite, fh.path, err)
		}
		offset = meta.Size()
	}
	n, err := fh.h.WriteAt(req.Data, offset)
	if err != nil {
		return toFuseError(OpWrite, fh.path, err)
	}
	resp.Size = n
	return nil
}

// Flush implements the HandleFlusher interface.
func (fh *Handle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	return toFuseError(OpWrite, fh.path, fh.h.Flush())
}

// Release implements the HandleReleaser interface, closing the handle.
func (fh *Handle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fileLogger.Debug("Closing file %q", fh.path)
	return toFuseError(OpOpen, fh.path, fh.h.Close())
}
