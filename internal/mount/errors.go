package mount

import (
	"errors"
	"io/fs"

	"memsys/internal/logging"
	"memsys/internal/memfs"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

var (
	errLogger = logging.GetLogger().WithPrefix("mount-error")
)

// Operation names used when logging request failures.
const (
	OpLookup   = "lookup"
	OpReadDir  = "readdir"
	OpOpen     = "open"
	OpRead     = "read"
	OpWrite    = "write"
	OpCreate   = "create"
	OpMkdir    = "mkdir"
	OpRemove   = "remove"
	OpRename   = "rename"
	OpSymlink  = "symlink"
	OpReadlink = "readlink"
	OpSetattr  = "setattr"
	OpGetattr  = "getattr"
)

// toFuseError converts err into the errno reply bazil sends to the kernel.
// NotFound is routine during lookups and is logged at trace level only.
func toFuseError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	errno := toErrno(err)
	if errno == unix.ENOENT {
		errLogger.Trace("%s %s: %v", op, path, err)
	} else {
		errLogger.Debug("%s %s: %v (errno %d)", op, path, err, errno)
	}
	return fuse.Errno(errno)
}

// toErrno converts an error from the tree into the errno the kernel
// expects. Unknown errors map to EIO.
func toErrno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, memfs.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, memfs.ErrAlreadyExists):
		return unix.EEXIST
	case errors.Is(err, memfs.ErrInvalidInput), errors.Is(err, memfs.ErrNoRoot):
		return unix.EINVAL
	case errors.Is(err, memfs.ErrLeadsIntoFile), errors.Is(err, memfs.ErrNotDir):
		return unix.ENOTDIR
	case errors.Is(err, memfs.ErrNotFile), errors.Is(err, memfs.ErrRenameOntoDir):
		return unix.EISDIR
	case errors.Is(err, memfs.ErrSymlinkLoop):
		return unix.ELOOP
	case errors.Is(err, memfs.ErrNotEmpty):
		return unix.ENOTEMPTY
	case errors.Is(err, memfs.ErrClosed):
		return unix.EBADF
	case errors.Is(err, memfs.ErrUnsupported):
		return unix.ENOTSUP
	case errors.Is(err, fs.ErrPermission):
		return unix.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return unix.EIO
	}
}
