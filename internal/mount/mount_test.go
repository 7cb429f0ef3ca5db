package mount

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"
	"time"

	"memsys/internal/memfs"

	"bazil.org/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var testEpoch = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *memfs.FS, *Dir) {
	t.Helper()
	vfs := memfs.New(memfs.WithTime(testEpoch))
	srv := New(vfs, Options{})
	root, err := srv.Root()
	require.NoError(t, err)
	return srv, vfs, root.(*Dir)
}

func assertErrno(t *testing.T, err error, want syscall.Errno) {
	t.Helper()
	var errno fuse.Errno
	require.True(t, errors.As(err, &errno), "expected fuse.Errno, got %T: %v", err, err)
	assert.Equal(t, fuse.Errno(want), errno)
}

func TestDirOperations(t *testing.T) {
	_, vfs, root := setupTestServer(t)
	require.NoError(t, vfs.Insert("/docs/readme.md", []byte("# hi")))
	require.NoError(t, vfs.SymlinkFile("/docs/readme.md", "/docs/link"))
	ctx := context.Background()

	t.Run("RootAttributes", func(t *testing.T) {
		var attr fuse.Attr
		require.NoError(t, root.Attr(ctx, &attr))
		assert.True(t, attr.Mode.IsDir())
		assert.Equal(t, testEpoch, attr.Mtime)
	})

	t.Run("Lookup", func(t *testing.T) {
		n, err := root.Lookup(ctx, "docs")
		require.NoError(t, err)
		docs, ok := n.(*Dir)
		require.True(t, ok)

		n, err = docs.Lookup(ctx, "readme.md")
		require.NoError(t, err)
		assert.IsType(t, &File{}, n)

		n, err = docs.Lookup(ctx, "link")
		require.NoError(t, err)
		assert.IsType(t, &Link{}, n)

		_, err = docs.Lookup(ctx, "missing")
		assertErrno(t, err, syscall.ENOENT)
	})

	t.Run("ReadDirAll", func(t *testing.T) {
		docs := &Dir{srv: root.srv, path: "/docs"}
		entries, err := docs.ReadDirAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []fuse.Dirent{
			{Name: ".", Type: fuse.DT_Dir},
			{Name: "..", Type: fuse.DT_Dir},
			{Name: "link", Type: fuse.DT_Link},
			{Name: "readme.md", Type: fuse.DT_File},
		}, entries)
	})

	t.Run("Mkdir", func(t *testing.T) {
		n, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "new", Mode: os.ModeDir | 0o750})
		require.NoError(t, err)
		assert.Equal(t, "/new", n.(*Dir).path)

		meta, err := vfs.Metadata("/new")
		require.NoError(t, err)
		assert.Equal(t, uint32(0o750), meta.Permissions())

		_, err = root.Mkdir(ctx, &fuse.MkdirRequest{Name: "new"})
		assertErrno(t, err, syscall.EEXIST)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, vfs.Insert("/full/f", nil))

		err := root.Remove(ctx, &fuse.RemoveRequest{Name: "full", Dir: true})
		assertErrno(t, err, syscall.ENOTEMPTY)

		err = root.Remove(ctx, &fuse.RemoveRequest{Name: "full", Dir: false})
		assertErrno(t, err, syscall.EISDIR)

		full := &Dir{srv: root.srv, path: "/full"}
		require.NoError(t, full.Remove(ctx, &fuse.RemoveRequest{Name: "f"}))
		require.NoError(t, root.Remove(ctx, &fuse.RemoveRequest{Name: "full", Dir: true}))

		exists, err := vfs.Exists("/full")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Rename", func(t *testing.T) {
		require.NoError(t, vfs.Write("/moveme", []byte("payload")))
		docs := &Dir{srv: root.srv, path: "/docs"}

		err := root.Rename(ctx, &fuse.RenameRequest{OldName: "moveme", NewName: "moved"}, docs)
		require.NoError(t, err)

		content, err := vfs.ReadToString("/docs/moved")
		require.NoError(t, err)
		assert.Equal(t, "payload", content)

		err = root.Rename(ctx, &fuse.RenameRequest{OldName: "docs", NewName: "renamed"}, root)
		assertErrno(t, err, syscall.ENOTSUP)
	})

	t.Run("Symlink", func(t *testing.T) {
		n, err := root.Symlink(ctx, &fuse.SymlinkRequest{NewName: "shortcut", Target: "docs/readme.md"})
		require.NoError(t, err)
		link := n.(*Link)

		target, err := link.Readlink(ctx, &fuse.ReadlinkRequest{})
		require.NoError(t, err)
		assert.Equal(t, "docs/readme.md", target)

		var attr fuse.Attr
		require.NoError(t, link.Attr(ctx, &attr))
		assert.Equal(t, os.ModeSymlink|0o777, attr.Mode)
		assert.Equal(t, uint64(len("docs/readme.md")), attr.Size)
	})

	t.Run("UnlinkSymlink", func(t *testing.T) {
		require.NoError(t, root.Remove(ctx, &fuse.RemoveRequest{Name: "shortcut"}))

		_, err := root.Lookup(ctx, "shortcut")
		assertErrno(t, err, syscall.ENOENT)

		content, err := vfs.ReadToString("/docs/readme.md")
		require.NoError(t, err)
		assert.Equal(t, "# hi", content)
	})
}

func TestFileOperations(t *testing.T) {
	_, vfs, root := setupTestServer(t)
	require.NoError(t, vfs.Write("/data.txt", []byte("test file content")))
	ctx := context.Background()

	n, err := root.Lookup(ctx, "data.txt")
	require.NoError(t, err)
	file := n.(*File)

	t.Run("Attributes", func(t *testing.T) {
		var attr fuse.Attr
		require.NoError(t, file.Attr(ctx, &attr))
		assert.False(t, attr.Mode.IsDir())
		assert.Equal(t, uint64(17), attr.Size)
		assert.Equal(t, os.FileMode(0o666), attr.Mode)
	})

	t.Run("ReadAndWrite", func(t *testing.T) {
		resp := &fuse.OpenResponse{}
		h, err := file.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadWrite}, resp)
		require.NoError(t, err)
		assert.NotZero(t, resp.Flags&fuse.OpenDirectIO)
		handle := h.(*Handle)

		read := &fuse.ReadResponse{}
		require.NoError(t, handle.Read(ctx, &fuse.ReadRequest{Offset: 5, Size: 4}, read))
		assert.Equal(t, "file", string(read.Data))

		write := &fuse.WriteResponse{}
		require.NoError(t, handle.Write(ctx, &fuse.WriteRequest{Offset: 0, Data: []byte("TEST")}, write))
		assert.Equal(t, 4, write.Size)

		read = &fuse.ReadResponse{}
		require.NoError(t, handle.Read(ctx, &fuse.ReadRequest{Offset: 10, Size: 100}, read))
		assert.Equal(t, "content", string(read.Data))

		require.NoError(t, handle.Flush(ctx, &fuse.FlushRequest{}))
		require.NoError(t, handle.Release(ctx, &fuse.ReleaseRequest{}))

		content, err := vfs.ReadToString("/data.txt")
		require.NoError(t, err)
		assert.Equal(t, "TEST file content", content)
	})

	t.Run("AppendWrite", func(t *testing.T) {
		h, err := file.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenWriteOnly | fuse.OpenAppend}, &fuse.OpenResponse{})
		require.NoError(t, err)
		handle := h.(*Handle)
		defer handle.Release(ctx, &fuse.ReleaseRequest{})

		req := &fuse.WriteRequest{Offset: 0, Data: []byte("!"), FileFlags: fuse.OpenAppend}
		require.NoError(t, handle.Write(ctx, req, &fuse.WriteResponse{}))

		content, err := vfs.ReadToString("/data.txt")
		require.NoError(t, err)
		assert.Equal(t, "TEST file content!", content)
	})

	t.Run("Setattr", func(t *testing.T) {
		req := &fuse.SetattrRequest{
			Valid: fuse.SetattrSize | fuse.SetattrMode,
			Size:  4,
			Mode:  0o600,
		}
		resp := &fuse.SetattrResponse{}
		require.NoError(t, file.Setattr(ctx, req, resp))
		assert.Equal(t, uint64(4), resp.Attr.Size)
		assert.Equal(t, os.FileMode(0o600), resp.Attr.Mode)

		content, err := vfs.ReadToString("/data.txt")
		require.NoError(t, err)
		assert.Equal(t, "TEST", content)
	})

	t.Run("Create", func(t *testing.T) {
		resp := &fuse.CreateResponse{}
		n, h, err := root.Create(ctx, &fuse.CreateRequest{
			Name:  "created",
			Flags: fuse.OpenReadWrite | fuse.OpenCreate,
			Mode:  0o644,
		}, resp)
		require.NoError(t, err)
		assert.IsType(t, &File{}, n)

		handle := h.(*Handle)
		require.NoError(t, handle.Write(ctx, &fuse.WriteRequest{Data: []byte("new")}, &fuse.WriteResponse{}))
		require.NoError(t, handle.Release(ctx, &fuse.ReleaseRequest{}))

		content, err := vfs.ReadToString("/created")
		require.NoError(t, err)
		assert.Equal(t, "new", content)

		_, _, err = root.Create(ctx, &fuse.CreateRequest{
			Name:  "created",
			Flags: fuse.OpenWriteOnly | fuse.OpenCreate | fuse.OpenExclusive,
		}, &fuse.CreateResponse{})
		assertErrno(t, err, syscall.EEXIST)
	})

	t.Run("RemovedWhileOpen", func(t *testing.T) {
		require.NoError(t, vfs.Write("/gone", []byte("still here")))
		gone := &File{srv: root.srv, path: "/gone"}
		h, err := gone.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
		require.NoError(t, err)

		require.NoError(t, root.Remove(ctx, &fuse.RemoveRequest{Name: "gone"}))

		read := &fuse.ReadResponse{}
		require.NoError(t, h.(*Handle).Read(ctx, &fuse.ReadRequest{Size: 64}, read))
		assert.Equal(t, "still here", string(read.Data))

		var attr fuse.Attr
		assertErrno(t, gone.Attr(ctx, &attr), syscall.ENOENT)
	})
}

func TestOpenOptionsFromFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags fuse.OpenFlags
		want  memfs.OpenOptions
	}{
		{"ReadOnly", fuse.OpenReadOnly, memfs.OpenOptions{Read: true}},
		{"WriteOnly", fuse.OpenWriteOnly, memfs.OpenOptions{Write: true}},
		{"ReadWrite", fuse.OpenReadWrite, memfs.OpenOptions{Read: true, Write: true}},
		{"Truncate", fuse.OpenWriteOnly | fuse.OpenTruncate, memfs.OpenOptions{Write: true, Truncate: true}},
		{"Append", fuse.OpenWriteOnly | fuse.OpenAppend, memfs.OpenOptions{Write: true, Append: true}},
		{"Exclusive", fuse.OpenWriteOnly | fuse.OpenCreate | fuse.OpenExclusive, memfs.OpenOptions{Write: true, Create: true, CreateNew: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, openOptions(tt.flags))
		})
	}
}

func TestToFuseError(t *testing.T) {
	assert.NoError(t, toFuseError(OpLookup, "/x", nil))
	assertErrno(t, toFuseError(OpLookup, "/x", memfs.ErrSymlinkLoop), syscall.ELOOP)
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		err   error
		errno unix.Errno
	}{
		{nil, 0},
		{memfs.ErrNotFound, unix.ENOENT},
		{memfs.ErrAlreadyExists, unix.EEXIST},
		{memfs.ErrInvalidInput, unix.EINVAL},
		{memfs.ErrNoRoot, unix.EINVAL},
		{memfs.ErrLeadsIntoFile, unix.ENOTDIR},
		{memfs.ErrNotDir, unix.ENOTDIR},
		{memfs.ErrNotFile, unix.EISDIR},
		{memfs.ErrRenameOntoDir, unix.EISDIR},
		{memfs.ErrSymlinkLoop, unix.ELOOP},
		{memfs.ErrNotEmpty, unix.ENOTEMPTY},
		{memfs.ErrClosed, unix.EBADF},
		{memfs.ErrUnsupported, unix.ENOTSUP},
		{fs.ErrPermission, unix.EACCES},
		{errors.New("something else"), unix.EIO},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			err := tt.err
			if err != nil {
				err = &memfs.Error{Op: memfs.OpRead, Path: "/p", Err: err}
			}
			assert.Equal(t, tt.errno, toErrno(err))
		})
	}
}

func TestServeWithoutMount(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	assert.Error(t, srv.Serve())
	assert.NoError(t, srv.Unmount())
}
