package mount

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"memsys/internal/logging"
	"memsys/internal/memfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	srvLogger = logging.GetLogger().WithPrefix("mount")
)

// Options controls how the file system is presented to the kernel.
type Options struct {
	FSName     string
	AllowOther bool
	ReadOnly   bool
}

// Server exposes a *memfs.FS through FUSE.
type Server struct {
	vfs  *memfs.FS
	opts Options
	uid  uint32 // owner reported for every node
	gid  uint32

	mu         sync.Mutex
	conn       *fuse.Conn
	mountPoint string
}

// New creates a Server for vfs. Ownership defaults to the current process
// and can be overridden with PUID and PGID.
func New(vfs *memfs.FS, opts Options) *Server {
	if opts.FSName == "" {
		opts.FSName = "memsys"
	}

	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())
	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			srvLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			srvLogger.Debug("Using PGID from environment: %d", gid)
		}
	}

	return &Server{vfs: vfs, opts: opts, uid: uid, gid: gid}
}

var _ fusefs.FS = (*Server)(nil)

// Root implements fusefs.FS.
func (srv *Server) Root() (fusefs.Node, error) {
	srvLogger.Trace("Getting root directory node")
	return &Dir{srv: srv, path: "/"}, nil
}

// node returns the FUSE node for the entry at p, which must exist.
func (srv *Server) node(p string) (fusefs.Node, error) {
	meta, err := srv.vfs.SymlinkMetadata(p)
	if err != nil {
		return nil, err
	}
	switch meta.Type() {
	case memfs.TypeDir:
		return &Dir{srv: srv, path: p}, nil
	case memfs.TypeSymlink:
		return &Link{srv: srv, path: p}, nil
	default:
		return &File{srv: srv, path: p}, nil
	}
}

// fillAttr copies metadata of the entry at p (not following a final
// symlink) into a.
func (srv *Server) fillAttr(p string, a *fuse.Attr) error {
	meta, err := srv.vfs.SymlinkMetadata(p)
	if err != nil {
		return err
	}
	a.Mode = meta.Mode()
	if srv.opts.ReadOnly {
		a.Mode &^= 0o222
	}
	a.Size = safeInt64ToUint64(meta.Size())
	a.Mtime = meta.Modified()
	a.Ctime = meta.Modified()
	a.Atime = meta.Modified() // access time is not tracked
	a.Nlink = 1
	a.Uid = srv.uid
	a.Gid = srv.gid
	a.BlockSize = 4096
	a.Blocks = safeInt64ToUint64((meta.Size() + 511) / 512)
	return nil
}

func waitForMount(mountPoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountPoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount attaches the file system at mountPoint. Call Serve to start
// answering requests.
func (srv *Server) Mount(mountPoint string) error {
	srvLogger.Info("Mounting in-memory filesystem at %s", mountPoint)

	mountOpts := []fuse.MountOption{
		fuse.FSName(srv.opts.FSName),
		fuse.Subtype("memsys"),
		fuse.AsyncRead(),
	}
	if srv.opts.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther(), fuse.DefaultPermissions())
	}
	if srv.opts.ReadOnly {
		mountOpts = append(mountOpts, fuse.ReadOnly())
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	srv.mu.Lock()
	srv.conn = c
	srv.mountPoint = mountPoint
	srv.mu.Unlock()
	return nil
}

// Serve answers kernel requests until the file system is unmounted.
func (srv *Server) Serve() error {
	srv.mu.Lock()
	c := srv.conn
	srv.mu.Unlock()
	if c == nil {
		return fmt.Errorf("serve: not mounted")
	}
	defer c.Close()

	srvLogger.Info("Serving filesystem")
	if err := fusefs.Serve(c, srv); err != nil {
		srvLogger.Error("FUSE server error: %v", err)
		return err
	}
	srvLogger.Debug("FUSE server stopped")
	return nil
}

// Unmount detaches the file system. It is a no-op when not mounted.
func (srv *Server) Unmount() error {
	srv.mu.Lock()
	mountPoint := srv.mountPoint
	srv.mountPoint = ""
	srv.mu.Unlock()
	if mountPoint == "" {
		return nil
	}

	srvLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if err := fuse.Unmount(mountPoint); err != nil {
		srvLogger.Error("Unmount failed: %v", err)
		return err
	}
	return nil
}

func safeInt64ToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
