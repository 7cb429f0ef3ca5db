package memfs

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"memsys/internal/logging"
)

var (
	handleLogger = logging.GetLogger().WithPrefix("handle")
)

// OpenOptions selects how Open treats an existing or absent file. Read and
// Write are recorded but not enforced.
type OpenOptions struct {
	Read      bool
	Write     bool
	Create    bool
	CreateNew bool // implies Create; fails if the file exists
	Truncate  bool
	Append    bool
	Mode      uint32 // mode for a newly created file; zero means 0o666
}

// ReadOptions opens an existing file for reading.
func ReadOptions() OpenOptions {
	return OpenOptions{Read: true}
}

// WriteOptions opens for writing, creating or truncating the file.
func WriteOptions() OpenOptions {
	return OpenOptions{Write: true, Create: true, Truncate: true}
}

// AppendOptions opens an existing file for writing at its end.
func AppendOptions() OpenOptions {
	return OpenOptions{Write: true, Append: true}
}

func (o OpenOptions) creates() bool {
	return o.Create || o.CreateNew
}

// Open opens the file at p. The final component is followed if it is a
// symlink; a dangling link is created at its target when creating.
func (vfs *FS) Open(p string, opts OpenOptions) (*FileHandle, error) {
	if opts.creates() {
		vfs.mu.Lock()
		defer vfs.mu.Unlock()
	} else {
		vfs.mu.RLock()
		defer vfs.mu.RUnlock()
	}

	data, path, pos, err := vfs.openLocked(OpOpen, p, opts)
	if err != nil {
		return nil, err
	}
	return &FileHandle{vfs: vfs, path: path, data: data, pos: pos}, nil
}

// openLocked resolves p and returns the file content, its canonical path
// and the initial cursor. Caller holds vfs.mu, exclusively when opts
// creates.
func (vfs *FS) openLocked(op, p string, opts OpenOptions) (*fileData, string, uint64, error) {
	abs, err := vfs.absolute(p)
	if err != nil {
		return nil, "", 0, newError(op, p, err)
	}
	r, err := vfs.lookup(abs, true)
	if err != nil {
		return nil, "", 0, newError(op, p, err)
	}
	dir, name, err := vfs.parentOf(r.path, false)
	if err != nil {
		return nil, "", 0, newError(op, p, err)
	}

	now := vfs.timeNowLocked()
	i, found := dir.search(name)
	if found {
		file, ok := dir.children[i].(*fileNode)
		if !ok {
			return nil, "", 0, newError(op, p, ErrNotFile)
		}
		if opts.CreateNew {
			return nil, "", 0, newError(op, p, fmt.Errorf("file exists (create_new): %w", ErrAlreadyExists))
		}

		data := file.data
		data.mu.Lock()
		if opts.Truncate {
			data.data = nil
			data.touch(now)
		}
		var pos uint64
		if opts.Append {
			pos = uint64(len(data.data))
		}
		data.mu.Unlock()

		handleLogger.Trace("Opened %q (truncate=%v, append=%v)", r.path.String(), opts.Truncate, opts.Append)
		return data, r.path.String(), pos, nil
	}

	if !opts.creates() {
		return nil, "", 0, newError(op, p, ErrNotFound)
	}

	mode := opts.Mode
	if mode == 0 {
		mode = defaultFileMode
	}
	file := &fileNode{fname: name, data: newFileData(mode, now)}
	dir.insertAt(i, file)
	dir.touch(now)

	treeLogger.Debug("Created file %q", r.path.String())
	return file.data, r.path.String(), 0, nil
}

// Read returns the whole content of the file at p.
func (vfs *FS) Read(p string) ([]byte, error) {
	h, err := vfs.Open(p, ReadOptions())
	if err != nil {
		return nil, err
	}
	defer h.Close()

	h.data.mu.RLock()
	defer h.data.mu.RUnlock()
	return append([]byte(nil), h.data.data...), nil
}

// ReadToString returns the content of the file at p as a string, failing
// with ErrInvalidData when it is not valid UTF-8.
func (vfs *FS) ReadToString(p string) (string, error) {
	data, err := vfs.Read(p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", newError(OpRead, p, fmt.Errorf("stream did not contain valid UTF-8: %w", ErrInvalidData))
	}
	return string(data), nil
}

// ReadToStringLossy returns the content of the file at p with each invalid
// UTF-8 byte replaced by U+FFFD.
func (vfs *FS) ReadToStringLossy(p string) (string, error) {
	data, err := vfs.Read(p)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(data[:size])
		}
		data = data[size:]
	}
	return b.String(), nil
}

// Write creates or truncates the file at p and sets its content to data.
// The parent directory must exist. The content is replaced in one step, so
// concurrent readers see either the old or the new bytes.
func (vfs *FS) Write(p string, data []byte) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	return vfs.replaceLocked(OpWrite, p, data)
}

// replaceLocked sets the content of the file at p, creating it if absent.
// Caller holds vfs.mu exclusively.
func (vfs *FS) replaceLocked(op, p string, data []byte) error {
	fd, _, _, err := vfs.openLocked(op, p, OpenOptions{Write: true, Create: true})
	if err != nil {
		return err
	}
	now := vfs.timeNowLocked()
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.data = append(fd.data[:0], data...)
	fd.touch(now)
	return nil
}

// WriteString is Write for string content.
func (vfs *FS) WriteString(p, s string) error {
	return vfs.Write(p, []byte(s))
}

// FileHandle is an open file: a private cursor over content shared with
// the tree and with every other handle on the same file. Closing a handle
// never removes the file, and a handle outlives removal of its file.
//
// A FileHandle must not be used from multiple goroutines at once.
type FileHandle struct {
	vfs    *FS
	path   string
	data   *fileData
	pos    uint64
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*FileHandle)(nil)
	_ io.ReaderAt        = (*FileHandle)(nil)
	_ io.WriterAt        = (*FileHandle)(nil)
	_ io.StringWriter    = (*FileHandle)(nil)
	_ io.Closer          = (*FileHandle)(nil)
)

// Name returns the canonical path the handle was opened at.
func (h *FileHandle) Name() string {
	return h.path
}

func (h *FileHandle) check(op string) error {
	if h.closed {
		return newError(op, h.path, ErrClosed)
	}
	return nil
}

// Read copies from the cursor and advances it. At or past the end it
// returns 0, io.EOF.
func (h *FileHandle) Read(p []byte) (int, error) {
	if err := h.check(OpRead); err != nil {
		return 0, err
	}
	h.data.mu.RLock()
	defer h.data.mu.RUnlock()

	if h.pos >= uint64(len(h.data.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, h.data.data[h.pos:])
	h.pos += uint64(n)
	return n, nil
}

// ReadAt reads from off without moving the cursor.
func (h *FileHandle) ReadAt(p []byte, off int64) (int, error) {
	if err := h.check(OpRead); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, newError(OpRead, h.path, fmt.Errorf("negative offset: %w", ErrInvalidInput))
	}
	h.data.mu.RLock()
	defer h.data.mu.RUnlock()

	if off >= int64(len(h.data.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write writes p at the cursor, zero-filling any gap between the end of
// the content and the cursor, and advances the cursor.
func (h *FileHandle) Write(p []byte) (int, error) {
	if err := h.check(OpWrite); err != nil {
		return 0, err
	}
	if h.pos > math.MaxInt-uint64(len(p)) {
		return 0, newError(OpWrite, h.path, fmt.Errorf("offset %d out of range: %w", h.pos, ErrInvalidInput))
	}

	now := h.vfs.TimeNow()
	h.data.mu.Lock()
	defer h.data.mu.Unlock()

	writeAtLocked(h.data, p, int(h.pos))
	h.data.touch(now)
	h.pos += uint64(len(p))
	return len(p), nil
}

// WriteAt writes p at off without moving the cursor.
func (h *FileHandle) WriteAt(p []byte, off int64) (int, error) {
	if err := h.check(OpWrite); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, newError(OpWrite, h.path, fmt.Errorf("negative offset: %w", ErrInvalidInput))
	}

	now := h.vfs.TimeNow()
	h.data.mu.Lock()
	defer h.data.mu.Unlock()

	writeAtLocked(h.data, p, int(off))
	h.data.touch(now)
	return len(p), nil
}

// WriteString writes s at the cursor.
func (h *FileHandle) WriteString(s string) (int, error) {
	return h.Write([]byte(s))
}

func writeAtLocked(d *fileData, p []byte, off int) {
	end := off + len(p)
	if end > len(d.data) {
		if end > cap(d.data) {
			grown := make([]byte, end, max(end, 2*cap(d.data)))
			copy(grown, d.data)
			d.data = grown
		} else {
			// Bytes past len may hold stale content from a truncate.
			tail := d.data[len(d.data):end]
			clear(tail)
			d.data = d.data[:end]
		}
	}
	copy(d.data[off:], p)
}

// Seek moves the cursor. io.SeekStart with a negative offset, or
// io.SeekEnd landing before the start, fails with ErrInvalidInput.
// io.SeekCurrent wraps without a bounds check.
func (h *FileHandle) Seek(offset int64, whence int) (int64, error) {
	if err := h.check(OpSeek); err != nil {
		return 0, err
	}
	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, newError(OpSeek, h.path, fmt.Errorf("seeking to a negative offset: %w", ErrInvalidInput))
		}
		h.pos = uint64(offset)
	case io.SeekCurrent:
		h.pos += uint64(offset)
	case io.SeekEnd:
		h.data.mu.RLock()
		size := int64(len(h.data.data))
		h.data.mu.RUnlock()
		if size+offset < 0 {
			return 0, newError(OpSeek, h.path, fmt.Errorf("seeking before start of file: %w", ErrInvalidInput))
		}
		h.pos = uint64(size + offset)
	default:
		return 0, newError(OpSeek, h.path, fmt.Errorf("invalid whence %d: %w", whence, ErrInvalidInput))
	}
	return int64(h.pos), nil
}

// Truncate sets the content length to size, zero-filling when growing.
// The cursor does not move.
func (h *FileHandle) Truncate(size int64) error {
	if err := h.check(OpTruncate); err != nil {
		return err
	}
	if size < 0 {
		return newError(OpTruncate, h.path, fmt.Errorf("negative size: %w", ErrInvalidInput))
	}

	now := h.vfs.TimeNow()
	h.data.mu.Lock()
	defer h.data.mu.Unlock()

	if int(size) <= len(h.data.data) {
		h.data.data = h.data.data[:size]
	} else {
		writeAtLocked(h.data, nil, int(size))
	}
	h.data.touch(now)
	return nil
}

// SetPermissions stores mode on the file. It is not enforced.
func (h *FileHandle) SetPermissions(mode uint32) error {
	if err := h.check(OpSetPermissions); err != nil {
		return err
	}
	h.data.mu.Lock()
	defer h.data.mu.Unlock()
	h.data.mode = mode
	return nil
}

// Stat returns the metadata of the open file.
func (h *FileHandle) Stat() (Metadata, error) {
	if err := h.check(OpMetadata); err != nil {
		return Metadata{}, err
	}
	return fileMetadata(Base(h.path), h.data), nil
}

// Sync is a no-op; there is nothing to persist.
func (h *FileHandle) Sync() error {
	return h.check(OpWrite)
}

// Flush is a no-op.
func (h *FileHandle) Flush() error {
	return h.check(OpWrite)
}

// Close releases the handle. The file itself is unaffected.
func (h *FileHandle) Close() error {
	if h.closed {
		return newError("close", h.path, ErrClosed)
	}
	h.closed = true
	return nil
}
