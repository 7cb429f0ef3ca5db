package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"memsys/internal/memfs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	h, err := New(t.TempDir())
	require.NoError(t, err)
	return h, h.Base()
}

func TestNewRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(file)
	assert.ErrorIs(t, err, memfs.ErrNotDir)

	_, err = New(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPathsStayUnderBase(t *testing.T) {
	h, base := setupTestFS(t)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"root", "/", base},
		{"absolute", "/a/b", filepath.Join(base, "a", "b")},
		{"dotdot cannot escape", "/../../etc", filepath.Join(base, "etc")},
		{"relative to cwd", "c", filepath.Join(base, "c")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.real(tt.path))
		})
	}
}

func TestReadWriteAndExistence(t *testing.T) {
	h, base := setupTestFS(t)

	require.NoError(t, h.CreateDirAll("/dir/sub"))
	require.NoError(t, h.Write("/dir/sub/f.txt", []byte("hello")))

	data, err := os.ReadFile(filepath.Join(base, "dir", "sub", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	s, err := h.ReadToString("/dir/sub/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	require.NoError(t, h.Write("/bin", []byte{0xff, 0xfe}))
	_, err = h.ReadToString("/bin")
	assert.ErrorIs(t, err, memfs.ErrInvalidData)

	tests := []struct {
		path   string
		exists bool
		isFile bool
		isDir  bool
	}{
		{"/dir", true, false, true},
		{"/dir/sub/f.txt", true, true, false},
		{"/missing", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			exists, err := h.Exists(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)

			isFile, err := h.IsFile(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.isFile, isFile)

			isDir, err := h.IsDir(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}

func TestSymlinks(t *testing.T) {
	h, base := setupTestFS(t)
	require.NoError(t, h.Write("/target.txt", []byte("x")))

	require.NoError(t, h.SymlinkFile("/target.txt", "/abs"))
	require.NoError(t, h.SymlinkFile("target.txt", "/rel"))

	raw, err := os.Readlink(filepath.Join(base, "abs"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "target.txt"), raw)

	got, err := h.ReadLink("/abs")
	require.NoError(t, err)
	assert.Equal(t, "/target.txt", got)

	got, err = h.ReadLink("/rel")
	require.NoError(t, err)
	assert.Equal(t, "target.txt", got)

	isLink, err := h.IsSymlink("/rel")
	require.NoError(t, err)
	assert.True(t, isLink)

	canonical, err := h.Canonicalize("/rel")
	require.NoError(t, err)
	assert.Equal(t, "/target.txt", canonical)

	assert.ErrorIs(t, h.RemoveFile("/rel"), memfs.ErrNotFile)
	assert.ErrorIs(t, h.RemoveSymlink("/target.txt"), memfs.ErrInvalidInput)

	require.NoError(t, h.RemoveSymlink("/rel"))
	isLink, err = h.IsSymlink("/rel")
	require.NoError(t, err)
	assert.False(t, isLink)

	exists, err := h.Exists("/target.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRemoveFileRejectsDirectory(t *testing.T) {
	h, _ := setupTestFS(t)
	require.NoError(t, h.CreateDirAll("/d"))

	err := h.RemoveFile("/d")
	assert.ErrorIs(t, err, memfs.ErrNotFile)

	require.NoError(t, h.Write("/d/f", nil))
	require.NoError(t, h.RemoveDirAll("/d"))
	exists, err := h.Exists("/d")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCurrentDir(t *testing.T) {
	h, _ := setupTestFS(t)
	require.NoError(t, h.CreateDirAll("/work"))
	require.NoError(t, h.Write("/file", nil))

	require.NoError(t, h.SetCurrentDir("/work"))
	cwd, err := h.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/work", cwd)

	require.NoError(t, h.Write("rel.txt", []byte("r")))
	s, err := h.ReadToString("/work/rel.txt")
	require.NoError(t, err)
	assert.Equal(t, "r", s)

	assert.ErrorIs(t, h.SetCurrentDir("/file"), memfs.ErrNotDir)
	assert.Error(t, h.SetCurrentDir("/missing"))
}

func TestOpenOptions(t *testing.T) {
	h, _ := setupTestFS(t)

	f, err := h.Open("/f", memfs.WriteOptions())
	require.NoError(t, err)
	_, err = f.WriteString("abc")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = h.Open("/f", memfs.AppendOptions())
	require.NoError(t, err)
	_, err = f.WriteString("def")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err := h.ReadToString("/f")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", s)

	_, err = h.Open("/f", memfs.OpenOptions{Write: true, CreateNew: true})
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = h.Open("/missing", memfs.ReadOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenameHardLinkPermissions(t *testing.T) {
	h, _ := setupTestFS(t)
	require.NoError(t, h.Write("/a", []byte("A")))

	require.NoError(t, h.Rename("/a", "/b"))
	require.NoError(t, h.HardLink("/b", "/c"))
	require.NoError(t, h.SetPermissions("/c", 0o600))

	meta, err := h.Metadata("/b")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), meta.Mode().Perm())

	entries, err := h.ReadDirAll("/")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"b", "c"}, names)
}

// writeTree uses only capabilities, so it runs unchanged on either backend.
func writeTree(t *testing.T, fsys interface {
	memfs.DirAllCreator
	memfs.FileWriter
	memfs.StringReader
	memfs.Symlinker
	memfs.ExistenceChecker
}) {
	t.Helper()
	require.NoError(t, fsys.CreateDirAll("/x/y"))
	require.NoError(t, fsys.Write("/x/y/z.txt", []byte("z")))
	require.NoError(t, fsys.SymlinkFile("y/z.txt", "/x/link"))

	s, err := fsys.ReadToString("/x/link")
	require.NoError(t, err)
	assert.Equal(t, "z", s)

	isFile, err := fsys.IsFile("/x/link")
	require.NoError(t, err)
	assert.True(t, isFile)
}

func TestCapabilitiesMatchMemFS(t *testing.T) {
	h, _ := setupTestFS(t)
	t.Run("host", func(t *testing.T) { writeTree(t, h) })
	t.Run("memory", func(t *testing.T) { writeTree(t, memfs.New()) })
}
