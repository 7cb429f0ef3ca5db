package memfs

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func setupTestFS(t *testing.T) *FS {
	t.Helper()
	return New(WithTime(testEpoch), WithSleepDisabled())
}

func TestNewHasRoot(t *testing.T) {
	vfs := New()

	isDir, err := vfs.IsDir("/")
	require.NoError(t, err)
	assert.True(t, isDir)

	cwd, err := vfs.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/", cwd)
}

func TestNewEmptyHasNoRoot(t *testing.T) {
	vfs := NewEmpty()

	exists, err := vfs.Exists("/")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = vfs.TempDir()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, vfs.CreateDirAll("C:/"))
	tmp, err := vfs.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "C:/tmp", tmp)

	require.NoError(t, vfs.Insert("C:/data/x.txt", []byte("x")))
	content, err := vfs.ReadToString("C:/data/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", content)
}

func TestCanonicalize(t *testing.T) {
	vfs := setupTestFS(t)
	require.NoError(t, vfs.Insert("/real/dir/file.txt", []byte("data")))
	require.NoError(t, vfs.SymlinkDir("/real/dir", "/link"))

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "/real/dir/file.txt", "/real/dir/file.txt"},
		{"DotDot", "/real/dir/../dir/./file.txt", "/real/dir/file.txt"},
		{"ThroughSymlink", "/link/file.txt", "/real/dir/file.txt"},
		{"Symlink", "/link", "/real/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vfs.Canonicalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("Missing", func(t *testing.T) {
		_, err := vfs.Canonicalize("/nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := vfs.Canonicalize("")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCurrentDir(t *testing.T) {
	vfs := setupTestFS(t)
	require.NoError(t, vfs.CreateDirAll("/work/sub"))
	require.NoError(t, vfs.Write("/work/file", []byte("f")))

	require.NoError(t, vfs.SetCurrentDir("/work"))
	cwd, err := vfs.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/work", cwd)

	require.NoError(t, vfs.Write("rel.txt", []byte("relative")))
	content, err := vfs.ReadToString("/work/rel.txt")
	require.NoError(t, err)
	assert.Equal(t, "relative", content)

	require.NoError(t, vfs.SetCurrentDir("sub/.."))
	cwd, _ = vfs.CurrentDir()
	assert.Equal(t, "/work", cwd)

	err = vfs.SetCurrentDir("/work/file")
	assert.ErrorIs(t, err, ErrNotDir)

	err = vfs.SetCurrentDir("/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithCwd(t *testing.T) {
	vfs := New(WithCwd("/home/../srv"))
	require.NoError(t, vfs.CreateDirAll("/srv"))
	require.NoError(t, vfs.Write("app.conf", []byte("x")))

	exists, err := vfs.Exists("/srv/app.conf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnvironment(t *testing.T) {
	vfs := New(WithEnv(map[string]string{"HOME": "/home/user"}))

	t.Run("Missing", func(t *testing.T) {
		_, err := vfs.EnvVar("NOPE")
		assert.ErrorIs(t, err, ErrEnvNotPresent)

		_, ok := vfs.EnvVarOS("NOPE")
		assert.False(t, ok)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		vfs.SetEnvVar("KEY", "value")
		v, err := vfs.EnvVar("KEY")
		require.NoError(t, err)
		assert.Equal(t, "value", v)

		vfs.RemoveEnvVar("KEY")
		_, ok := vfs.EnvVarOS("KEY")
		assert.False(t, ok)
	})

	t.Run("Dirs", func(t *testing.T) {
		home, ok := vfs.HomeDir()
		require.True(t, ok)
		assert.Equal(t, "/home/user", home)

		cache, ok := vfs.CacheDir()
		require.True(t, ok)
		assert.Equal(t, "/home/user/.cache", cache)

		tmp, err := vfs.TempDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp", tmp)
	})

	t.Run("EmptyPathVar", func(t *testing.T) {
		vfs.SetEnvVar("EMPTY", "")
		_, ok := vfs.EnvVarPath("EMPTY")
		assert.False(t, ok)
	})

	t.Run("SnapshotIsCopy", func(t *testing.T) {
		envs := vfs.EnvVars()
		envs["HOME"] = "/elsewhere"
		home, _ := vfs.HomeDir()
		assert.Equal(t, "/home/user", home)
	})
}

func TestUmask(t *testing.T) {
	vfs := New()
	assert.Equal(t, uint32(0o022), vfs.Umask())
	assert.Equal(t, uint32(0o022), vfs.SetUmask(0o077))
	assert.Equal(t, uint32(0o077), vfs.Umask())
}

func TestInsertHelpers(t *testing.T) {
	vfs := setupTestFS(t)

	t.Run("CreatesParents", func(t *testing.T) {
		require.NoError(t, vfs.InsertString("/deep/er/file.txt", "hello"))
		isDir, err := vfs.IsDir("/deep/er")
		require.NoError(t, err)
		assert.True(t, isDir)
	})

	t.Run("JSON", func(t *testing.T) {
		require.NoError(t, vfs.InsertJSON("/cfg/app.json", map[string]int{"port": 8080}))
		content, err := vfs.ReadToString("/cfg/app.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"port": 8080}`, content)
	})

	t.Run("YAML", func(t *testing.T) {
		require.NoError(t, vfs.InsertYAML("/cfg/app.yaml", map[string]string{"name": "memsys"}))
		content, err := vfs.ReadToString("/cfg/app.yaml")
		require.NoError(t, err)
		assert.YAMLEq(t, "name: memsys\n", content)
	})

	t.Run("MustInsertPanics", func(t *testing.T) {
		require.NoError(t, vfs.InsertString("/plain", "file"))
		assert.Panics(t, func() {
			vfs.MustInsert("/plain/child", []byte("x"))
		})
	})
}

func TestConcurrentAccess(t *testing.T) {
	vfs := setupTestFS(t)
	require.NoError(t, vfs.CreateDirAll("/shared"))
	require.NoError(t, vfs.Write("/shared/log", nil))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/shared/worker-%d", i)
			assert.NoError(t, vfs.Write(p, []byte(strings.Repeat("x", i))))

			data, err := vfs.Read(p)
			assert.NoError(t, err)
			assert.Len(t, data, i)

			h, err := vfs.Open("/shared/log", AppendOptions())
			if !assert.NoError(t, err) {
				return
			}
			defer h.Close()
			_, err = h.WriteAt([]byte{byte('a' + i)}, int64(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := vfs.ReadDirAll("/shared")
	require.NoError(t, err)
	assert.Len(t, entries, workers+1)

	log, err := vfs.ReadToString("/shared/log")
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", log)
}
