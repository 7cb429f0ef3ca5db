package memfs

import (
	"io"
	"io/fs"
	"time"
)

// Capability interfaces. Each names one operation family so that code can
// depend on the subset it uses and run against *FS or a host-backed
// implementation unchanged.

type Canonicalizer interface {
	Canonicalize(p string) (string, error)
}

type CurrentDirGetter interface {
	CurrentDir() (string, error)
}

type CurrentDirSetter interface {
	SetCurrentDir(p string) error
}

type EnvReader interface {
	EnvVarOS(key string) (string, bool)
}

type EnvWriter interface {
	SetEnvVar(key, value string)
}

type DirAllCreator interface {
	CreateDirAll(p string) error
}

type FileReader interface {
	Read(p string) ([]byte, error)
}

type StringReader interface {
	ReadToString(p string) (string, error)
}

type FileWriter interface {
	Write(p string, data []byte) error
}

type FileRemover interface {
	RemoveFile(p string) error
}

type SymlinkRemover interface {
	RemoveSymlink(p string) error
}

type DirRemover interface {
	RemoveDirAll(p string) error
}

type Renamer interface {
	Rename(from, to string) error
}

type HardLinker interface {
	HardLink(src, dst string) error
}

type Symlinker interface {
	SymlinkFile(original, link string) error
	SymlinkDir(original, link string) error
}

type LinkReader interface {
	ReadLink(p string) (string, error)
}

type PermissionSetter interface {
	SetPermissions(p string, mode uint32) error
}

// ExistenceChecker collapses NotFound into false and reports other errors.
type ExistenceChecker interface {
	Exists(p string) (bool, error)
	IsFile(p string) (bool, error)
	IsDir(p string) (bool, error)
	IsSymlink(p string) (bool, error)
}

// Opener opens files. F is the backend's handle type.
type Opener[F io.ReadWriteCloser] interface {
	Open(p string, opts OpenOptions) (F, error)
}

// MetadataReader stats paths. M is the backend's metadata type.
type MetadataReader[M fs.FileInfo] interface {
	Metadata(p string) (M, error)
	SymlinkMetadata(p string) (M, error)
}

// DirReader lists directories. E is the backend's entry type.
type DirReader[E fs.DirEntry] interface {
	ReadDirAll(p string) ([]E, error)
}

type Clock interface {
	TimeNow() time.Time
}

type Entropy interface {
	Random(buf []byte) error
}

type Sleeper interface {
	Sleep(d time.Duration)
}

// Seeder, TimeFixer and SleepDisabler are implemented only by test doubles.
type Seeder interface {
	SetSeed(seed *uint64)
}

type TimeFixer interface {
	SetTime(t *time.Time)
}

type SleepDisabler interface {
	DisableSleep()
}

var (
	_ Canonicalizer            = (*FS)(nil)
	_ CurrentDirGetter         = (*FS)(nil)
	_ CurrentDirSetter         = (*FS)(nil)
	_ EnvReader                = (*FS)(nil)
	_ EnvWriter                = (*FS)(nil)
	_ DirAllCreator            = (*FS)(nil)
	_ FileReader               = (*FS)(nil)
	_ StringReader             = (*FS)(nil)
	_ FileWriter               = (*FS)(nil)
	_ FileRemover              = (*FS)(nil)
	_ SymlinkRemover           = (*FS)(nil)
	_ DirRemover               = (*FS)(nil)
	_ Renamer                  = (*FS)(nil)
	_ HardLinker               = (*FS)(nil)
	_ Symlinker                = (*FS)(nil)
	_ LinkReader               = (*FS)(nil)
	_ PermissionSetter         = (*FS)(nil)
	_ ExistenceChecker         = (*FS)(nil)
	_ Opener[*FileHandle]      = (*FS)(nil)
	_ MetadataReader[Metadata] = (*FS)(nil)
	_ DirReader[DirEntry]      = (*FS)(nil)
	_ Clock                    = (*FS)(nil)
	_ Entropy                  = (*FS)(nil)
	_ Sleeper                  = (*FS)(nil)
	_ Seeder                   = (*FS)(nil)
	_ TimeFixer                = (*FS)(nil)
	_ SleepDisabler            = (*FS)(nil)
)
