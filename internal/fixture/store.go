package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"memsys/internal/logging"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

var (
	logger = logging.GetLogger().WithPrefix("fixture")
)

// Format is the serialization of a manifest.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// Compression wraps the serialized manifest.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

// DetectFormat derives the format and compression from a file name such
// as "tree.yaml", "tree.json.zst" or "tree.yml.gz".
func DetectFormat(name string) (Format, Compression, error) {
	comp := CompressionNone
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		comp = CompressionZstd
		name = strings.TrimSuffix(name, filepath.Ext(name))
	case ".gz":
		comp = CompressionGzip
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, comp, nil
	case ".json":
		return FormatJSON, comp, nil
	default:
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Decode parses a manifest and validates it. Unknown fields are rejected.
func Decode(r io.Reader, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parsing YAML manifest: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("parsing JSON manifest: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}
	if m.Version == 0 {
		m.Version = Version
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode writes m in the given format.
func Encode(w io.Writer, m *Manifest, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encoding YAML manifest: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encoding JSON manifest: %w", err)
		}
		return nil
	default:
		return ErrUnknownFormat
	}
}

func decompress(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	default:
		return io.NopCloser(r), nil
	}
}

func compress(w io.Writer, comp Compression) (io.WriteCloser, error) {
	switch comp {
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Load reads the manifest at path. Format and compression come from the
// file name.
func Load(path string) (*Manifest, error) {
	format, comp, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("Loading manifest from: %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	r, err := decompress(f, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress manifest %s: %w", path, err)
	}
	defer r.Close()

	m, err := Decode(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("Loaded manifest %s (%d entries)", path, len(m.Entries))
	return m, nil
}

// Marshal serializes m into memory using the format implied by name.
func Marshal(name string, m *Manifest) ([]byte, error) {
	format, comp, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := compress(&buf, comp)
	if err != nil {
		return nil, err
	}
	if err := Encode(w, m, format); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store saves manifests to one path and keeps timestamped backups of the
// versions it replaces.
type Store struct {
	path        string
	backupDir   string
	backupCount int
	mu          sync.Mutex
}

// NewStore creates a Store for path, creating its directory and the
// backup directory beside it.
func NewStore(path string) (*Store, error) {
	if _, _, err := DetectFormat(path); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory %s: %w", dir, err)
	}
	backupDir := filepath.Join(dir, ".memsys-backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	logger.Debug("Manifest store at %s (backups in %s)", absPath, backupDir)
	return &Store{path: absPath, backupDir: backupDir, backupCount: 5}, nil
}

// Path returns the absolute manifest path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored manifest.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Load(s.path)
}

// Save writes m, backing up the previous version first. The file is
// replaced atomically.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Version == 0 {
		m.Version = Version
	}
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := Marshal(s.path, m)
	if err != nil {
		return err
	}

	if err := s.createBackup(); err != nil {
		logger.Warn("Failed to create backup: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	logger.Debug("Saved manifest %s (%d bytes)", s.path, len(data))
	return nil
}

// Backups lists backup files, oldest first.
func (s *Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, err
	}
	prefix := filepath.Base(s.path) + "."
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, filepath.Join(s.backupDir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) createBackup() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	backupPath := filepath.Join(s.backupDir, filepath.Base(s.path)+"."+timestamp)
	logger.Debug("Creating backup: %s", backupPath)
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return err
	}
	return s.cleanupOldBackups()
}

func (s *Store) cleanupOldBackups() error {
	backups, err := s.Backups()
	if err != nil {
		return err
	}
	for len(backups) > s.backupCount {
		logger.Trace("Removing old backup: %s", backups[0])
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}
