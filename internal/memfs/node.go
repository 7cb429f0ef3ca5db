package memfs

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// FileType identifies the variant of a tree entry.
type FileType int

const (
	TypeFile FileType = iota + 1
	TypeDir
	TypeSymlink
)

func (t FileType) IsFile() bool { return t == TypeFile }
func (t FileType) IsDir() bool { return t == TypeDir }
func (t FileType) IsSymlink() bool { return t == TypeSymlink }

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

const (
	defaultFileMode uint32 = 0o666
	defaultDirMode  uint32 = 0o777
)

// entry is a node in the tree. Name is the key in the parent's sorted
// child list.
type entry interface {
	name() string
	rename(name string)
	fileType() FileType
	times() (created, modified time.Time)
}

// fileData is the content of a File. It is shared by the tree entry and
// every open handle and has its own lock, independent of the tree lock.
type fileData struct {
	mu       sync.RWMutex
	data     []byte
	mode     uint32
	created  time.Time
	modified time.Time
}

func newFileData(mode uint32, now time.Time) *fileData {
	return &fileData{mode: mode, created: now, modified: now}
}

// touch advances the modified time. Caller holds mu for writing.
func (d *fileData) touch(now time.Time) {
	if now.After(d.modified) {
		d.modified = now
	}
}

type fileNode struct {
	fname string
	data  *fileData
}

func (f *fileNode) name() string { return f.fname }
func (f *fileNode) rename(name string) { f.fname = name }
func (f *fileNode) fileType() FileType { return TypeFile }
func (f *fileNode) times() (time.Time, time.Time) {
	f.data.mu.RLock()
	defer f.data.mu.RUnlock()
	return f.data.created, f.data.modified
}

// dirNode owns its children. Children are kept sorted by name so lookups
// and inserts are binary searches and duplicates cannot occur.
type dirNode struct {
	dname    string
	mode     uint32
	created  time.Time
	modified time.Time
	children []entry
}

func newDirNode(name string, mode uint32, now time.Time) *dirNode {
	return &dirNode{dname: name, mode: mode, created: now, modified: now}
}

func (d *dirNode) name() string { return d.dname }
func (d *dirNode) rename(name string) { d.dname = name }
func (d *dirNode) fileType() FileType { return TypeDir }
func (d *dirNode) times() (time.Time, time.Time) {
	return d.created, d.modified
}

func (d *dirNode) touch(now time.Time) {
	if now.After(d.modified) {
		d.modified = now
	}
}

// search returns the position of name, or the insertion point and false.
func (d *dirNode) search(name string) (int, bool) {
	return slices.BinarySearchFunc(d.children, name, func(e entry, target string) int {
		return strings.Compare(e.name(), target)
	})
}

func (d *dirNode) lookup(name string) entry {
	if i, ok := d.search(name); ok {
		return d.children[i]
	}
	return nil
}

func (d *dirNode) insertAt(i int, e entry) {
	d.children = slices.Insert(d.children, i, e)
}

func (d *dirNode) removeAt(i int) entry {
	e := d.children[i]
	d.children = slices.Delete(d.children, i, i+1)
	return e
}

type symlinkNode struct {
	sname    string
	target   string
	created  time.Time
	modified time.Time
}

func (s *symlinkNode) name() string { return s.sname }
func (s *symlinkNode) rename(name string) { s.sname = name }
func (s *symlinkNode) fileType() FileType { return TypeSymlink }
func (s *symlinkNode) times() (time.Time, time.Time) {
	return s.created, s.modified
}
