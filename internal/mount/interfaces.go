package mount

import (
	"bazil.org/fuse/fs"
)

// Node represents a node in the mounted tree.
type Node interface {
	fs.Node
}

// Directory represents a directory node.
type Directory interface {
	Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
	fs.NodeMkdirer
	fs.NodeCreater
	fs.NodeRemover
	fs.NodeRenamer
	fs.NodeSymlinker
}

// FileNode represents a regular file node.
type FileNode interface {
	Node
	fs.NodeOpener
	fs.NodeSetattrer
	fs.NodeFsyncer
}

// Symlink represents a symlink node.
type Symlink interface {
	Node
	fs.NodeReadlinker
}

// FileHandle represents an open file handle.
type FileHandle interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
	fs.HandleFlusher
	fs.HandleReleaser
}
