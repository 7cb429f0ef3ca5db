// Package memfs provides error types and error handling utilities.
//
// This file contains the error taxonomy shared by every operation.
package memfs

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound indicates a path or one of its components doesn't exist
	ErrNotFound = fs.ErrNotExist

	// ErrAlreadyExists indicates the destination entry is already present
	ErrAlreadyExists = fs.ErrExist

	// ErrInvalidInput indicates a bad argument such as an empty path or a
	// seek before the start of a file
	ErrInvalidInput = fs.ErrInvalid

	// ErrClosed indicates use of a handle after Close
	ErrClosed = fs.ErrClosed

	// ErrUnsupported indicates an operation or field this emulation does not model
	ErrUnsupported = errors.ErrUnsupported

	// ErrInvalidData indicates content that could not be decoded (e.g. non UTF-8)
	ErrInvalidData = errors.New("invalid data")

	// ErrLeadsIntoFile indicates an intermediate path component is a file or symlink
	ErrLeadsIntoFile = errors.New("path leads into a file or symlink")

	// ErrNotFile indicates the entry is a directory or symlink where a file was expected
	ErrNotFile = errors.New("not a file")

	// ErrNotDir indicates the entry is not a directory
	ErrNotDir = errors.New("not a directory")

	// ErrRenameOntoDir indicates a rename whose destination is an existing directory
	ErrRenameOntoDir = errors.New("cannot rename onto a directory")

	// ErrSymlinkLoop indicates symlink resolution revisited a path
	ErrSymlinkLoop = errors.New("symlink loop detected")

	// ErrNotEmpty indicates attempt to remove a non-empty directory
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNoRoot indicates the path names the root itself or has no file name
	ErrNoRoot = errors.New("cannot operate on root or invalid path")
)

// Error wraps a failure with the operation and affected path.
type Error struct {
	Op   string // Operation that failed (e.g., "open", "rename")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new *Error with the given operation, path, and underlying error
func newError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Trace("Created error: %v", fsErr)
	return fsErr
}

// Common operation names for consistent logging and error reporting
const (
	OpCanonicalize   = "canonicalize"
	OpCreateDir      = "mkdir"
	OpOpen           = "open"
	OpRead           = "read"
	OpWrite          = "write"
	OpSeek           = "seek"
	OpTruncate       = "truncate"
	OpRemove         = "remove"
	OpRemoveDir      = "rmdir"
	OpRename         = "rename"
	OpHardLink       = "link"
	OpSymlink        = "symlink"
	OpReadDir        = "readdir"
	OpMetadata       = "stat"
	OpSymlinkStat    = "lstat"
	OpReadLink       = "readlink"
	OpSetPermissions = "chmod"
	OpCopy           = "copy"
	OpChdir          = "chdir"
	OpEnv            = "getenv"
	OpTempDir        = "tempdir"
)

// Kind is the coarse classification of an error.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidInput
	KindInvalidData
	KindUnsupported
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	KindNotFound:      "not found",
	KindAlreadyExists: "already exists",
	KindInvalidInput:  "invalid input",
	KindInvalidData:   "invalid data",
	KindUnsupported:   "unsupported",
}

func (k Kind) String() string {
	return kindNames[k]
}

// KindOf classifies err. Structural conflicts (leads into a file, rename
// onto a directory, symlink loop, not empty) are KindOther.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindOther
	}
}

// IsNotFound reports whether err is in the NotFound class.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
