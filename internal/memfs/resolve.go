package memfs

import (
	"fmt"

	"memsys/internal/logging"
)

var (
	resolveLogger = logging.GetLogger().WithPrefix("resolve")
)

// maxSymlinkHops bounds resolution of link chains that grow without ever
// revisiting a path (e.g. a link whose target is below itself).
const maxSymlinkHops = 40

type lookupStatus int

const (
	lookupNotFound lookupStatus = iota
	lookupFound
	lookupSymlink
)

// lookupResult is the outcome of walking a path.
//
//   - lookupFound: path is canonical up to the walk depth and entry is the
//     final component.
//   - lookupNotFound: some component is absent; path is the best-effort
//     remaining path (resolved prefix plus the unresolved rest).
//   - lookupSymlink: walking stopped at link, found at path. target is the
//     link target joined against the containing directory, with the
//     components after the link appended, normalized.
type lookupResult struct {
	status lookupStatus
	path   vpath
	entry  entry
	link   *symlinkNode
	target vpath
	rest   int
}

// lookupNoFollow walks p from the root without dereferencing symlinks,
// stopping at the first one. Caller holds vfs.mu.
func (vfs *FS) lookupNoFollow(p vpath) (lookupResult, error) {
	keys := p.keys()
	if len(keys) == 0 {
		return lookupResult{}, fmt.Errorf("empty path: %w", ErrInvalidInput)
	}

	dir := vfs.top
	for i, key := range keys {
		e := dir.lookup(key)
		if e == nil {
			return lookupResult{status: lookupNotFound, path: p}, nil
		}

		last := i == len(keys)-1
		switch n := e.(type) {
		case *dirNode:
			if last {
				return lookupResult{status: lookupFound, path: p, entry: n}, nil
			}
			dir = n
		case *fileNode:
			if last {
				return lookupResult{status: lookupFound, path: p, entry: n}, nil
			}
			return lookupResult{}, ErrLeadsIntoFile
		case *symlinkNode:
			current := p.prefix(i + 1)
			containing, _, _ := current.parent()
			target := containing.join(parsePath(n.target))
			rest := keys[i+1:]
			target = target.join(vpath{names: rest}).normalized()
			return lookupResult{
				status: lookupSymlink,
				path:   current,
				entry:  n,
				link:   n,
				target: target,
				rest:   len(rest),
			}, nil
		}
	}

	return lookupResult{status: lookupNotFound, path: p}, nil
}

// lookup resolves p, dereferencing every symlink it meets. When followFinal
// is false a symlink in the last position is returned as-is, which is what
// symlink metadata and readlink need. Caller holds vfs.mu.
func (vfs *FS) lookup(p vpath, followFinal bool) (lookupResult, error) {
	// Allocated on the first symlink only; most lookups never see one.
	var seen map[string]struct{}

	for hops := 0; ; hops++ {
		r, err := vfs.lookupNoFollow(p)
		if err != nil {
			return r, err
		}
		if r.status != lookupSymlink {
			return r, nil
		}
		if !followFinal && r.rest == 0 {
			return r, nil
		}

		if seen == nil {
			seen = map[string]struct{}{p.String(): {}}
		}
		next := r.target.String()
		if _, dup := seen[next]; dup || hops >= maxSymlinkHops {
			resolveLogger.Debug("Symlink loop resolving %q at %q", p.String(), next)
			return lookupResult{}, fmt.Errorf("resolving %q: %w", p.String(), ErrSymlinkLoop)
		}
		seen[next] = struct{}{}

		resolveLogger.Trace("Following symlink %q -> %q", r.path.String(), next)
		p = r.target
	}
}

// lookupEntry resolves p following symlinks and fails NotFound when absent.
// Caller holds vfs.mu.
func (vfs *FS) lookupEntry(p vpath) (vpath, entry, error) {
	r, err := vfs.lookup(p, true)
	if err != nil {
		return vpath{}, nil, err
	}
	if r.status == lookupNotFound {
		return vpath{}, nil, ErrNotFound
	}
	return r.path, r.entry, nil
}
