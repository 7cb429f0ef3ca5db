package memfs

import (
	"strings"
)

const separator = "/"

// vpath is a parsed path: an optional drive volume ("C:"), whether it is
// anchored at a root, and its remaining components in order.
type vpath struct {
	volume string
	rooted bool
	names  []string
}

// parsePath splits p into components without folding "." or "..".
func parsePath(p string) vpath {
	var vp vpath
	if hasVolume(p) {
		vp.volume = p[:2]
		p = p[2:]
	}
	vp.rooted = strings.HasPrefix(p, separator)
	for _, name := range strings.Split(p, separator) {
		if name != "" {
			vp.names = append(vp.names, name)
		}
	}
	return vp
}

func hasVolume(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// normalized folds "." and ".." lexically. ".." pops the previously pushed
// component; popping past the root (or the start of a relative path) is a
// no-op.
func (vp vpath) normalized() vpath {
	out := vpath{volume: vp.volume, rooted: vp.rooted}
	for _, name := range vp.names {
		switch name {
		case ".":
		case "..":
			if len(out.names) > 0 {
				out.names = out.names[:len(out.names)-1]
			}
		default:
			out.names = append(out.names, name)
		}
	}
	return out
}

// String returns the string representation of the path
func (vp vpath) String() string {
	var b strings.Builder
	b.WriteString(vp.volume)
	if vp.rooted {
		b.WriteString(separator)
	}
	b.WriteString(strings.Join(vp.names, separator))
	return b.String()
}

func (vp vpath) isEmpty() bool {
	return vp.volume == "" && !vp.rooted && len(vp.names) == 0
}

// IsRoot returns true if this is a root path ("/" or "C:/")
func (vp vpath) isRoot() bool {
	return vp.rooted && len(vp.names) == 0
}

// Parent returns the path with the last component removed and the removed
// name. ok is false when there is no component to remove.
func (vp vpath) parent() (parent vpath, name string, ok bool) {
	if len(vp.names) == 0 {
		return vp, "", false
	}
	parent = vpath{
		volume: vp.volume,
		rooted: vp.rooted,
		names:  vp.names[:len(vp.names)-1:len(vp.names)-1],
	}
	return parent, vp.names[len(vp.names)-1], true
}

// join appends other to vp. An absolute other replaces vp entirely, matching
// how a symlink target or a cwd-relative path is combined.
func (vp vpath) join(other vpath) vpath {
	if other.rooted || other.volume != "" {
		return other
	}
	names := make([]string, 0, len(vp.names)+len(other.names))
	names = append(names, vp.names...)
	names = append(names, other.names...)
	return vpath{volume: vp.volume, rooted: vp.rooted, names: names}
}

func (vp vpath) child(name string) vpath {
	return vp.join(vpath{names: []string{name}})
}

// keys returns the sequence of names used to walk the tree: the root entry
// key first ("" for "/", the volume for "C:/"), then each component.
func (vp vpath) keys() []string {
	keys := make([]string, 0, len(vp.names)+1)
	switch {
	case vp.volume != "":
		keys = append(keys, vp.volume)
	case vp.rooted:
		keys = append(keys, "")
	}
	return append(keys, vp.names...)
}

// prefix returns the path made of the first n walk keys.
func (vp vpath) prefix(n int) vpath {
	out := vpath{volume: vp.volume, rooted: vp.rooted}
	if vp.volume != "" || vp.rooted {
		n--
	}
	if n > 0 {
		out.names = append([]string(nil), vp.names[:n]...)
	}
	return out
}

// Normalize folds "." and ".." components of p without touching the tree.
// A leading volume is preserved verbatim.
func Normalize(p string) string {
	return parsePath(p).normalized().String()
}

// IsAbs reports whether p is anchored at a root.
func IsAbs(p string) bool {
	return parsePath(p).rooted
}

// Join joins elem onto base, with an absolute elem replacing base, then
// normalizes the result.
func Join(base string, elem ...string) string {
	vp := parsePath(base)
	for _, e := range elem {
		vp = vp.join(parsePath(e))
	}
	return vp.normalized().String()
}

// Base returns the last component of p, or "" for a root or empty path.
func Base(p string) string {
	vp := parsePath(p).normalized()
	if len(vp.names) == 0 {
		return ""
	}
	return vp.names[len(vp.names)-1]
}

// Dir returns the normalized parent of p.
func Dir(p string) string {
	parent, _, _ := parsePath(p).normalized().parent()
	return parent.String()
}
