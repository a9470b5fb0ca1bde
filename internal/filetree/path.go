package filetree

import "strings"

// Path is a sequence of folder names from the root. The empty Path is the root.
type Path []string

// ParsePath splits a slash separated path. Empty segments are dropped, so
// "", "/" and "//" all name the root.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// String joins the segments with "/", root is "/".
func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Child returns a new Path one level below p.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Clone returns a copy that does not share p's backing array.
func (p Path) Clone() Path {
	if p == nil {
		return Path{}
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// HasPrefix reports whether prefix names p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether one path is an ancestor of (or equal to) the other.
func (p Path) Overlaps(other Path) bool {
	return p.HasPrefix(other) || other.HasPrefix(p)
}
