package state

import "strings"

// Path is an ordered sequence of keys from the tree root to a node.
//
// The zero Path addresses the root. Paths are values: Child and Parent
// always return fresh slices so callers may retain them safely.
type Path []string

// ParsePath splits a dotted path string ("todos.add") into its keys.
// The empty string yields the root path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

// String renders the path with "." separators. The root renders as "".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path extended by key.
func (p Path) Child(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

// Join returns a new path with other appended.
func (p Path) Join(other Path) Path {
	out := make(Path, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

// Parent returns the path of the enclosing node. The parent of the root is
// the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	out := make(Path, len(p)-1)
	copy(out, p[:len(p)-1])
	return out
}

// Last returns the final key, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Equal reports whether both paths hold the same keys in order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}
