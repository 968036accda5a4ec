package state

import "reflect"

// Patch is one structural edit produced by a Draft or a raw reducer.
//
// Path is absolute once the patch has been prefixed with its handler's
// path. An empty Path replaces the whole Object the patch is applied to.
type Patch struct {
	Path   Path
	Value  any
	Delete bool
}

// Prefix returns copies of patches with prefix prepended to every path.
func Prefix(prefix Path, patches []Patch) []Patch {
	if len(prefix) == 0 {
		return patches
	}
	out := make([]Patch, len(patches))
	for i, p := range patches {
		out[i] = Patch{Path: prefix.Join(p.Path), Value: p.Value, Delete: p.Delete}
	}
	return out
}

// Apply commits patches to base and returns the next tree.
//
// INVARIANTS:
//   - base is never mutated.
//   - Only maps on the path from each changed leaf to the root are copied,
//     and each such map is copied at most once per Apply call, so all
//     patches in one call merge into a single next tree.
//   - A patch whose value is Same as the current value is a no-op and does
//     not copy anything, so a handler that rewrites an identical value
//     leaves the tree identity-equal to base.
//   - Patches apply in order; a later patch at the same path wins.
//
// If no patch changes anything, base itself is returned.
func Apply(base Object, patches []Patch) Object {
	if len(patches) == 0 {
		return base
	}
	p := &patcher{root: base, owned: make(map[uintptr]bool)}
	for _, pt := range patches {
		p.apply(pt)
	}
	return p.root
}

// patcher tracks which maps were freshly copied during one Apply so that
// later patches write into them directly instead of copying again.
type patcher struct {
	root  Object
	owned map[uintptr]bool
}

func (p *patcher) apply(pt Patch) {
	cur, exists := GetIn(p.root, pt.Path)
	if pt.Delete {
		if !exists || len(pt.Path) == 0 {
			return
		}
	} else if exists && Same(cur, pt.Value) {
		return
	}

	if len(pt.Path) == 0 {
		if obj, ok := pt.Value.(Object); ok {
			p.root = obj
		}
		return
	}

	p.root = p.own(p.root)
	node := p.root
	for _, key := range pt.Path[:len(pt.Path)-1] {
		child, ok := node[key].(Object)
		if ok {
			child = p.own(child)
		} else {
			child = p.fresh()
		}
		node[key] = child
		node = child
	}

	last := pt.Path[len(pt.Path)-1]
	if pt.Delete {
		delete(node, last)
		return
	}
	node[last] = pt.Value
}

// own returns m if it was created by this patcher, otherwise a shallow copy.
func (p *patcher) own(m Object) Object {
	if m != nil && p.owned[mapID(m)] {
		return m
	}
	cp := make(Object, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	p.owned[mapID(cp)] = true
	return cp
}

func (p *patcher) fresh() Object {
	m := Object{}
	p.owned[mapID(m)] = true
	return m
}

func mapID(m Object) uintptr {
	return reflect.ValueOf(m).Pointer()
}
