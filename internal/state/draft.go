package state

import "slices"

// Draft is a path-local, copy-on-write view of one Object in the state tree.
//
// Mutator handlers receive a Draft scoped to the model level that declares
// them. Reads see the handler's own writes; the underlying Object is never
// touched. When the handler returns, the reducer collects Patches and merges
// them into the next tree.
//
// Values returned by Get are shared with the canonical tree and MUST be
// treated as read-only. Use Object for nested edits and the array helpers
// (Append, SetIndex, RemoveIndex, Filter) for slices; they copy before
// writing.
type Draft struct {
	base     Object
	writes   map[string]any
	deletes  map[string]bool
	children map[string]*Draft
	replaced bool
}

// NewDraft returns a Draft over base. A nil base is treated as empty.
func NewDraft(base Object) *Draft {
	if base == nil {
		base = Object{}
	}
	return &Draft{base: base}
}

// Base returns the Object the draft was opened on.
func (d *Draft) Base() Object {
	return d.base
}

// Lookup returns the current value for key.
func (d *Draft) Lookup(key string) (any, bool) {
	if child, ok := d.children[key]; ok {
		return child.Result(), true
	}
	if d.deletes[key] {
		return nil, false
	}
	if v, ok := d.writes[key]; ok {
		return v, true
	}
	v, ok := d.base[key]
	return v, ok
}

// Get returns the current value for key, or nil.
func (d *Draft) Get(key string) any {
	v, _ := d.Lookup(key)
	return v
}

// Has reports whether key currently holds a value.
func (d *Draft) Has(key string) bool {
	_, ok := d.Lookup(key)
	return ok
}

// Keys returns the current keys in lexical order.
func (d *Draft) Keys() []string {
	seen := make(map[string]bool, len(d.base)+len(d.writes))
	var keys []string
	add := func(k string) {
		if !seen[k] && !d.deletes[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range d.base {
		add(k)
	}
	for k := range d.writes {
		add(k)
	}
	for k := range d.children {
		add(k)
	}
	slices.Sort(keys)
	return keys
}

// Set assigns v to key. Any open nested draft for key is discarded.
func (d *Draft) Set(key string, v any) {
	if d.writes == nil {
		d.writes = make(map[string]any)
	}
	delete(d.children, key)
	delete(d.deletes, key)
	d.writes[key] = v
}

// Delete removes key.
func (d *Draft) Delete(key string) {
	if d.deletes == nil {
		d.deletes = make(map[string]bool)
	}
	delete(d.children, key)
	delete(d.writes, key)
	d.deletes[key] = true
}

// Update replaces the value for key with fn(current).
func (d *Draft) Update(key string, fn func(any) any) {
	d.Set(key, fn(d.Get(key)))
}

// Object returns a nested draft for key. If key does not hold an Object, it
// is first replaced by an empty one.
func (d *Draft) Object(key string) *Draft {
	if child, ok := d.children[key]; ok {
		return child
	}
	cur, ok := d.Lookup(key)
	obj, isObj := cur.(Object)
	if !ok || !isObj {
		obj = Object{}
		d.Set(key, obj)
	}
	child := NewDraft(obj)
	if d.children == nil {
		d.children = make(map[string]*Draft)
	}
	d.children[key] = child
	return child
}

// Replace discards every edit so far and makes obj the new value of the
// whole draft. Further edits apply on top of obj.
func (d *Draft) Replace(obj Object) {
	if obj == nil {
		obj = Object{}
	}
	d.base = obj
	d.writes = nil
	d.deletes = nil
	d.children = nil
	d.replaced = true
}

// Append appends vals to the array at key, copying the array first.
func (d *Draft) Append(key string, vals ...any) {
	cur := d.array(key)
	next := make(Array, len(cur), len(cur)+len(vals))
	copy(next, cur)
	d.Set(key, append(next, vals...))
}

// SetIndex replaces element i of the array at key. Out-of-range indexes are
// ignored.
func (d *Draft) SetIndex(key string, i int, v any) {
	cur := d.array(key)
	if i < 0 || i >= len(cur) {
		return
	}
	next := slices.Clone(cur)
	next[i] = v
	d.Set(key, next)
}

// RemoveIndex removes element i of the array at key. Out-of-range indexes
// are ignored.
func (d *Draft) RemoveIndex(key string, i int) {
	cur := d.array(key)
	if i < 0 || i >= len(cur) {
		return
	}
	next := make(Array, 0, len(cur)-1)
	next = append(next, cur[:i]...)
	d.Set(key, append(next, cur[i+1:]...))
}

// Filter keeps the elements of the array at key for which keep returns true.
func (d *Draft) Filter(key string, keep func(any) bool) {
	cur := d.array(key)
	next := make(Array, 0, len(cur))
	for _, v := range cur {
		if keep(v) {
			next = append(next, v)
		}
	}
	d.Set(key, next)
}

func (d *Draft) array(key string) Array {
	arr, _ := d.Get(key).(Array)
	return arr
}

// Modified reports whether the draft holds any edit.
func (d *Draft) Modified() bool {
	if d.replaced || len(d.writes) > 0 || len(d.deletes) > 0 {
		return true
	}
	for _, child := range d.children {
		if child.Modified() {
			return true
		}
	}
	return false
}

// Patches returns the edits relative to the draft's own Object, in a
// deterministic order: a replacement first, then writes and deletes by key,
// then nested drafts by key.
func (d *Draft) Patches() []Patch {
	var out []Patch
	if d.replaced {
		out = append(out, Patch{Path: nil, Value: d.base})
	}
	for _, k := range SortedKeys(d.writes) {
		out = append(out, Patch{Path: Path{k}, Value: d.writes[k]})
	}
	for _, k := range SortedKeys(d.deletes) {
		out = append(out, Patch{Path: Path{k}, Delete: true})
	}
	for _, k := range SortedKeys(d.children) {
		out = append(out, Prefix(Path{k}, d.children[k].Patches())...)
	}
	return out
}

// Result returns the Object the draft currently describes. Untouched drafts
// return their base unchanged.
func (d *Draft) Result() Object {
	if d.replaced {
		// base already is the replacement; apply only the later edits.
		rest := d.Patches()[1:]
		return Apply(d.base, rest)
	}
	return Apply(d.base, d.Patches())
}

// Value reads key from d as T, returning the zero value on a type mismatch.
func Value[T any](d *Draft, key string) T {
	return As[T](d.Get(key))
}
