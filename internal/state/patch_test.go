package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_NoPatchesReturnsBase(t *testing.T) {
	base := Object{"a": 1}
	assert.True(t, Same(base, Apply(base, nil)))
}

func TestApply_SameValueIsNoop(t *testing.T) {
	inner := Object{"x": 1}
	base := Object{"inner": inner, "n": 1}

	next := Apply(base, []Patch{
		{Path: Path{"n"}, Value: 1},
		{Path: Path{"inner"}, Value: inner},
	})
	assert.True(t, Same(base, next))
}

func TestApply_CopiesEachAncestorOnce(t *testing.T) {
	left := Object{"v": 1}
	right := Object{"v": 2}
	base := Object{"tree": Object{"left": left, "right": right}, "other": Object{}}

	next := Apply(base, []Patch{
		{Path: Path{"tree", "left", "v"}, Value: 10},
		{Path: Path{"tree", "left", "w"}, Value: 11},
	})

	assert.Equal(t, 1, left["v"], "base must not be mutated")
	assert.Equal(t, Object{"v": 10, "w": 11}, ObjectAt(next, Path{"tree", "left"}))
	assert.True(t, Same(right, ObjectAt(next, Path{"tree", "right"})))
	assert.True(t, Same(base["other"], next["other"]))
}

func TestApply_SiblingPatchesMergeIntoOneTree(t *testing.T) {
	base := Object{"a": Object{"n": 0}, "b": Object{"n": 0}}

	next := Apply(base, []Patch{
		{Path: Path{"a", "n"}, Value: 1},
		{Path: Path{"b", "n"}, Value: 2},
	})

	assert.Equal(t, Object{"a": Object{"n": 1}, "b": Object{"n": 2}}, next)
}

func TestApply_DeleteAndCreateIntermediates(t *testing.T) {
	base := Object{"a": 1}

	next := Apply(base, []Patch{
		{Path: Path{"a"}, Delete: true},
		{Path: Path{"missing"}, Delete: true},
		{Path: Path{"x", "y", "z"}, Value: "deep"},
	})

	assert.Equal(t, Object{"x": Object{"y": Object{"z": "deep"}}}, next)
	assert.Equal(t, Object{"a": 1}, base)
}

func TestApply_RootReplacement(t *testing.T) {
	base := Object{"a": 1}
	repl := Object{"b": 2}

	next := Apply(base, []Patch{{Path: nil, Value: repl}, {Path: Path{"c"}, Value: 3}})

	assert.Equal(t, Object{"b": 2, "c": 3}, next)
	assert.Equal(t, Object{"b": 2}, repl, "replacement object must not be mutated")
}

func TestPrefix(t *testing.T) {
	in := []Patch{{Path: Path{"k"}, Value: 1}}
	out := Prefix(Path{"a", "b"}, in)

	assert.Equal(t, Path{"a", "b", "k"}, out[0].Path)
	assert.Equal(t, Path{"k"}, in[0].Path)
	assert.Equal(t, in, Prefix(nil, in))
}
