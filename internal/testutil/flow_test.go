package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedCascadeGenerator(t *testing.T) {
	gen := NewFixedCascadeGenerator("run-42")
	assert.Equal(t, "run-42", gen.Generate())
	assert.Equal(t, "run-42", gen.Generate())

	assert.Equal(t, "test-cascade", NewFixedCascadeGenerator("").Generate())
}
