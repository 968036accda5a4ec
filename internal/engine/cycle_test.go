package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWouldCycle(t *testing.T) {
	assert.False(t, WouldCycle(nil, "a.ping"))
	assert.False(t, WouldCycle([]string{"b.pong"}, "a.ping"))
	assert.True(t, WouldCycle([]string{"a.ping", "b.pong"}, "a.ping"))
}

func TestCycleDetector_WarnsOncePerCascade(t *testing.T) {
	cd := NewCycleDetector()
	cd.Retain("c1")
	cd.Retain("c2")

	assert.True(t, cd.FirstWarning("c1", "a.ping"))
	assert.False(t, cd.FirstWarning("c1", "a.ping"))
	assert.True(t, cd.FirstWarning("c1", "b.pong"))
	assert.True(t, cd.FirstWarning("c2", "a.ping"), "cascades are independent")
	assert.Equal(t, 2, cd.HistorySize())

	cd.Release("c1")
	assert.Equal(t, 1, cd.HistorySize())
	assert.True(t, cd.FirstWarning("c1", "a.ping"))
}

func TestCycleDetector_HistoryLivesUntilLastRelease(t *testing.T) {
	cd := NewCycleDetector()
	cd.Retain("c1") // dispatch
	cd.Retain("c1") // effect started by it

	assert.True(t, cd.FirstWarning("c1", "a.ping"))
	cd.Release("c1")
	assert.False(t, cd.FirstWarning("c1", "a.ping"), "effect still holds the cascade")
	assert.Equal(t, 1, cd.HistorySize())

	cd.Release("c1")
	assert.Zero(t, cd.HistorySize())
}
