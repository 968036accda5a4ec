package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree/internal/config"
)

func TestParsePayload(t *testing.T) {
	assert.Equal(t, float64(5), parsePayload("5"))
	assert.Equal(t, "milk", parsePayload("milk"))
	assert.Equal(t, "/home", parsePayload(`"/home"`))
	assert.Equal(t, map[string]any{"a": true}, parsePayload(`{"a":true}`))
}

func TestCall_Memory(t *testing.T) {
	isolate(t)
	out, err := execute(t, "call", "counter", "inc", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `state:  {"count":5}`)
	assert.NotContains(t, out, "result:")
}

func TestCall_ResultJSON(t *testing.T) {
	isolate(t)
	out, err := execute(t, "call", "todos", "add", "milk", "--format", "json")
	require.NoError(t, err)

	status, data := decodeResponse(t, out)
	assert.Equal(t, "ok", status)
	res := data.(map[string]any)
	assert.Equal(t, float64(1), res["result"])
	assert.Equal(t, float64(2), res["state"].(map[string]any)["nextID"])
}

func TestCall_HandlerError(t *testing.T) {
	isolate(t)
	out, err := execute(t, "call", "todos", "add", `""`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "todo title must not be empty")
}

func TestCall_UnknownCommand(t *testing.T) {
	isolate(t)
	_, err := execute(t, "call", "todos", "ad", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown command")
}

func TestCall_Dispatch(t *testing.T) {
	isolate(t)
	out, err := execute(t, "call", "session", "NAVIGATE", `"/home"`, "--dispatch")
	require.NoError(t, err)
	assert.Contains(t, out, `"route":"/home"`)
}

func TestCall_PersistsAcrossRuns(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			isolate(t)
			cfg, _ := writeConfig(t, backend)

			_, err := execute(t, "call", "counter", "inc", "--config", cfg)
			require.NoError(t, err)
			out, err := execute(t, "call", "counter", "inc", "--config", cfg)
			require.NoError(t, err)
			assert.Contains(t, out, `{"count":2}`)

			out, err = execute(t, "storage", "get", "modeltree:count", "--config", cfg)
			require.NoError(t, err)
			assert.Equal(t, "2\n", out)
		})
	}
}

func TestCall_DemoPersistence(t *testing.T) {
	isolate(t)
	cfg, _ := writeConfig(t, config.BackendSQLite)

	_, err := execute(t, "call", "profile", "setToken", "s3cret", "--config", cfg)
	require.NoError(t, err)
	_, err = execute(t, "call", "profile", "setTheme", "dark", "--config", cfg)
	require.NoError(t, err)

	out, err := execute(t, "storage", "keys", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "profile:theme")
	assert.NotContains(t, out, "token")

	out, err = execute(t, "call", "profile", "setName", "ann", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"theme":"dark"`)
	assert.Contains(t, out, `"token":""`)
}
