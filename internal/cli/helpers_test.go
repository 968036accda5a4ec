package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

// isolate points HOME at a fresh directory so no user config leaks in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MODELTREE_CONFIG", "")
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig writes a config file selecting backend with its data file
// in a temp dir, and returns the config path and the data path.
func writeConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "state.db")
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("storage:\n  backend: %s\n  path: %s\n", backend, data)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, data
}

func decodeResponse(t *testing.T, out string) (string, any) {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Status, resp.Data
}
