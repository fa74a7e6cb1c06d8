package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/multipolicy/internal/module"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestForwardCommand(t *testing.T) {
	stdin := `{"p0": {"obs": [[0.1, 0.2, 0.3, 0.4]]}, "p1": {"obs": [[0.4, 0.3, 0.2, 0.1]]}}`
	out, err := runRoot(t, stdin, "forward", "--mode", "exploration", "--log-level", "error")
	require.NoError(t, err)

	var res map[string]map[string]module.Rows
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 2)
	for _, id := range []string{"p0", "p1"} {
		logits := res[id][module.ActionDistInputsKey]
		require.Len(t, logits, 1, id)
		assert.Len(t, logits[0], 2, id)
	}
}

func TestForwardCommandWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "multipolicy.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
obs_dim: 2
feature_dim: 8
hidden_dim: 8
policies:
  - id: left
    n_actions: 3
`), 0o600))
	batchPath := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(batchPath, []byte(`{"left": {"obs": [[1, 2], [3, 4]]}}`), 0o600))

	out, err := runRoot(t, "", "forward", "--config", cfgPath, "--input", batchPath, "--log-level", "error")
	require.NoError(t, err)

	var res map[string]map[string]module.Rows
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	logits := res["left"][module.ActionDistInputsKey]
	require.Len(t, logits, 2)
	assert.Len(t, logits[0], 3)
}

func TestForwardCommandUnknownPolicy(t *testing.T) {
	_, err := runRoot(t, `{"p9": {"obs": [[1, 2, 3, 4]]}}`, "forward", "--log-level", "error")
	assert.ErrorIs(t, err, module.ErrUnknownModule)
}

func TestForwardCommandBadMode(t *testing.T) {
	_, err := runRoot(t, `{}`, "forward", "--mode", "eval", "--log-level", "error")
	assert.ErrorIs(t, err, module.ErrInvalidMode)
}

func TestForwardCommandConfigDoesNotLeak(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "multipolicy.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
obs_dim: 2
policies:
  - id: left
    n_actions: 3
`), 0o600))

	_, err := runRoot(t, `{"left": {"obs": [[1, 2]]}}`, "forward", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	// A later run without --config sees the defaults again.
	out, err := runRoot(t, `{"p0": {"obs": [[0.1, 0.2, 0.3, 0.4]]}}`, "forward", "--log-level", "error")
	require.NoError(t, err)
	var res map[string]map[string]module.Rows
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res["p0"][module.ActionDistInputsKey][0], 2)

	_, err = runRoot(t, `{"left": {"obs": [[1, 2, 3, 4]]}}`, "forward", "--log-level", "error")
	assert.ErrorIs(t, err, module.ErrUnknownModule)
}

func TestForwardCommandFlagsResetBetweenRuns(t *testing.T) {
	_, err := runRoot(t, `{}`, "forward", "--mode", "eval", "--log-level", "error")
	require.ErrorIs(t, err, module.ErrInvalidMode)

	_, err = runRoot(t, `{"p0": {"obs": [[0.1, 0.2, 0.3, 0.4]]}}`, "forward", "--log-level", "error")
	assert.NoError(t, err)
}
