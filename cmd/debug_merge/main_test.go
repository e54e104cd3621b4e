package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T, base, theirs, mine string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "base"), filepath.Join(dir, "theirs"), filepath.Join(dir, "mine")}
	for i, content := range []string{base, theirs, mine} {
		require.NoError(t, os.WriteFile(paths[i], []byte(content), 0o644))
	}
	return paths
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := newCommand()
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	err := c.Execute()
	return out.String(), err
}

// TestDebugMerge tests the text output of a clean merge.
func TestDebugMerge(t *testing.T) {
	files := writeInputs(t, "a\nb\nc\n", "a\nb\nc\nd\n", "z\nb\nc\n")

	out, err := execute(t, files...)
	require.NoError(t, err)
	assert.Equal(t, "=== Status: G (binary=false) ===\nz\nb\nc\nd\n", out)
}

// TestDebugMerge_JSON tests the JSON output and the whitespace flag.
func TestDebugMerge_JSON(t *testing.T) {
	files := writeInputs(t, "a b\n", "a  b\n", "a b\n")

	out, err := execute(t, append([]string{"--json", "-b"}, files...)...)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "unchanged", got["status"])
	assert.Equal(t, "a b\n", got["content"])
	assert.Equal(t, false, got["binary"])
}

// TestDebugMerge_Args tests that exactly three files are required.
func TestDebugMerge_Args(t *testing.T) {
	_, err := execute(t, "only-one")
	assert.Error(t, err)

	_, err = execute(t, "/no/base", "/no/theirs", "/no/mine")
	assert.Error(t, err)
}
