package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the absolute path to the project root.
func getProjectRoot(t *testing.T) string {
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	t.Fatal("go.mod not found")
	return ""
}

// buildBinary compiles cmd/savify into a temp dir.
func buildBinary(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "savify")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	buildCmd.Dir = filepath.Join(getProjectRoot(t), "cmd", "savify")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))
	return binPath
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

func TestMainEntryPoints(t *testing.T) {
	_ = main
}

func TestMainHelpFlag(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	bin := buildBinary(t)

	out, err := exec.Command(bin, "--help").CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), "savify")
	assert.Contains(t, string(out), "history line")
}

func TestMainUnknownCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	bin := buildBinary(t)

	out, err := exec.Command(bin, "unknown-command-xyz").CombinedOutput()
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, strings.ToLower(string(out)), "unknown")
}

func TestBinaryExitCodes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := buildBinary(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello\n"), 0644))

	runIn := func(args ...string) (string, int) {
		cmd := exec.Command(bin, append([]string{"--no-color"}, args...)...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		return string(out), exitCode(err)
	}

	out, code := runIn("commit")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No file specified")

	_, code = runIn("commit", "missing.txt")
	assert.Equal(t, 1, code)

	out, code = runIn("commit", "notes.txt")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Committed first version")

	out, code = runIn("ls")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "notes.txt")

	out, code = runIn("--json", "ls", "notes.txt")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, `"label": "Version 1"`)

	_, code = runIn("rm", "notes.txt")
	assert.Equal(t, 1, code)

	_, code = runIn("rm", "notes.txt", "all")
	assert.Equal(t, 0, code)

	_, code = runIn("ls")
	assert.Equal(t, 1, code)
}
