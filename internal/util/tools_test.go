package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeExecutable drops an executable stub file and returns its path.
func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestResolveTool(t *testing.T) {
	t.Run("explicit path wins when executable", func(t *testing.T) {
		bin := writeExecutable(t, t.TempDir(), "ffmpeg")

		path, err := ResolveTool(bin, "ffmpeg", "")
		require.NoError(t, err)
		assert.Equal(t, bin, path)
	})

	t.Run("explicit path errors when missing", func(t *testing.T) {
		_, err := ResolveTool("/nonexistent/dir/ffmpeg", "ffmpeg", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an executable file")
	})

	t.Run("explicit path errors when not executable", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ffmpeg")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

		_, err := ResolveTool(path, "ffmpeg", "")
		assert.Error(t, err)
	})

	t.Run("env var overrides PATH for bare name", func(t *testing.T) {
		bin := writeExecutable(t, t.TempDir(), "fake-ls")
		t.Setenv("CLIPARR_TEST_BINARY", bin)

		// "ls" exists on PATH, but the override should win.
		path, err := ResolveTool("ls", "ls", "CLIPARR_TEST_BINARY")
		require.NoError(t, err)
		assert.Equal(t, bin, path)
	})

	t.Run("bare configured name replaces the default name", func(t *testing.T) {
		// "sh" exists on any Unix system; the default name does not.
		path, err := ResolveTool("sh", "definitely-nonexistent-tool", "")
		require.NoError(t, err)
		assert.Contains(t, path, "sh")
	})

	t.Run("empty configured value falls back to PATH", func(t *testing.T) {
		path, err := ResolveTool("", "ls", "")
		require.NoError(t, err)
		assert.Contains(t, path, "ls")
	})

	t.Run("unresolvable tool returns error", func(t *testing.T) {
		path, err := ResolveTool("", "definitely-nonexistent-tool-12345", "")
		assert.Error(t, err)
		assert.Empty(t, path)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("ignores env var pointing at a non-executable", func(t *testing.T) {
		dir := t.TempDir()
		plain := filepath.Join(dir, "tool")
		require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))
		t.Setenv("CLIPARR_TEST_BINARY", plain)

		path, err := ResolveTool("", "ls", "CLIPARR_TEST_BINARY")
		require.NoError(t, err)
		assert.NotEqual(t, plain, path)
	})

	t.Run("ignores env var pointing at a directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("CLIPARR_TEST_BINARY", dir)

		path, err := ResolveTool("", "ls", "CLIPARR_TEST_BINARY")
		require.NoError(t, err)
		assert.NotEqual(t, dir, path)
	})
}
