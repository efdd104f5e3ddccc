// Package util provides small helpers shared across packages.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Environment overrides for the external tools the pipeline shells out
// to. Each takes priority over the working-directory and PATH lookup
// for its tool.
const (
	EnvFFmpegBinary  = "CLIPARR_FFMPEG_BINARY"
	EnvFFprobeBinary = "CLIPARR_FFPROBE_BINARY"
	EnvYtdlpBinary   = "CLIPARR_YTDLP_BINARY"
)

// ResolveTool resolves the executable for an external tool.
//
// When configured names an explicit path (contains a path separator) it
// must point at an executable file; anything else is an error so that a
// typo in the config surfaces at startup instead of mid-job. A bare
// name or empty value falls through the usual search order:
//
//  1. the environment variable, when set
//  2. ./name (current directory, useful for development)
//  3. name on PATH (via exec.LookPath)
func ResolveTool(configured, name, envVar string) (string, error) {
	if strings.ContainsRune(configured, os.PathSeparator) {
		if isExecutable(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("configured %s path %q is not an executable file", name, configured)
	}
	if configured != "" {
		name = configured
	}
	return findBinary(name, envVar)
}

// findBinary searches for an executable by bare name. Each candidate is
// verified to exist and be executable before being returned.
func findBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" && isExecutable(envPath) {
			return envPath, nil
		}
	}

	if local := "./" + name; isExecutable(local) {
		return local, nil
	}

	// LookPath already verifies executability.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

// isExecutable reports whether path is a regular file with an
// executable bit set for owner, group or other.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
