package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Stdio is the path standing for stdin or stdout.
const Stdio = "-"

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// OutputPath picks where the completed file of input is written: output
// when given, input itself in place mode, stdout for stdin, and otherwise
// input with ".btac" inserted before its extension.
func OutputPath(input, output string, inplace bool) string {
	switch {
	case output != "":
		return output
	case inplace, input == Stdio:
		return input
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".btac" + ext
}

// DefaultCachePath returns the response cache location under the user
// cache directory, or "" when it cannot be determined.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, GlobalConfigDir, "responses.db")
}
