package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-repository file listing extra noise patterns.
const IgnoreFileName = ".gitshape-ignore"

// GetIgnorePatterns reads the patterns of the ignore file name in cwd.
// If the file does not exist, it returns an empty pattern list.
func GetIgnorePatterns(cwd string, name string) ([]string, error) {
	ignorePath := name
	if !filepath.IsAbs(ignorePath) {
		ignorePath = filepath.Join(cwd, name)
	}

	content, err := os.ReadFile(ignorePath)
	if os.IsNotExist(err) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return parseIgnorePatterns(string(content)), nil
}

// parseIgnorePatterns keeps non-empty lines that are not comments.
func parseIgnorePatterns(content string) []string {
	patterns := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, filepath.ToSlash(line))
		}
	}
	return patterns
}
