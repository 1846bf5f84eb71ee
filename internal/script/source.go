package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile reads a single script body from disk
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script file: %w", err)
	}
	return string(data), nil
}

// ReadDir reads every regular file in dir as a script named after the file
// without its extension. Dotfiles and subdirectories are skipped.
func ReadDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read script directory: %w", err)
	}

	scripts := make(map[string]string, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks so linked script files are picked up
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		name := entry.Name()
		name = strings.TrimSuffix(name, filepath.Ext(name))
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}

		body, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		scripts[name] = body
	}

	return scripts, nil
}
