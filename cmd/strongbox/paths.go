package main

import (
	"os"
	"path/filepath"
)

// strongboxHome returns the path to the strongbox home directory (~/.strongbox).
func strongboxHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".strongbox"), nil
}
