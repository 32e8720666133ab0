package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the data directory created under a project root or home.
const DirName = ".egress"

// GlobalEgressPath returns the path to the global .egress directory.
// On Unix: ~/.egress
// On Windows: %USERPROFILE%\.egress
func GlobalEgressPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalEgressPath returns the path to the local .egress directory
// for the given project root.
func LocalEgressPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}
