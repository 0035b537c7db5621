package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir ensures the .minerva data directory exists at the given base
// path. If basePath is empty or ".", it creates ./.minerva in the current
// directory. Otherwise, it creates {basePath}/.minerva.
//
// Facilities that persist local state store it under .minerva:
// - Conversation history database: ./.minerva/history.db
// - Embedded vector store: ./.minerva/vectors/
//
// Returns the full path to the .minerva directory and any error.
func EnsureDataDir(basePath string) (string, error) {
	var dataDir string
	if basePath == "" || basePath == "." {
		dataDir = ".minerva"
	} else {
		dataDir = filepath.Join(basePath, ".minerva")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory at '%s': %w", dataDir, err)
	}

	return dataDir, nil
}
