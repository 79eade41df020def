// Package storage implements filesystem adapters
package storage

import (
	"fmt"
	"os"

	"folder-mock/internal/core/ports"
)

// Ensure LocalDisk implements FileSystem
var _ ports.FileSystem = LocalDisk{}

// LocalDisk reads mock files straight from the host filesystem
type LocalDisk struct{}

// IsDir reports whether path exists and is a directory
func (LocalDisk) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadFile returns the contents of a regular file.
// Directories are rejected so a missing index never serves a listing.
func (LocalDisk) ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("read %s: not a regular file", path)
	}
	return os.ReadFile(path)
}
