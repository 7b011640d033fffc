package util

import (
	"errors"
	"path/filepath"
	"strings"
)

// Path validation errors.
var (
	ErrPathRequired  = errors.New("is required")
	ErrPathTraversal = errors.New("path cannot contain '..'")
)

// ValidatePath checks a path the process will write to. Paths containing
// parent directory references are rejected before and after cleaning.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrPathRequired
	}
	if strings.Contains(path, "..") || strings.Contains(filepath.Clean(path), "..") {
		return ErrPathTraversal
	}
	return nil
}
