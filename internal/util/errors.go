package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxStderrLine caps the length of a reported stderr line.
const maxStderrLine = 200

// WrapError wraps err as "failed to <operation>: err". A nil err stays nil.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// StderrTail returns the last non-blank line a program wrote to stderr,
// prefixed with the program's base name unless the line already starts with
// it. It returns "" when stderr holds nothing but whitespace.
func StderrTail(program, stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	line := stderr
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		line = strings.TrimSpace(stderr[i+1:])
	}
	if len(line) > maxStderrLine {
		line = line[:maxStderrLine] + "..."
	}

	name := filepath.Base(program)
	if name == "." || strings.HasPrefix(line, name+":") {
		return line
	}
	return name + ": " + line
}
