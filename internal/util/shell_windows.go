//go:build windows

package util

// ShellCommand returns the program and arguments that run command through
// the platform shell.
func ShellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}
