// Package exec provides an interface for running the external tools used by
// transforms (sass, optipng, jpegtran, cwebp) and the browser opener.
package exec

import (
	"context"
)

// Command describes one invocation of an external tool.
type Command struct {
	// Name is the executable, resolved through PATH.
	Name string
	// Args are passed verbatim.
	Args []string
	// Dir is the working directory; empty uses the current directory.
	Dir string
	// Stdin is fed to the process when non-nil.
	Stdin []byte
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes cmd and returns its stdout. A non-zero exit is reported
	// as *ExitError carrying stderr.
	Run(ctx context.Context, cmd Command) (stdout []byte, err error)

	// Start launches cmd without waiting for it to exit.
	Start(ctx context.Context, cmd Command) error

	// LookPath reports whether the named tool is installed.
	LookPath(name string) (string, error)
}
