package backup

import (
	"errors"
	"fmt"
	"strings"
)

var ErrExecutableNotFound = errors.New("executable not found in PATH")

// SubprocessError reports a tool that exited non-zero.
type SubprocessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s: failed with exit code %d and STDERR: %s",
		e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}
