package runner

import (
	"errors"
	"fmt"
)

// ErrCanceled is the terminal result of a canceled invocation.
var ErrCanceled = errors.New("command canceled")

// SpawnError means the executable could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: start: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the tool ran and exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// Failure is what the UI layer gets told about a failed command.
type Failure struct {
	Command string
	Stderr  string
	Err     error
}

// Reporter receives failures of commands that were not marked Quiet.
type Reporter interface {
	ReportFailure(Failure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Failure)

func (f ReporterFunc) ReportFailure(fl Failure) { f(fl) }

func failureOf(command string, err error) Failure {
	fl := Failure{Command: command, Err: err}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fl.Stderr = exitErr.Stderr
	}
	return fl
}
