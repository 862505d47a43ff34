package tpx3

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotRewindable is returned by Reader.Rewind when the source cannot seek.
var ErrNotRewindable = errors.New("capture stream cannot be rewound")

// FormatError represents a malformed or truncated capture record.
type FormatError struct {
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed capture at byte offset %d: %s", e.Offset, e.Reason)
}

// IOError represents a missing or unreadable input or output file.
type IOError struct {
	Filename string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("error accessing file %q: %v", e.Filename, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// closeOutput closes a written file and joins a failed close into *err.
func closeOutput(c io.Closer, path string, err *error) {
	if cerr := c.Close(); cerr != nil {
		*err = errors.Join(*err, &IOError{Filename: path, Err: cerr})
	}
}

// ConfigError represents an invalid configuration parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Field, e.Reason)
}

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error {
	return e.Err
}

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error {
	return e.Err
}
