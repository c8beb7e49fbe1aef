package sync

import "fmt"

// DirectoryError reports a parent directory that could not be created, or a
// path that exists but is not a directory
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to copy an asset or publish it under its final name
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
