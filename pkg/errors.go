package background

import (
	"errors"
	"fmt"
)

// ErrAbortRun is wrapped by every error after which the run cannot continue
// without corrupting the background output.
var ErrAbortRun = errors.New("abort run")

// ErrMissingNode represents a required object absent from the node tree.
type ErrMissingNode struct {
	Name string
}

func (e *ErrMissingNode) Error() string {
	return fmt.Sprintf("cannot find node %q", e.Name)
}

func (e *ErrMissingNode) Unwrap() error {
	return ErrAbortRun
}

// ErrNodeExists represents an output node that was already registered.
type ErrNodeExists struct {
	Name string
}

func (e *ErrNodeExists) Error() string {
	return fmt.Sprintf("node %q pre-exists, but should not", e.Name)
}

func (e *ErrNodeExists) Unwrap() error {
	return ErrAbortRun
}

// ErrMissingGeometry represents a layer without usable tower geometry.
type ErrMissingGeometry struct {
	Layer Layer
	Err   error
}

func (e *ErrMissingGeometry) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no geometry for layer %v: %v", e.Layer, e.Err)
	}
	return fmt.Sprintf("no geometry for layer %v", e.Layer)
}

func (e *ErrMissingGeometry) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAbortRun, e.Err}
	}
	return []error{ErrAbortRun}
}

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
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
