package main

import (
	"errors"
	"fmt"
)

var (
	ErrParse       = errors.New("parse error")
	ErrUnknownType = errors.New("unknown column type")
	ErrLoader      = errors.New("load failed")
	ErrNetwork     = errors.New("download failed")

	ErrAlreadyImported = errors.New("table already imported")
)

// ParseError reports a schema line that is neither a column nor a constraint.
type ParseError struct {
	File string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: cannot parse declaration %q", e.File, e.Line, e.Text)
	}
	return fmt.Sprintf("line %d: cannot parse declaration %q", e.Line, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// UnknownTypeError reports a column type that no mapping rule accepts.
type UnknownTypeError struct {
	File string
	Line int
	Text string
	Type string
}

func (e *UnknownTypeError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	return fmt.Sprintf("%s: unknown type %q in %q", loc, e.Type, e.Text)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// LoaderError reports a failed table import. Stderr holds whatever the
// sqlite3 shell printed, if the CLI loader was used.
type LoaderError struct {
	Table  string
	Stderr string
	Err    error
}

func (e *LoaderError) Error() string {
	msg := fmt.Sprintf("import %s", e.Table)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *LoaderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLoader, e.Err}
	}
	return []error{ErrLoader}
}

// NetworkError reports a failed HTTP request. Status is zero when the
// request never produced a response.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNetwork, e.Err}
	}
	return []error{ErrNetwork}
}
