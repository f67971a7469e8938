package vad

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures by how the caller must treat them.
type ErrorKind int

const (
	// KindCollaborator marks a failure of the decoder, the phone grouping or
	// the segmentation. The session treats the chunk as non-terminal.
	KindCollaborator ErrorKind = iota
	// KindSink marks a failure to persist a finalized segment. It is fatal.
	KindSink
)

func (k ErrorKind) String() string {
	switch k {
	case KindCollaborator:
		return "collaborator"
	case KindSink:
		return "sink"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Session.Process.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vad %s: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must terminate the session.
func IsFatal(err error) bool {
	var vadErr *Error
	if errors.As(err, &vadErr) {
		return vadErr.Kind == KindSink
	}
	return false
}

func collaboratorError(op string, err error) error {
	return &Error{Kind: KindCollaborator, Op: op, Err: err}
}

func sinkError(op string, err error) error {
	return &Error{Kind: KindSink, Op: op, Err: err}
}
