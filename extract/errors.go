package extract

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField    = errors.New("missing field")
	ErrNotObject       = errors.New("not an object")
	ErrNotArray        = errors.New("not an array")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotReparsable   = errors.New("value cannot be parsed as JSON")
	ErrUnexpectedRoot  = errors.New("root segment after start of path")

	// ErrNoJSONFound is returned by LocateJSON when the text holds no
	// parseable JSON object or array.
	ErrNoJSONFound = errors.New("no JSON found in text")
)

// InvalidPathError reports a malformed path expression. Offset is the byte
// position where parsing stopped.
type InvalidPathError struct {
	Path   string
	Offset int
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// ExtractionError names the path segment that could not be satisfied.
type ExtractionError struct {
	Path         string
	SegmentIndex int
	Segment      Segment
	Reason       string
	Err          error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("path %q: segment %d (%s): %s", e.Path, e.SegmentIndex, e.Segment, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
