package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-source failure.
type ErrorKind string

const (
	// KindSourceUnavailable covers network errors, timeouts and 5xx responses.
	// Non-fatal: the engine keeps the last-known-good data for that source.
	KindSourceUnavailable ErrorKind = "source_unavailable"

	// KindAuthExpired marks a 401 from any source. Surfaced distinctly since
	// it requires re-authentication rather than a retry.
	KindAuthExpired ErrorKind = "auth_expired"
)

// SourceError is a failure scoped to one upstream source. It is captured at
// the source client boundary and never propagated into the merger or the
// ownership resolver.
type SourceError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceUnavailable wraps err as a non-fatal source outage.
func NewSourceUnavailable(source string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindSourceUnavailable, Err: err}
}

// NewAuthExpired wraps err as an expired-credentials failure.
func NewAuthExpired(source string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindAuthExpired, Err: err}
}

// IsAuthExpired reports whether err is (or wraps) an auth-expired source error.
func IsAuthExpired(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindAuthExpired
}

// ErrAllSourcesUnavailable is the only fatal-to-the-view condition: both trade
// sources failed and there is no previous data to fall back to.
var ErrAllSourcesUnavailable = errors.New("all trade sources unavailable")
