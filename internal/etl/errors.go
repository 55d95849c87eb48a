package etl

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an ETL failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindExtract
	KindTransformation
	KindLoad
	KindClean
	KindTargetUnavailable
	KindTimeout
	KindDownloadFailed
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindExtract:
		return "ExtractError"
	case KindTransformation:
		return "TransformationError"
	case KindLoad:
		return "LoadError"
	case KindClean:
		return "CleanError"
	case KindTargetUnavailable:
		return "TargetUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindDownloadFailed:
		return "DownloadFailed"
	case KindParse:
		return "ParseError"
	default:
		return "UnknownError"
	}
}

// Error is the uniform failure record surfaced by subprocesses. It always
// carries the subprocess that failed and the business date being processed.
type Error struct {
	Kind       Kind
	Subprocess SubprocessType
	Date       time.Time
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	base := fmt.Sprintf("%s [%s %s]: %s", e.Kind, e.Subprocess, FormatBusinessDate(e.Date), e.Msg)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a taxonomy error for the given subprocess and date.
func NewError(kind Kind, sub SubprocessType, date time.Time, msg string, cause error) *Error {
	return &Error{Kind: kind, Subprocess: sub, Date: date, Msg: msg, Err: cause}
}

// ErrKind extracts the Kind of err, or KindUnknown if it is not an *Error.
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
