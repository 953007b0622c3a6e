package download

import (
	"errors"
	"fmt"
)

// ErrExhausted indicates every strategy in the ladder was tried and failed
// for transient reasons.
var ErrExhausted = errors.New("all download strategies failed")

// ErrCancelled indicates the job was cancelled while running.
var ErrCancelled = errors.New("download cancelled")

// FatalError indicates the content itself cannot be downloaded. No amount
// of retrying or strategy escalation will succeed.
type FatalError struct {
	// Reason is a stable machine-readable code, e.g. "private_video".
	Reason string
	// Detail is the downloader output line that triggered the classification.
	Detail string
}

func (e *FatalError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("fatal download error (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("fatal download error (%s)", e.Reason)
}

// IsFatal reports whether err wraps a FatalError and returns it.
func IsFatal(err error) (*FatalError, bool) {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal, true
	}
	return nil, false
}
