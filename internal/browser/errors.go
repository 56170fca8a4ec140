package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransientError marks an automation failure that is likely to succeed on
// retry: a click target not yet rendered, a navigation timeout, a race in
// page state. The orchestrator retries these with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient %s failure: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks an automation failure that no retry will fix, such as
// an unreachable origin. It aborts only the session that hit it.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal %s failure: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(op string, err error) error { return &TransientError{Op: op, Err: err} }

// Fatal wraps err as session-fatal.
func Fatal(op string, err error) error { return &FatalError{Op: op, Err: err} }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// fatalFragments are network-level failures that retrying cannot fix.
var fatalFragments = []string{
	"net::ERR_NAME_NOT_RESOLVED",
	"net::ERR_CONNECTION_REFUSED",
	"net::ERR_ADDRESS_UNREACHABLE",
	"net::ERR_CERT_",
}

// transientFragments are timing or page-state races worth retrying.
var transientFragments = []string{
	"could not find node",
	"waiting for selector",
	"node with given id does not belong to the document",
	"timeout waiting",
	"net::ERR_ABORTED",
}

// classify maps a raw automation error into the taxonomy. Deadline expiry
// is always transient (the per-action timeout fired); recognised
// reachability errors are fatal; anything unrecognised is treated as
// fatal so retries cannot mask real breakage.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, f := range fatalFragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return Fatal(op, err)
		}
	}
	for _, f := range transientFragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return Transient(op, err)
		}
	}
	return Fatal(op, err)
}
