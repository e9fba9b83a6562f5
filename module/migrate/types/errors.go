package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// ErrorKind is the closed classification every collaborator error is reduced
// to at the boundary. The worker's retry decision switches exhaustively on it.
type ErrorKind int

const (
	// KindTransient errors are retried with backoff up to the attempt cap:
	// timeouts, connection resets, HTTP 429/5xx.
	KindTransient ErrorKind = iota
	// KindPermanent errors are recorded and never retried: HTTP 4xx other
	// than 429, malformed coordinates, destination policy rejections.
	KindPermanent
	// KindIntegrity marks a hash mismatch between the streamed digest and
	// the source-reported hash. Retried like a transient error.
	KindIntegrity
	// KindResource errors fail fast without consuming retry budget:
	// reservations that cannot fit the memory budget, local ledger I/O.
	KindResource
	// KindCancelled marks work abandoned because the run is stopping.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindPermanent:
		return "Permanent"
	case KindIntegrity:
		return "Integrity"
	case KindResource:
		return "Resource"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseErrorKind is the inverse of String, used when reading ledger records.
func ParseErrorKind(s string) ErrorKind {
	switch s {
	case "Permanent":
		return KindPermanent
	case "Integrity":
		return KindIntegrity
	case "Resource":
		return KindResource
	case "Cancelled":
		return KindCancelled
	default:
		return KindTransient
	}
}

// ClassifiedError pairs an underlying error with its kind.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &ClassifiedError{Kind: KindTransient, Err: err} }

// Permanent wraps err as terminal.
func Permanent(err error) error { return &ClassifiedError{Kind: KindPermanent, Err: err} }

// Integrity wraps err as a hash mismatch.
func Integrity(err error) error { return &ClassifiedError{Kind: KindIntegrity, Err: err} }

// Resource wraps err as a local resource failure.
func Resource(err error) error { return &ClassifiedError{Kind: KindResource, Err: err} }

// Cancelled wraps err as abandoned work.
func Cancelled(err error) error { return &ClassifiedError{Kind: KindCancelled, Err: err} }

// Sentinel errors shared across the pipeline.
var (
	ErrSizeExceedsBudget    = errors.New("artifact size exceeds memory budget reservation")
	ErrDataIntegrity        = errors.New("content hash mismatch")
	ErrMalformedCoordinates = errors.New("malformed artifact coordinates")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrRunAborted           = errors.New("run aborted after consecutive permanent failures")
)

// KindOf reduces any error to its ErrorKind. Unclassified errors default to
// transient so that unknown network conditions stay retryable.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	if errors.Is(err, ErrSizeExceedsBudget) {
		return KindResource
	}
	if errors.Is(err, ErrDataIntegrity) {
		return KindIntegrity
	}
	if errors.Is(err, ErrMalformedCoordinates) {
		return KindPermanent
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTransient
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTransient
	}
	return KindTransient
}

// ClassifyStatus converts an HTTP response status from a registry into a
// classified error, nil for 2xx. 429 stays retryable, the rest of 4xx is
// terminal, 5xx is assumed to be a registry hiccup.
func ClassifyStatus(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return Transient(fmt.Errorf("status %d: %s", status, body))
	case status >= 400 && status < 500:
		return Permanent(fmt.Errorf("status %d: %s", status, body))
	default:
		return Transient(fmt.Errorf("status %d: %s", status, body))
	}
}
