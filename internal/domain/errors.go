package domain

import (
	"errors"
	"fmt"
)

// TransportErrorKind classifies a failed request execution.
type TransportErrorKind string

const (
	// TransportTransient covers timeouts, connection resets and 5xx
	// responses. Retried with backoff up to the attempt ceiling.
	TransportTransient TransportErrorKind = "transient"
	// TransportAntiBotRejected means the response matched a known
	// challenge/block signature. Never retried locally; the profile is
	// invalidated and the error propagates once.
	TransportAntiBotRejected TransportErrorKind = "anti_bot_rejected"
	// TransportMalformed means the payload had an unexpected shape.
	TransportMalformed TransportErrorKind = "malformed"
)

type TransportError struct {
	Kind       TransportErrorKind
	Source     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport: %s %s/%s", e.Kind, e.Source, e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportKind reports whether err is a TransportError of this kind.
func IsTransportKind(err error, kind TransportErrorKind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == kind
}

// BootstrapError is fatal for the current job of its source.
type BootstrapError struct {
	Source string
	Err    error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap failed for %s: %v", e.Source, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// DropReason explains why the normalizer excluded a record. Drops are
// counted in run diagnostics, never fatal.
type DropReason string

const (
	DropSentinel     DropReason = "sentinel"
	DropNonNumericID DropReason = "non_numeric_id"
	DropInvalid      DropReason = "invalid"
	DropDuplicate    DropReason = "duplicate"
)

type NormalizationError struct {
	Reason DropReason
	Field  string
	Source string
}

func (e *NormalizationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("normalize %s: %s (%s)", e.Source, e.Reason, e.Field)
	}
	return fmt.Sprintf("normalize %s: %s", e.Source, e.Reason)
}

type OrchestrationErrorKind string

const (
	// OrchestrationRetriesExhausted marks a page given up on after the
	// transport's attempt ceiling.
	OrchestrationRetriesExhausted OrchestrationErrorKind = "retries_exhausted"
	// OrchestrationEarlyTermination marks a run cut short by a
	// non-recoverable failure (bootstrap failure, repeated anti-bot
	// rejection after one re-bootstrap).
	OrchestrationEarlyTermination OrchestrationErrorKind = "early_termination"
)

type OrchestrationError struct {
	Kind   OrchestrationErrorKind
	Source string
	Err    error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration: %s on %s: %v", e.Kind, e.Source, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// ErrCircuitOpen is returned without attempting a request while the
// circuit breaker for the endpoint is open.
var ErrCircuitOpen = errors.New("circuit open")
