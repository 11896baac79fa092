// Package envelope implements the Qollective envelope data model
// (spec.md §3): a typed container of metadata, payload, and an optional
// error slot that every logical message travels in, regardless of
// transport.
package envelope

import (
	"encoding/json"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// Error is the envelope error slot (spec.md §3.1).
type Error struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	Details         any    `json:"details,omitempty"`
	Trace           string `json:"trace,omitempty"`
	HTTPStatusCode  int    `json:"http_status_code,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
}

// Envelope is the unified message container. T is the application payload
// type. An envelope is either success (Error == nil) or error (Error !=
// nil); a handler must set exactly one (spec.md §3.1 invariant).
type Envelope[T any] struct {
	Meta    *Meta  `json:"meta"`
	Payload T      `json:"payload"`
	Error   *Error `json:"error,omitempty"`

	// hasPayload distinguishes "payload explicitly set to the zero value"
	// from "payload never set" during construction; it is not part of the
	// wire form.
	hasPayload bool
}

// IsSuccess reports whether the envelope carries no error.
func (e *Envelope[T]) IsSuccess() bool { return e.Error == nil }

// IsError reports whether the envelope carries an error.
func (e *Envelope[T]) IsError() bool { return e.Error != nil }

// RequestID returns the envelope's request id, or "" if meta is absent.
func (e *Envelope[T]) RequestID() string {
	if e.Meta == nil {
		return ""
	}
	return e.Meta.RequestID
}

// AsOutcome converts the envelope's error slot (if present) into the
// qerrors taxonomy's RemoteError, and otherwise returns the payload.
// This is the boundary where the wire-level error slot becomes a typed Go
// error (spec.md §4.3 step 5, §7).
func (e *Envelope[T]) AsOutcome() (T, error) {
	var zero T
	if e.Error != nil {
		return zero, qerrors.Remote(e.Error.Code, e.Error.Message, e.Error.Details, e.Error.Retryable)
	}
	return e.Payload, nil
}

// Clone returns a deep-enough copy suitable for handing to a transport
// without letting the transport mutate the caller's envelope.
func (e *Envelope[T]) Clone() *Envelope[T] {
	out := &Envelope[T]{
		Meta:       e.Meta.Clone(),
		Payload:    e.Payload,
		hasPayload: e.hasPayload,
	}
	if e.Error != nil {
		errCopy := *e.Error
		out.Error = &errCopy
	}
	return out
}

// normalize prepares an envelope for the wire: empty extension maps become
// absent (spec.md §8 boundary behavior).
func (e *Envelope[T]) normalize() {
	e.Meta.normalizeEmpty()
}

// MarshalJSON implements the canonical JSON wire form (spec.md §6.1).
func (e *Envelope[T]) MarshalJSON() ([]byte, error) {
	e.normalize()
	type wire struct {
		Meta    *Meta  `json:"meta"`
		Payload T      `json:"payload"`
		Error   *Error `json:"error,omitempty"`
	}
	return json.Marshal(wire{Meta: e.Meta, Payload: e.Payload, Error: e.Error})
}

// UnmarshalJSON decodes the canonical JSON wire form. Decoders always
// produce a fresh envelope; there is no in-place mutation across the wire
// (spec.md §3.1 Lifecycle).
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	type wire struct {
		Meta    *Meta  `json:"meta"`
		Payload T      `json:"payload"`
		Error   *Error `json:"error,omitempty"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return qerrors.Serialization("decode envelope", err)
	}
	e.Meta = w.Meta
	e.Payload = w.Payload
	e.Error = w.Error
	e.hasPayload = true
	if e.Meta != nil {
		e.Meta.normalizeEmpty()
	}
	return nil
}
