package envelope

import (
	"time"

	"github.com/google/uuid"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// Builder constructs an Envelope[T]. It is not thread-shared: each
// construction is an independent value (spec.md §4.1).
type Builder[T any] struct {
	meta       *Meta
	payload    T
	hasPayload bool
	err        *Error
}

// NewBuilder starts a fresh envelope construction.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{meta: &Meta{}}
}

// WithPayload sets the envelope's application datum.
func (b *Builder[T]) WithPayload(payload T) *Builder[T] {
	b.payload = payload
	b.hasPayload = true
	return b
}

// WithError sets the envelope's error slot. A built envelope with an error
// slot set never also requires a payload.
func (b *Builder[T]) WithError(err *Error) *Builder[T] {
	b.err = err
	return b
}

// WithMeta replaces the builder's metadata wholesale.
func (b *Builder[T]) WithMeta(meta *Meta) *Builder[T] {
	if meta == nil {
		meta = &Meta{}
	}
	b.meta = meta
	return b
}

// WithTenant sets meta.tenant.
func (b *Builder[T]) WithTenant(tenant string) *Builder[T] {
	b.meta.Tenant = tenant
	return b
}

// WithVersion sets meta.version.
func (b *Builder[T]) WithVersion(version string) *Builder[T] {
	b.meta.Version = version
	return b
}

// WithRequestID sets meta.request_id explicitly, overriding auto-fill.
func (b *Builder[T]) WithRequestID(id string) *Builder[T] {
	b.meta.RequestID = id
	return b
}

// WithExtension adds a single key/value pair to meta.extensions.
func (b *Builder[T]) WithExtension(key string, value any) *Builder[T] {
	b.meta.WithExtension(key, value)
	return b
}

// Build validates and freezes the envelope. It fails with a
// qerrors.Validation error if neither a payload nor an error slot was set,
// or if both were set. meta.request_id and meta.timestamp are auto-filled
// if the caller did not set them (spec.md §4.1).
func (b *Builder[T]) Build() (*Envelope[T], error) {
	if b.hasPayload && b.err != nil {
		return nil, qerrors.Validation("envelope cannot carry both a payload and an error slot", nil)
	}
	if !b.hasPayload && b.err == nil {
		return nil, qerrors.Validation("envelope requires either a payload or an error slot", nil)
	}
	if b.meta == nil {
		b.meta = &Meta{}
	}
	if b.meta.RequestID == "" {
		id, genErr := uuid.NewV7()
		if genErr != nil {
			id = uuid.New()
		}
		b.meta.RequestID = id.String()
	}
	if b.meta.Timestamp.IsZero() {
		b.meta.Timestamp = time.Now().UTC()
	}
	if !b.meta.Security.Valid() {
		return nil, qerrors.Validation("meta.security has an unrecognized auth_method", nil)
	}
	if !b.meta.Tracing.Valid() {
		return nil, qerrors.Validation("meta.tracing is inconsistent: span_id/parent_span_id without trace_id", nil)
	}

	env := &Envelope[T]{
		Meta:       b.meta,
		Payload:    b.payload,
		Error:      b.err,
		hasPayload: b.hasPayload,
	}
	env.normalize()
	return env, nil
}
