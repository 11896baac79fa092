package codec

import "github.com/jocax/qollective-sub002/pkg/envelope"

// EncodeInProcess is the identity codec: the in-process transport passes
// envelopes by reference, so "encoding" is a defensive clone rather than
// serialization (spec.md §4.2, §4.4.5).
func EncodeInProcess[T any](env *envelope.Envelope[T]) *envelope.Envelope[T] {
	return env.Clone()
}

// DecodeInProcess mirrors EncodeInProcess for symmetry at call sites that
// treat every transport uniformly.
func DecodeInProcess[T any](env *envelope.Envelope[T]) *envelope.Envelope[T] {
	return env.Clone()
}
