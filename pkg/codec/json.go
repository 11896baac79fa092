// Package codec implements the invertible mappings between
// envelope.Envelope[T] and each transport family's native wire form
// (spec.md §4.2). Because Go methods cannot themselves be generic, every
// codec is a pair of free functions parameterized on the payload type
// rather than an interface with generic methods.
package codec

import (
	"encoding/json"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// ContentTypeJSON is the Content-Type used for the JSON codec (REST,
// WebSocket).
const ContentTypeJSON = "application/json"

// EncodeJSON renders an envelope as the canonical JSON wire form: a single
// object with top-level meta, payload, and optional error (spec.md §6.1).
func EncodeJSON[T any](env *envelope.Envelope[T]) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, qerrors.Serialization("encode json envelope", err)
	}
	return data, nil
}

// DecodeJSON parses the canonical JSON wire form into a fresh envelope.
func DecodeJSON[T any](data []byte) (*envelope.Envelope[T], error) {
	var env envelope.Envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, qerrors.Serialization("decode json envelope", err)
	}
	return &env, nil
}
