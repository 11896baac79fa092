package codec

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// lengthPrefixSize is the size, in bytes, of the length prefix that
// precedes every length-prefixed (gRPC/binary) message.
const lengthPrefixSize = 4

// MaxLenPrefixedMessage bounds a single length-prefixed message to guard
// against a corrupt or hostile length prefix forcing an unbounded read.
const MaxLenPrefixedMessage = 64 * 1024 * 1024

// EncodeLenPrefixed renders an envelope as a length-prefixed protobuf
// message: meta and payload map one-to-one onto a structpb.Struct (the one
// real compiled protobuf message every transport in the stack already
// understands), preceded by a 4-byte big-endian length (spec.md §4.2,
// §4.4.2).
func EncodeLenPrefixed[T any](env *envelope.Envelope[T]) ([]byte, error) {
	fields := make(map[string]any, 3)

	metaJSON, err := json.Marshal(env.Meta)
	if err != nil {
		return nil, qerrors.Serialization("encode lenpb meta", err)
	}
	var metaMap map[string]any
	if err := json.Unmarshal(metaJSON, &metaMap); err != nil {
		return nil, qerrors.Serialization("decode lenpb meta into struct", err)
	}
	fields["meta"] = metaMap

	payloadJSON, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, qerrors.Serialization("encode lenpb payload", err)
	}
	var payloadAny any
	if err := json.Unmarshal(payloadJSON, &payloadAny); err != nil {
		return nil, qerrors.Serialization("decode lenpb payload into struct", err)
	}
	fields["payload"] = payloadAny

	if env.Error != nil {
		errJSON, err := json.Marshal(env.Error)
		if err != nil {
			return nil, qerrors.Serialization("encode lenpb error", err)
		}
		var errMap map[string]any
		if err := json.Unmarshal(errJSON, &errMap); err != nil {
			return nil, qerrors.Serialization("decode lenpb error into struct", err)
		}
		fields["error"] = errMap
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, qerrors.Serialization("build lenpb struct", err)
	}

	body, err := proto.Marshal(msg)
	if err != nil {
		return nil, qerrors.Serialization("marshal lenpb struct", err)
	}

	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out, nil
}

// DecodeLenPrefixed parses a length-prefixed protobuf message back into an
// envelope.
func DecodeLenPrefixed[T any](data []byte) (*envelope.Envelope[T], error) {
	if len(data) < lengthPrefixSize {
		return nil, qerrors.Serialization("lenpb message shorter than length prefix", io.ErrUnexpectedEOF)
	}
	n := binary.BigEndian.Uint32(data)
	if int(n) > MaxLenPrefixedMessage {
		return nil, qerrors.Serialization("lenpb message exceeds maximum size", nil)
	}
	body := data[lengthPrefixSize:]
	if uint32(len(body)) != n {
		return nil, qerrors.Serialization("lenpb length prefix does not match body size", nil)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, qerrors.Serialization("unmarshal lenpb struct", err)
	}

	fields := msg.AsMap()

	env := &envelope.Envelope[T]{}

	if rawMeta, ok := fields["meta"]; ok {
		metaJSON, err := json.Marshal(rawMeta)
		if err != nil {
			return nil, qerrors.Serialization("re-encode lenpb meta", err)
		}
		var meta envelope.Meta
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, qerrors.Serialization("decode lenpb meta", err)
		}
		env.Meta = &meta
	}

	if rawPayload, ok := fields["payload"]; ok {
		payloadJSON, err := json.Marshal(rawPayload)
		if err != nil {
			return nil, qerrors.Serialization("re-encode lenpb payload", err)
		}
		var payload T
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, qerrors.Serialization("decode lenpb payload", err)
		}
		env.Payload = payload
	}

	if rawErr, ok := fields["error"]; ok {
		errJSON, err := json.Marshal(rawErr)
		if err != nil {
			return nil, qerrors.Serialization("re-encode lenpb error", err)
		}
		var envErr envelope.Error
		if err := json.Unmarshal(errJSON, &envErr); err != nil {
			return nil, qerrors.Serialization("decode lenpb error", err)
		}
		env.Error = &envErr
	}

	return env, nil
}

// ReadLenPrefixed reads exactly one length-prefixed message from r.
func ReadLenPrefixed(r io.Reader) ([]byte, error) {
	prefix := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, qerrors.ConnectionFailed("read lenpb length prefix", err)
	}
	n := binary.BigEndian.Uint32(prefix)
	if int(n) > MaxLenPrefixedMessage {
		return nil, qerrors.Serialization("lenpb message exceeds maximum size", nil)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, qerrors.ConnectionFailed("read lenpb body", err)
	}
	return append(prefix, body...), nil
}
