package transport

import (
	"encoding/json"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// extractPayload pulls the "payload" field out of an encoded envelope for
// pure-mode transports, which never see a meta/error field (spec.md
// §4.4.6).
func extractPayload(envelopeJSON []byte) ([]byte, error) {
	var w struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(envelopeJSON, &w); err != nil {
		return nil, qerrors.Serialization("extract pure payload", err)
	}
	return w.Payload, nil
}

func unmarshalPure(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return qerrors.Serialization("decode pure response", err)
	}
	return nil
}
