package events

import (
	"encoding/json"
	"fmt"
	"io"
)

// CloudEvent is the wrapper the sidecar puts around a published envelope
// when it delivers to a subscribed route. Only the fields this codebase
// reads are modeled; the envelope itself rides in Data.
type CloudEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	SpecVersion string          `json:"specversion"`
	Data        json.RawMessage `json:"data"`
}

// DecodeCloudEvent reads a CloudEvents-wrapped envelope from an inbound
// delivery body and returns the inner envelope. Malformed wrappers and
// malformed inner envelopes are both permanent validation failures.
func DecodeCloudEvent(r io.Reader) (*Envelope, error) {
	var ce CloudEvent
	if err := json.NewDecoder(r).Decode(&ce); err != nil {
		return nil, fmt.Errorf("%w: bad cloudevent wrapper: %v", ErrInvalidEnvelope, err)
	}
	if len(ce.Data) == 0 {
		return nil, fmt.Errorf("%w: cloudevent has no data", ErrInvalidEnvelope)
	}

	var env Envelope
	if err := json.Unmarshal(ce.Data, &env); err != nil {
		return nil, fmt.Errorf("%w: bad inner envelope: %v", ErrInvalidEnvelope, err)
	}
	return &env, nil
}
