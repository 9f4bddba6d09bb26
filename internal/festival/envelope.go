package festival

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EnvelopeKind tags the two response shapes the backend is known to send.
type EnvelopeKind string

const (
	// KindArray is a bare JSON array body.
	KindArray EnvelopeKind = "array"
	// KindWrapped is an object body whose payload sits under "data"
	// (optionally nested as data.data, or behind a success wrapper).
	KindWrapped EnvelopeKind = "wrapped"
)

// Envelope is the single place response shape is decided. Callers receive
// the unwrapped payload and never sniff shapes themselves.
type Envelope struct {
	Kind    EnvelopeKind
	Payload json.RawMessage
}

type successWrapper struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope classifies a response body once, at the client boundary.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		return &Envelope{Kind: KindArray, Payload: trimmed}, nil
	}

	var wrapper successWrapper
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if wrapper.Success != nil && !*wrapper.Success {
		return nil, fmt.Errorf("backend reported failure")
	}
	if len(wrapper.Data) > 0 {
		// Some endpoints double-wrap: {data: {data: [...]}}.
		inner := bytes.TrimSpace(wrapper.Data)
		if len(inner) > 0 && inner[0] == '{' {
			var nested successWrapper
			if err := json.Unmarshal(inner, &nested); err == nil && len(nested.Data) > 0 {
				return &Envelope{Kind: KindWrapped, Payload: bytes.TrimSpace(nested.Data)}, nil
			}
		}
		return &Envelope{Kind: KindWrapped, Payload: inner}, nil
	}

	// Plain object without a data key: the object itself is the payload.
	return &Envelope{Kind: KindWrapped, Payload: trimmed}, nil
}

// DecodeActivityList decodes an activity array tolerantly: entries that are
// not JSON objects come back as nil so the validator can count them as
// invalid instead of the whole response failing.
func DecodeActivityList(body []byte) ([]*Activity, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("decode activity list: %w", err)
	}

	out := make([]*Activity, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			out = append(out, nil)
			continue
		}
		var a Activity
		if err := json.Unmarshal(item, &a); err != nil {
			out = append(out, nil)
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}

// DecodeTrackList decodes a track array from either envelope shape.
func DecodeTrackList(body []byte) ([]*Track, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	var tracks []*Track
	if err := json.Unmarshal(env.Payload, &tracks); err != nil {
		return nil, fmt.Errorf("decode track list: %w", err)
	}
	return tracks, nil
}
