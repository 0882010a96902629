package tutorapi

import (
	"bytes"
	"encoding/json"
)

// Shape is the envelope layout a backend endpoint answered with.
type Shape int

const (
	// ShapeOpaque is any value without a recognised wrapper; it passes through.
	ShapeOpaque Shape = iota
	// ShapeRawArray is a bare JSON array.
	ShapeRawArray
	// ShapeWrappedData is an object carrying the payload under "data".
	ShapeWrappedData
	// ShapePaginatedResults is a paginated object with a "results" array.
	ShapePaginatedResults
)

func (s Shape) String() string {
	switch s {
	case ShapeRawArray:
		return "raw_array"
	case ShapeWrappedData:
		return "wrapped_data"
	case ShapePaginatedResults:
		return "paginated_results"
	default:
		return "opaque"
	}
}

// Payload is a decoded 2xx body tagged with its Shape.
type Payload struct {
	Shape Shape
	raw   json.RawMessage
	inner json.RawMessage

	// Failed is set when a wrapped body reports "success": false.
	Failed  bool
	Message string
}

// Data returns the canonical data value for the payload's shape.
func (p Payload) Data() json.RawMessage {
	switch p.Shape {
	case ShapeWrappedData, ShapePaginatedResults:
		return p.inner
	default:
		return p.raw
	}
}

// DecodePayload classifies a response body. An empty body is an opaque
// payload with no data; malformed JSON is an error.
func DecodePayload(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{Shape: ShapeOpaque}, nil
	}
	if !json.Valid(trimmed) {
		var v any
		return Payload{}, json.Unmarshal(trimmed, &v)
	}

	raw := json.RawMessage(trimmed)
	switch trimmed[0] {
	case '[':
		return Payload{Shape: ShapeRawArray, raw: raw}, nil
	case '{':
		return decodeObject(raw)
	default:
		return Payload{Shape: ShapeOpaque, raw: raw}, nil
	}
}

func decodeObject(raw json.RawMessage) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Payload{}, err
	}

	p := Payload{Shape: ShapeOpaque, raw: raw}

	if msg, ok := fields["message"]; ok {
		_ = json.Unmarshal(msg, &p.Message)
	}
	if s, ok := fields["success"]; ok {
		var success bool
		if json.Unmarshal(s, &success) == nil && !success {
			p.Failed = true
		}
	}

	if data, ok := fields["data"]; ok {
		p.Shape = ShapeWrappedData
		p.inner = data
		return p, nil
	}
	if results, ok := fields["results"]; ok && isArray(results) {
		p.Shape = ShapePaginatedResults
		p.inner = results
	}
	return p, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
