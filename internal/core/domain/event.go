package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidEvent is returned when a webhook body is not a JSON object.
var ErrInvalidEvent = errors.New("invalid event payload")

// Event is a decoded inbound webhook payload. Its shape is not trusted:
// every accessor tolerates missing keys and mismatched types.
type Event map[string]any

// CustomField is one custom field record of a task payload.
type CustomField struct {
	Name string
	// TextValue is only meaningful when HasText is true.
	TextValue string
	HasText   bool
}

// ParseEvent decodes a webhook body. The body must be a single JSON object.
func ParseEvent(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidEvent)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidEvent, v)
	}
	return Event(obj), nil
}

// CustomFields returns the custom field records in payload order.
// Entries that are not objects or carry no string name are skipped.
// The second result is false when custom_fields is absent or not a list.
func (e Event) CustomFields() ([]CustomField, bool) {
	raw, ok := e["custom_fields"].([]any)
	if !ok {
		return nil, false
	}

	fields := make([]CustomField, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj["name"].(string)
		if !ok {
			continue
		}
		f := CustomField{Name: name}
		f.TextValue, f.HasText = obj["text_value"].(string)
		fields = append(fields, f)
	}
	return fields, true
}
