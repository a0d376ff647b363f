package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// PayloadKind distinguishes free text from structured records.
type PayloadKind string

const (
	KindText       PayloadKind = "text"
	KindStructured PayloadKind = "structured"
)

// Payload is the stored data of an entry: either free text or a small
// structured record. Only text feeds keywords, embeddings and content
// bonuses; structured records rank on type weight alone.
type Payload struct {
	kind   PayloadKind
	text   string
	fields map[string]any
}

// Text returns a free-text payload.
func Text(s string) Payload {
	return Payload{kind: KindText, text: s}
}

// Structured returns a record payload holding a deep copy of fields.
func Structured(fields map[string]any) Payload {
	copied := cloneFields(fields)
	if copied == nil {
		copied = map[string]any{}
	}
	return Payload{kind: KindStructured, fields: copied}
}

// Kind returns the payload variant. The zero Payload is empty text.
func (p Payload) Kind() PayloadKind {
	if p.kind == "" {
		return KindText
	}
	return p.kind
}

// IsText reports whether the payload is free text.
func (p Payload) IsText() bool {
	return p.Kind() == KindText
}

// Text returns the text and whether the payload is text.
func (p Payload) Text() (string, bool) {
	return p.text, p.IsText()
}

// Fields returns a copy of the record. It is nil for text payloads.
func (p Payload) Fields() map[string]any {
	if p.IsText() {
		return nil
	}
	return cloneFields(p.fields)
}

// Field returns one top-level field of a structured payload.
func (p Payload) Field(key string) (any, bool) {
	if p.IsText() {
		return nil, false
	}
	v, ok := p.fields[key]
	return v, ok
}

// analysisText is the text keywords and embeddings are computed from.
func (p Payload) analysisText() string {
	if p.IsText() {
		return p.text
	}
	return ""
}

// Size is the character length of text payloads and the JSON length of records.
func (p Payload) Size() int {
	if p.IsText() {
		return len([]rune(p.text))
	}
	data, err := json.Marshal(p.fields)
	if err != nil {
		return 0
	}
	return len(data)
}

// String renders text as is and records as JSON.
func (p Payload) String() string {
	if p.IsText() {
		return p.text
	}
	data, err := json.Marshal(p.fields)
	if err != nil {
		return fmt.Sprintf("%v", p.fields)
	}
	return string(data)
}

// clone returns a payload sharing nothing with p.
func (p Payload) clone() Payload {
	return Payload{kind: p.kind, text: p.text, fields: cloneFields(p.fields)}
}

type payloadJSON struct {
	Kind   PayloadKind    `json:"kind"`
	Text   *string        `json:"text,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// MarshalJSON encodes the payload as {"kind":..,"text"|"fields":..}.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsText() {
		text := p.text
		return json.Marshal(payloadJSON{Kind: KindText, Text: &text})
	}
	fields := p.fields
	if fields == nil {
		fields = map[string]any{}
	}
	return json.Marshal(payloadJSON{Kind: KindStructured, Fields: fields})
}

// UnmarshalJSON decodes the tagged form. A bare JSON string or object is
// accepted as text or structured respectively.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		*p = Text(v)
		return nil
	case map[string]any:
		if _, tagged := v["kind"]; !tagged {
			*p = Payload{kind: KindStructured, fields: v}
			return nil
		}
	default:
		return fmt.Errorf("payload must be a string or object, got %T", raw)
	}

	var tagged payloadJSON
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}

	switch tagged.Kind {
	case KindText:
		text := ""
		if tagged.Text != nil {
			text = *tagged.Text
		}
		*p = Text(text)
	case KindStructured:
		if tagged.Fields == nil {
			tagged.Fields = map[string]any{}
		}
		*p = Payload{kind: KindStructured, fields: tagged.Fields}
	default:
		return fmt.Errorf("unknown payload kind %q", tagged.Kind)
	}
	return nil
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case []any:
		out := slices.Clone(t)
		for i := range out {
			out[i] = cloneValue(out[i])
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
