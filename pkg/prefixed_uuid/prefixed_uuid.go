// Package prefixed_uuid provides UUIDs rendered with a short type prefix,
// e.g. "ctx-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
package prefixed_uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a random UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

// Derive creates a name-based (SHA-1, version 5) PrefixedUUID. The same
// namespace and name always produce the same id.
func Derive(prefix string, namespace uuid.UUID, name []byte) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.NewSHA1(namespace, name)}
}

// FromUUID creates a PrefixedUUID from an existing UUID and prefix.
func FromUUID(prefix string, id uuid.UUID) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: id}
}

// FromString parses a prefixed UUID string in the format "prefix-uuid".
// The prefix itself must not contain a hyphen.
func FromString(s string) (PrefixedUUID, error) {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok || prefix == "" {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}

	return PrefixedUUID{Prefix: prefix, UUID: id}, nil
}

// String returns the prefixed UUID in the format "prefix-uuid".
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero returns true if the PrefixedUUID is uninitialized (zero value).
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// HasPrefix reports whether the id carries the given prefix.
func (p PrefixedUUID) HasPrefix(prefix string) bool {
	return p.Prefix == prefix
}

// MarshalText implements encoding.TextMarshaler, which also makes the type
// usable as a JSON string and as a JSON object key.
func (p PrefixedUUID) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PrefixedUUID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = PrefixedUUID{}
		return nil
	}
	parsed, err := FromString(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
