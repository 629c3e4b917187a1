package acmejson

import (
	"bytes"
	"encoding/json"
)

// Builder accumulates object members in insertion order and serializes
// them as canonical JSON: stable key order, no trailing whitespace. Two
// Builder outputs are considered equal ACME request bodies iff their
// canonical JSON strings are byte-equal.
type Builder struct {
	keys   []string
	values map[string]any
}

// NewBuilder returns an empty object builder.
func NewBuilder() *Builder {
	return &Builder{values: map[string]any{}}
}

// Put sets a member, preserving first-insertion order for repeated keys.
func (b *Builder) Put(key string, value any) *Builder {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
	return b
}

// PutIfNotEmpty sets a string member only when it is non-empty, the
// pattern used throughout ACME requests for optional string fields like
// profile selection.
func (b *Builder) PutIfNotEmpty(key, value string) *Builder {
	if value == "" {
		return b
	}
	return b.Put(key, value)
}

// PutRaw embeds an already-serialized JSON fragment (e.g. a nested
// Builder's Bytes()) under key, without re-encoding it.
func (b *Builder) PutRaw(key string, raw json.RawMessage) *Builder {
	return b.Put(key, raw)
}

// Len reports the number of members currently set.
func (b *Builder) Len() int { return len(b.keys) }

// orderedObject marshals to JSON preserving Builder's insertion order;
// encoding/json has no ordered-map primitive, so canonical emission is
// done by hand here instead of via a struct or map[string]any.
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Bytes serializes the builder to canonical JSON.
func (b *Builder) Bytes() ([]byte, error) {
	return json.Marshal(orderedObject{keys: b.keys, values: b.values})
}

// Equal reports whether two builders produce byte-identical canonical
// JSON. Marshal errors are treated as inequality.
func (b *Builder) Equal(other *Builder) bool {
	a, err1 := b.Bytes()
	c, err2 := other.Bytes()
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, c)
}
