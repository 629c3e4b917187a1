// Package acmejson implements the immutable JSON value tree and canonical
// builder used to represent ACME resource bodies. Values are parsed once
// from a server response and never mutated in place; typed accessors
// either produce a usable Go value or an *acmeerr.ProtocolError naming the
// JSON path that failed coercion.
package acmejson

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
)

// Value is an immutable node in a parsed JSON document. The zero Value
// represents JSON null / a missing key.
type Value struct {
	path string
	raw  any
	set  bool
}

// Parse decodes a UTF-8 JSON document into a root Value.
func Parse(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{path: "$", set: false}, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, acmeerr.NewProtocolError("$", "invalid JSON: "+err.Error())
	}
	return Value{path: "$", raw: raw, set: true}, nil
}

// FromAny wraps an already-decoded value (used when re-hydrating a
// resource from a previously captured map[string]any).
func FromAny(v any) Value {
	return Value{path: "$", raw: v, set: v != nil}
}

// IsPresent reports whether the value is set and not JSON null.
func (v Value) IsPresent() bool {
	return v.set && v.raw != nil
}

// Get returns the child value at the given object key. Missing keys or
// non-object receivers yield an unset Value rather than an error; the
// error only surfaces when a typed accessor is used on the result.
func (v Value) Get(key string) Value {
	obj, ok := v.raw.(map[string]any)
	if !ok {
		return Value{path: v.path + "." + key}
	}
	child, present := obj[key]
	return Value{path: v.path + "." + key, raw: child, set: present}
}

// Map applies f to the value if present, returning the zero T and false
// when the key was missing. A present-but-invalid value still propagates
// the coercion error from f.
func Map[T any](v Value, f func(Value) (T, error)) (T, bool, error) {
	var zero T
	if !v.IsPresent() {
		return zero, false, nil
	}
	out, err := f(v)
	if err != nil {
		return zero, true, err
	}
	return out, true, nil
}

func (v Value) err(reason string) error {
	return acmeerr.NewProtocolError(v.path, reason)
}

// AsString coerces the value to a string.
func (v Value) AsString() (string, error) {
	if !v.IsPresent() {
		return "", v.err("missing value")
	}
	s, ok := v.raw.(string)
	if !ok {
		return "", v.err(fmt.Sprintf("expected string, got %T", v.raw))
	}
	return s, nil
}

// AsInt coerces the value to an integer, rejecting non-integral numbers.
func (v Value) AsInt() (int64, error) {
	if !v.IsPresent() {
		return 0, v.err("missing value")
	}
	n, ok := v.raw.(float64)
	if !ok {
		return 0, v.err(fmt.Sprintf("expected number, got %T", v.raw))
	}
	if n != float64(int64(n)) {
		return 0, v.err("expected integer, got fractional number")
	}
	return int64(n), nil
}

// AsBool coerces the value to a boolean.
func (v Value) AsBool() (bool, error) {
	if !v.IsPresent() {
		return false, v.err("missing value")
	}
	b, ok := v.raw.(bool)
	if !ok {
		return false, v.err(fmt.Sprintf("expected bool, got %T", v.raw))
	}
	return b, nil
}

// AsURL coerces the value to a parsed absolute URL.
func (v Value) AsURL() (*url.URL, error) {
	s, err := v.AsString()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, v.err("invalid URL: " + err.Error())
	}
	if !u.IsAbs() {
		return nil, v.err("URL is not absolute: " + s)
	}
	return u, nil
}

// AsURI is an alias for AsURL retained for readability at call sites that
// deal with RFC 8555's "URI" naming (type URIs, instance URIs).
func (v Value) AsURI() (*url.URL, error) {
	return v.AsURL()
}

// AsInstant coerces the value to a time.Time parsed as RFC 3339.
func (v Value) AsInstant() (time.Time, error) {
	s, err := v.AsString()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, v.err("invalid RFC3339 instant: " + err.Error())
	}
	return t, nil
}

// Status is the RFC 8555 resource status enumeration. Unrecognized wire
// values decode to StatusUnknown rather than producing an error, per the
// glossary: "unknown as the unrecognized fallback".
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusRevoked     Status = "revoked"
	StatusDeactivated Status = "deactivated"
	StatusExpired     Status = "expired"
	StatusCanceled    Status = "canceled"
)

var knownStatuses = map[string]Status{
	string(StatusPending):     StatusPending,
	string(StatusReady):       StatusReady,
	string(StatusProcessing):  StatusProcessing,
	string(StatusValid):       StatusValid,
	string(StatusInvalid):     StatusInvalid,
	string(StatusRevoked):     StatusRevoked,
	string(StatusDeactivated): StatusDeactivated,
	string(StatusExpired):     StatusExpired,
	string(StatusCanceled):    StatusCanceled,
}

// AsStatus coerces the value to a Status, case-sensitively, falling back
// to StatusUnknown for unrecognized strings rather than erroring.
func (v Value) AsStatus() (Status, error) {
	s, err := v.AsString()
	if err != nil {
		return StatusUnknown, err
	}
	if st, ok := knownStatuses[s]; ok {
		return st, nil
	}
	return StatusUnknown, nil
}

// Identifier is an ACME {type, value} identifier pair.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AsIdentifier coerces the value to an Identifier object.
func (v Value) AsIdentifier() (Identifier, error) {
	if !v.IsPresent() {
		return Identifier{}, v.err("missing value")
	}
	typ, err := v.Get("type").AsString()
	if err != nil {
		return Identifier{}, err
	}
	val, err := v.Get("value").AsString()
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Type: typ, Value: val}, nil
}

// AsArray coerces the value to a slice of child Values.
func (v Value) AsArray() ([]Value, error) {
	if !v.IsPresent() {
		return nil, v.err("missing value")
	}
	arr, ok := v.raw.([]any)
	if !ok {
		return nil, v.err(fmt.Sprintf("expected array, got %T", v.raw))
	}
	out := make([]Value, len(arr))
	for i, e := range arr {
		out[i] = Value{path: fmt.Sprintf("%s[%d]", v.path, i), raw: e, set: e != nil}
	}
	return out, nil
}

// AsObject coerces the value to a string-keyed map of child Values.
func (v Value) AsObject() (map[string]Value, error) {
	if !v.IsPresent() {
		return nil, v.err("missing value")
	}
	obj, ok := v.raw.(map[string]any)
	if !ok {
		return nil, v.err(fmt.Sprintf("expected object, got %T", v.raw))
	}
	out := make(map[string]Value, len(obj))
	for k, e := range obj {
		out[k] = Value{path: v.path + "." + k, raw: e, set: e != nil}
	}
	return out, nil
}

// AsProblem coerces the value to an *acmeerr.Problem, resolving a relative
// "type" URI against baseURL per RFC 7807's recommendation that clients
// treat a missing type as "about:blank".
func (v Value) AsProblem(baseURL *url.URL) (*acmeerr.Problem, error) {
	if !v.IsPresent() {
		return nil, v.err("missing value")
	}
	p := &acmeerr.Problem{}
	if typ, err := v.Get("type").AsString(); err == nil {
		p.Type = typ
		if baseURL != nil {
			if u, err := url.Parse(typ); err == nil && !u.IsAbs() {
				p.Type = baseURL.ResolveReference(u).String()
			}
		}
	} else {
		p.Type = "about:blank"
	}
	if detail, err := v.Get("detail").AsString(); err == nil {
		p.Detail = detail
	}
	if title, err := v.Get("title").AsString(); err == nil {
		p.Title = title
	}
	if status, err := v.Get("status").AsInt(); err == nil {
		p.Status = int(status)
	}
	if instance, err := v.Get("instance").AsString(); err == nil {
		p.Instance = instance
	}
	if identVal := v.Get("identifier"); identVal.IsPresent() {
		if ident, err := identVal.AsIdentifier(); err == nil {
			p.Identifier = &acmeerr.ProblemIdent{Type: ident.Type, Value: ident.Value}
		}
	}
	if subsVal := v.Get("subproblems"); subsVal.IsPresent() {
		subs, err := subsVal.AsArray()
		if err == nil {
			for _, s := range subs {
				if sub, err := s.AsProblem(baseURL); err == nil {
					p.Subproblems = append(p.Subproblems, *sub)
				}
			}
		}
	}
	return p, nil
}

// AsBase64URL decodes an unpadded base64url string value.
func (v Value) AsBase64URL() ([]byte, error) {
	s, err := v.AsString()
	if err != nil {
		return nil, err
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, v.err("invalid base64url: " + err.Error())
	}
	return b, nil
}

// Raw returns the underlying decoded value (string, float64, bool,
// []any, map[string]any, or nil) for callers that need to re-marshal or
// inspect structure beyond the typed accessors above.
func (v Value) Raw() any { return v.raw }

// MarshalJSON round-trips the Value back to its canonical JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// String implements fmt.Stringer for debug printing.
func (v Value) String() string {
	b, err := json.Marshal(v.raw)
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}
