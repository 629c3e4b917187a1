package acme

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// testAccountKey returns a fresh ECDSA P-256 key, the curve every seed
// scenario in this package's tests signs with.
func testAccountKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

// decodeJWSPayload reads a flattened-serialization JWS request body
// (what every signed ACME request actually carries on the wire) and
// returns its decoded payload, letting tests assert on the application
// JSON a handler was asked to sign rather than the envelope around it.
func decodeJWSPayload(t *testing.T, body io.Reader, out any) {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var envelope struct {
		Payload string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))

	if envelope.Payload == "" {
		return
	}
	decoded, err := base64.RawURLEncoding.DecodeString(envelope.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(decoded, out))
}

// rawJWSPayload is like decodeJWSPayload but returns the decoded payload
// bytes verbatim, for tests asserting on exact byte content (e.g. the
// empty-object challenge trigger body).
func rawJWSPayload(t *testing.T, body io.Reader) []byte {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var envelope struct {
		Payload string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	if envelope.Payload == "" {
		return []byte{}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(envelope.Payload)
	require.NoError(t, err)
	return decoded
}
