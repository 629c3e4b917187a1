package acme

import (
	"context"
	"crypto/x509"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmecore/acme/jose"
)

func newTestChallenge(t *testing.T, login *Login, typ, url, token string) *Challenge {
	t.Helper()
	c := &Challenge{typ: typ, base: pollable{newResource(login, url)}}
	c.base.setJSON(mustParseJSON(t, `{"type":"`+typ+`","url":"`+url+`","token":"`+token+`"}`), nil, nil)
	return c
}

func TestChallengeVariants_NarrowingRejectsWrongType(t *testing.T) {
	login := (&Session{}).Login("https://example.com/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeHTTP01, "https://example.com/chal/1", "tok")

	_, ok := c.AsDNS01()
	assert.False(t, ok)

	http01, ok := c.AsHTTP01()
	require.True(t, ok)
	assert.Equal(t, c, http01.Challenge)
}

func TestDns01Challenge_RRNameAndRRValue(t *testing.T) {
	login := (&Session{}).Login("https://example.com/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeDNS01, "https://example.com/chal/1", "token-abc")
	dns01, ok := c.AsDNS01()
	require.True(t, ok)

	name, err := dns01.RRName("example.com")
	require.NoError(t, err)
	assert.Equal(t, "_acme-challenge.example.com.", name)

	value, err := dns01.RRValue(context.Background())
	require.NoError(t, err)

	ka, err := login.keyAuthorization("token-abc")
	require.NoError(t, err)
	assert.Equal(t, jose.DNS01Digest(ka), value)
}

func TestDnsAccount01Challenge_RRNameSaltedByAccountURL(t *testing.T) {
	login := (&Session{}).Login("https://example.com/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeDNSAccount01, "https://example.com/chal/1", "token-abc")
	variant, ok := c.AsDNSAccount01()
	require.True(t, ok)

	name, err := variant.RRName("example.com")
	require.NoError(t, err)

	want, err := jose.DNSAccount01RRName("example.com", login.AccountURL())
	require.NoError(t, err)
	assert.Equal(t, want, name)
}

func TestTlsAlpn01Challenge_CertificateCarriesACMEExtension(t *testing.T) {
	login := (&Session{}).Login("https://example.com/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeTLSALPN01, "https://example.com/chal/1", "token-abc")
	variant, ok := c.AsTLSALPN01()
	require.True(t, ok)

	key := testAccountKey(t)
	cert, err := variant.Certificate(context.Background(), "example.com", key)
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	var hasACMEExtension bool
	for _, ext := range parsed.Extensions {
		if ext.Id.String() == "1.3.6.1.5.5.7.1.31" && ext.Critical {
			hasACMEExtension = true
		}
	}
	assert.True(t, hasACMEExtension)
}

// TestEmailReply00Challenge_TriggerSendsKeyAuthorizationPayload reproduces
// the one standard challenge type whose trigger payload differs from the
// empty object every other type sends.
func TestEmailReply00Challenge_TriggerSendsKeyAuthorizationPayload(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/chal/1", func(w http.ResponseWriter, r *http.Request) {
		decodeJWSPayload(t, r.Body, &captured)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"email-reply-00","status":"processing"}`))
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeEmailReply00, server.URL+"/chal/1", "token-xyz")
	variant, ok := c.AsEmailReply00()
	require.True(t, ok)

	require.NoError(t, variant.Trigger(context.Background()))

	ka, err := login.keyAuthorization("token-xyz")
	require.NoError(t, err)
	assert.Equal(t, ka, captured["keyAuthorization"])
	_, hasStatusField := captured["status"]
	assert.False(t, hasStatusField)
}

func TestChallenge_TriggerSendsEmptyObjectForStandardTypes(t *testing.T) {
	var rawBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/chal/1", func(w http.ResponseWriter, r *http.Request) {
		rawBody = rawJWSPayload(t, r.Body)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"http-01","status":"processing"}`))
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	c := newTestChallenge(t, login, ChallengeTypeHTTP01, server.URL+"/chal/1", "token-xyz")

	require.NoError(t, c.Trigger(context.Background()))
	assert.Equal(t, "{}", string(rawBody))
}
