package acme

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	josepkg "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmecore/acme/acmejson"
)

func newTestAccount(t *testing.T, session *Session, url string) *Account {
	t.Helper()
	login := session.Login(url, testAccountKey(t))
	return &Account{base: newResource(login, url)}
}

func TestAccount_ModifySendsContactAndTOSFlag(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/acct/1", func(w http.ResponseWriter, r *http.Request) {
		decodeJWSPayload(t, r.Body, &captured)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"valid","contact":["mailto:new@example.com"]}`))
	})

	session, server := newTestSessionMux(t, mux)
	account := newTestAccount(t, session, server.URL+"/acct/1")

	agreed := true
	require.NoError(t, account.Modify(context.Background(), []string{"mailto:new@example.com"}, &agreed))

	assert.Equal(t, []any{"mailto:new@example.com"}, captured["contact"])
	assert.Equal(t, true, captured["termsOfServiceAgreed"])

	contacts, err := account.Contacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:new@example.com"}, contacts)
}

func TestAccount_DeactivateSendsStatusDeactivated(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/acct/1", func(w http.ResponseWriter, r *http.Request) {
		decodeJWSPayload(t, r.Body, &captured)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"deactivated"}`))
	})

	session, server := newTestSessionMux(t, mux)
	account := newTestAccount(t, session, server.URL+"/acct/1")
	require.NoError(t, account.Deactivate(context.Background()))
	assert.Equal(t, "deactivated", captured["status"])

	status, err := account.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acmejson.StatusDeactivated, status)
}

func TestAccount_PreAuthorizeDomainReturnsAuthorization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/new-authz", func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Identifier acmejson.Identifier `json:"identifier"`
		}{}
		decodeJWSPayload(t, r.Body, &body)
		assert.Equal(t, "dns", body.Identifier.Type)
		assert.Equal(t, "example.net", body.Identifier.Value)

		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Location", "https://"+r.Host+"/authz/9")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"pending","identifier":{"type":"dns","value":"example.net"}}`))
	})

	session, server := newTestSessionMux(t, mux)
	account := newTestAccount(t, session, server.URL+"/acct/1")

	authz, err := account.PreAuthorizeDomain(context.Background(), "dns", "example.net")
	require.NoError(t, err)

	ident, err := authz.Identifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "example.net", ident.Value)
}

func TestAccount_RevokeSendsBase64URLDER(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/revoke-cert", func(w http.ResponseWriter, r *http.Request) {
		decodeJWSPayload(t, r.Body, &captured)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.WriteHeader(http.StatusOK)
	})

	session, server := newTestSessionMux(t, mux)
	account := newTestAccount(t, session, server.URL+"/acct/1")

	require.NoError(t, account.Revoke(context.Background(), []byte{0xde, 0xad, 0xbe, 0xef}, 1))
	assert.Equal(t, float64(1), captured["reason"])
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef}), captured["certificate"])
}

func TestAccount_KeyChangeWrapsInnerJWSSignedByNewKey(t *testing.T) {
	newKey := testAccountKey(t)
	var innerPayload []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/key-change", func(w http.ResponseWriter, r *http.Request) {
		inner, err := josepkg.ParseSigned(string(rawJWSPayload(t, r.Body)), []josepkg.SignatureAlgorithm{josepkg.ES256})
		require.NoError(t, err)
		innerPayload, err = inner.Verify(&newKey.PublicKey)
		require.NoError(t, err)

		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"valid"}`))
	})

	session, server := newTestSessionMux(t, mux)
	account := newTestAccount(t, session, server.URL+"/acct/1")

	require.NoError(t, account.KeyChange(context.Background(), newKey))

	var body struct {
		Account string `json:"account"`
	}
	require.NoError(t, json.Unmarshal(innerPayload, &body))
	assert.Equal(t, server.URL+"/acct/1", body.Account)
}
