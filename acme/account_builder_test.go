package acme

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountBuilder_CreateReturnsLoginAndPopulatedAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/new-account", func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Contact              []string `json:"contact"`
			TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed"`
		}{}
		decodeJWSPayload(t, r.Body, &body)
		assert.Equal(t, []string{"mailto:admin@example.com"}, body.Contact)
		assert.True(t, body.TermsOfServiceAgreed)

		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Location", "http://"+r.Host+"/acct/1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"valid","contact":["mailto:admin@example.com"]}`))
	})

	session, server := newTestSessionMux(t, mux)
	key := testAccountKey(t)

	login, account, err := session.NewAccountBuilder(key).
		AddContact("mailto:admin@example.com").
		AgreeToTermsOfService().
		Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/acct/1", login.AccountURL())
	assert.Same(t, key, login.Key())

	status, err := account.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "valid", string(status))

	contacts, err := account.Contacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:admin@example.com"}, contacts)
}

func TestAccountBuilder_CreateFailsWithoutLocationHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/new-account", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"valid"}`))
	})

	session, _ := newTestSessionMux(t, mux)
	_, _, err := session.NewAccountBuilder(testAccountKey(t)).Create(context.Background())
	require.Error(t, err)
}
