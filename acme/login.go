package acme

import (
	"context"
	"crypto"
	"net/url"
	"time"

	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/jose"
)

// Login binds a Session to one ACME account: its URL (the account's
// resource location, used as the JWS "kid") and the key pair that signs
// requests on its behalf.
type Login struct {
	session    *Session
	accountURL string
	key        crypto.Signer
}

// Session returns the Session this Login was created from.
func (l *Login) Session() *Session { return l.session }

// AccountURL returns the account resource location used as this
// Login's JWS key ID.
func (l *Login) AccountURL() string { return l.accountURL }

// Key returns the account's private key.
func (l *Login) Key() crypto.Signer { return l.key }

// Account returns a lazily-loaded handle to this Login's account
// resource.
func (l *Login) Account() *Account {
	return &Account{base: newResource(l, l.accountURL)}
}

// NewOrder begins building a new certificate order for this account.
func (l *Login) NewOrder() *OrderBuilder {
	return &OrderBuilder{login: l}
}

// keyAuthorization computes the key authorization for a challenge
// token, binding it to this account's key per RFC 8555 section 8.1.
func (l *Login) keyAuthorization(token string) (string, error) {
	return jose.KeyAuthorization(l.key, token)
}

// postAsGet issues an authenticated POST-as-GET against url and parses
// the JSON body, the operation every lazily-loaded resource's fetch()
// performs.
func (l *Login) postAsGet(ctx context.Context, reqURL string) (acmejson.Value, *connectorResponseMeta, error) {
	resp, err := l.session.postAsGet(ctx, reqURL, l.key, l.accountURL)
	if err != nil {
		return acmejson.Value{}, nil, err
	}
	return resp.JSON, &connectorResponseMeta{location: resp.Location, retryAfter: resp.RetryAfter}, nil
}

// fetchResource reads url the way this Login's Session is configured
// to: a POST-as-GET by default, or a plain unauthenticated GET when the
// Session was built with SessionConfig.POSTAsGET set to false.
func (l *Login) fetchResource(ctx context.Context, reqURL string) (acmejson.Value, *connectorResponseMeta, error) {
	if !l.session.usesPostAsGet() {
		resp, err := l.session.conn.Get(ctx, reqURL)
		if err != nil {
			return acmejson.Value{}, nil, err
		}
		return resp.JSON, &connectorResponseMeta{location: resp.Location, retryAfter: resp.RetryAfter}, nil
	}
	return l.postAsGet(ctx, reqURL)
}

// signedRequest issues an authenticated signed POST with a JSON payload
// and parses the JSON body.
func (l *Login) signedRequest(ctx context.Context, reqURL string, payload []byte) (acmejson.Value, *connectorResponseMeta, error) {
	resp, err := l.session.signedRequest(ctx, reqURL, payload, l.key, l.accountURL, false)
	if err != nil {
		return acmejson.Value{}, nil, err
	}
	return resp.JSON, &connectorResponseMeta{location: resp.Location, retryAfter: resp.RetryAfter}, nil
}

// connectorResponseMeta is the subset of a connector.Response a resource
// cares about beyond the JSON body itself.
type connectorResponseMeta struct {
	location   *url.URL
	retryAfter *time.Time
}
