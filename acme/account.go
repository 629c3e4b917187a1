package acme

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/jose"
)

// Account is the lazily-loaded resource located at a Login's account
// URL, built on top of the shared resource/fetch machinery.
type Account struct {
	base resource
}

// URL returns the account's own resource location.
func (a *Account) URL() string { return a.base.URL() }

// Status returns the account's current status.
func (a *Account) Status(ctx context.Context) (acmejson.Status, error) {
	data, err := a.base.getJSON(ctx)
	if err != nil {
		return acmejson.StatusUnknown, err
	}
	return data.Get("status").AsStatus()
}

// Contacts returns the account's contact URI list (e.g. "mailto:" URIs).
func (a *Account) Contacts(ctx context.Context) ([]string, error) {
	data, err := a.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	contactsVal := data.Get("contact")
	if !contactsVal.IsPresent() {
		return nil, nil
	}
	arr, err := contactsVal.AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, err := v.AsString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// TermsOfServiceAgreed reports the account's "termsOfServiceAgreed"
// flag, as last fetched.
func (a *Account) TermsOfServiceAgreed(ctx context.Context) (bool, error) {
	data, err := a.base.getJSON(ctx)
	if err != nil {
		return false, err
	}
	v := data.Get("termsOfServiceAgreed")
	if !v.IsPresent() {
		return false, nil
	}
	return v.AsBool()
}

// OrdersURL returns the account's "orders" collection URL, if present.
func (a *Account) OrdersURL(ctx context.Context) (string, error) {
	data, err := a.base.getJSON(ctx)
	if err != nil {
		return "", err
	}
	v := data.Get("orders")
	if !v.IsPresent() {
		return "", nil
	}
	return v.AsString()
}

// login recovers the owning Login. Account is always constructed via
// Login.Account, so this is always populated.
func (a *Account) login() *Login { return a.base.login }

// Update re-fetches the account resource from the server, discarding
// any cached representation.
func (a *Account) Update(ctx context.Context) error {
	a.base.invalidate()
	return a.base.fetch(ctx)
}

// Modify sends a signed POST to the account URL updating its contact
// list and/or termsOfServiceAgreed flag, then refreshes the cached
// representation from the response.
func (a *Account) Modify(ctx context.Context, contacts []string, termsOfServiceAgreed *bool) error {
	b := acmejson.NewBuilder()
	if contacts != nil {
		raw, err := json.Marshal(contacts)
		if err != nil {
			return err
		}
		b.PutRaw("contact", raw)
	}
	if termsOfServiceAgreed != nil {
		b.Put("termsOfServiceAgreed", *termsOfServiceAgreed)
	}
	payload, err := b.Bytes()
	if err != nil {
		return fmt.Errorf("acme: building account update payload: %w", err)
	}

	data, meta, err := a.login().signedRequest(ctx, a.URL(), payload)
	if err != nil {
		return err
	}
	a.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}

// NewOrder begins building a new certificate order under this account.
func (a *Account) NewOrder() *OrderBuilder {
	return &OrderBuilder{login: a.login()}
}

// Deactivate sends {"status": "deactivated"} to the account URL.
func (a *Account) Deactivate(ctx context.Context) error {
	b := acmejson.NewBuilder().Put("status", "deactivated")
	payload, err := b.Bytes()
	if err != nil {
		return err
	}
	data, meta, err := a.login().signedRequest(ctx, a.URL(), payload)
	if err != nil {
		return err
	}
	a.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}

// PreAuthorizeDomain requests pre-authorization for identifier using the
// directory's newAuthz endpoint, returning the created Authorization.
// Servers that do not implement newAuthz cause a NotSupportedError.
func (a *Account) PreAuthorizeDomain(ctx context.Context, identifierType, identifierValue string) (*Authorization, error) {
	session := a.login().session
	newAuthzURL, err := session.endpoint(ctx, endpointNewAuthz)
	if err != nil {
		return nil, err
	}

	b := acmejson.NewBuilder()
	ident := acmejson.NewBuilder().Put("type", identifierType).Put("value", identifierValue)
	identBytes, err := ident.Bytes()
	if err != nil {
		return nil, err
	}
	b.PutRaw("identifier", identBytes)
	payload, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	data, meta, err := a.login().signedRequest(ctx, newAuthzURL, payload)
	if err != nil {
		return nil, err
	}

	authz := &Authorization{base: pollable{newResource(a.login(), "")}}
	authz.base.setJSON(data, meta.location, meta.retryAfter)
	return authz, nil
}

// KeyChange rotates the account's signing key: an inner JWS signed with
// newKey over {account, oldKey}, wrapped in an outer JWS signed with
// the account's current key, sent to the directory's keyChange
// endpoint (RFC 8555 section 7.3.5).
func (a *Account) KeyChange(ctx context.Context, newKey crypto.Signer) error {
	session := a.login().session
	keyChangeURL, err := session.endpoint(ctx, endpointKeyChange)
	if err != nil {
		return err
	}

	oldJWK := jose.JWK(a.login().Key())
	oldJWKBytes, err := json.Marshal(&oldJWK)
	if err != nil {
		return fmt.Errorf("acme: marshaling old JWK: %w", err)
	}

	inner := acmejson.NewBuilder()
	inner.Put("account", a.URL())
	inner.PutRaw("oldKey", oldJWKBytes)
	innerPayload, err := inner.Bytes()
	if err != nil {
		return err
	}

	innerJWS, err := jose.Sign(jose.SignRequest{
		URL:      keyChangeURL,
		Payload:  innerPayload,
		Signer:   newKey,
		EmbedJWK: true,
	})
	if err != nil {
		return fmt.Errorf("acme: signing inner keyChange JWS: %w", err)
	}

	data, meta, err := a.login().signedRequest(ctx, keyChangeURL, innerJWS.Serialized)
	if err != nil {
		return err
	}
	a.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}

// Revoke revokes a certificate on this account's behalf, with an
// optional RFC 5280 CRLReason code (-1 to omit it).
func (a *Account) Revoke(ctx context.Context, certDER []byte, reason int) error {
	session := a.login().session
	revokeURL, err := session.endpoint(ctx, endpointRevokeCert)
	if err != nil {
		return err
	}

	b := acmejson.NewBuilder()
	b.Put("certificate", base64.RawURLEncoding.EncodeToString(certDER))
	if reason >= 0 {
		b.Put("reason", reason)
	}
	payload, err := b.Bytes()
	if err != nil {
		return err
	}

	_, _, err = a.login().signedRequest(ctx, revokeURL, payload)
	return err
}
