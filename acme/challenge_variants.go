package acme

import (
	"context"
	"crypto"
	"crypto/tls"

	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/jose"
)

// Challenge type strings: RFC 8555 section 8 plus the dns-account-01,
// dns-persist-01 and email-reply-00 extensions.
const (
	ChallengeTypeHTTP01       = "http-01"
	ChallengeTypeDNS01        = "dns-01"
	ChallengeTypeDNSAccount01 = "dns-account-01"
	ChallengeTypeDNSPersist01 = "dns-persist-01"
	ChallengeTypeTLSALPN01    = "tls-alpn-01"
	ChallengeTypeEmailReply00 = "email-reply-00"
)

// Http01Challenge narrows a Challenge known to be of type "http-01".
// The key authorization must be served as text/plain at
// http://<domain>/.well-known/acme-challenge/<token>.
type Http01Challenge struct{ *Challenge }

// AsHTTP01 narrows c if its type is http-01.
func (c *Challenge) AsHTTP01() (*Http01Challenge, bool) {
	if c.Type() != ChallengeTypeHTTP01 {
		return nil, false
	}
	return &Http01Challenge{c}, true
}

// Dns01Challenge narrows a Challenge known to be of type "dns-01". The
// validation record is a TXT RR at "_acme-challenge.<domain>." whose
// value is base64url(SHA-256(keyAuthorization)).
type Dns01Challenge struct{ *Challenge }

// AsDNS01 narrows c if its type is dns-01.
func (c *Challenge) AsDNS01() (*Dns01Challenge, bool) {
	if c.Type() != ChallengeTypeDNS01 {
		return nil, false
	}
	return &Dns01Challenge{c}, true
}

// RRName returns the fully-qualified dns-01 TXT record name for domain.
func (d *Dns01Challenge) RRName(domain string) (string, error) {
	return jose.DNS01RRName(domain)
}

// RRValue returns the dns-01 TXT record value for this challenge.
func (d *Dns01Challenge) RRValue(ctx context.Context) (string, error) {
	ka, err := d.KeyAuthorization(ctx)
	if err != nil {
		return "", err
	}
	return jose.DNS01Digest(ka), nil
}

// DnsAccount01Challenge narrows a Challenge of type "dns-account-01".
// It uses the same digest as dns-01 but a record name salted with the
// account URL, allowing multiple accounts to validate the same domain
// concurrently without colliding on one TXT name.
type DnsAccount01Challenge struct{ *Challenge }

// AsDNSAccount01 narrows c if its type is dns-account-01.
func (c *Challenge) AsDNSAccount01() (*DnsAccount01Challenge, bool) {
	if c.Type() != ChallengeTypeDNSAccount01 {
		return nil, false
	}
	return &DnsAccount01Challenge{c}, true
}

// RRName returns the fully-qualified dns-account-01 TXT record name for
// domain, salted with this challenge's account URL.
func (d *DnsAccount01Challenge) RRName(domain string) (string, error) {
	return jose.DNSAccount01RRName(domain, d.login().AccountURL())
}

// RRValue returns the dns-account-01 TXT record value for this
// challenge, identical in derivation to dns-01's.
func (d *DnsAccount01Challenge) RRValue(ctx context.Context) (string, error) {
	ka, err := d.KeyAuthorization(ctx)
	if err != nil {
		return "", err
	}
	return jose.DNS01Digest(ka), nil
}

// TlsAlpn01Challenge narrows a Challenge of type "tls-alpn-01". The
// validating server dials the identifier over TLS with ALPN protocol
// "acme-tls/1" and expects a self-signed certificate carrying the
// acmeIdentifier extension over SHA-256(keyAuthorization).
type TlsAlpn01Challenge struct{ *Challenge }

// AsTLSALPN01 narrows c if its type is tls-alpn-01.
func (c *Challenge) AsTLSALPN01() (*TlsAlpn01Challenge, bool) {
	if c.Type() != ChallengeTypeTLSALPN01 {
		return nil, false
	}
	return &TlsAlpn01Challenge{c}, true
}

// Certificate builds the self-signed validation certificate this
// challenge expects the validating server to see during its TLS
// handshake for identifier.
func (t *TlsAlpn01Challenge) Certificate(ctx context.Context, identifier string, key crypto.Signer) (tls.Certificate, error) {
	ka, err := t.KeyAuthorization(ctx)
	if err != nil {
		return tls.Certificate{}, err
	}
	return jose.SelfSignedTLSALPNCertificate(identifier, ka, key)
}

// EmailReply00Challenge narrows a Challenge of type "email-reply-00".
// Full S/MIME reply handling is intentionally out of scope here; this
// type exposes just enough to drive the protocol-level trigger step.
type EmailReply00Challenge struct{ *Challenge }

// AsEmailReply00 narrows c if its type is email-reply-00.
func (c *Challenge) AsEmailReply00() (*EmailReply00Challenge, bool) {
	if c.Type() != ChallengeTypeEmailReply00 {
		return nil, false
	}
	return &EmailReply00Challenge{c}, true
}

// Trigger sends {"keyAuthorization": <ka>} instead of the empty-object
// body every other challenge type uses.
func (e *EmailReply00Challenge) Trigger(ctx context.Context) error {
	ka, err := e.KeyAuthorization(ctx)
	if err != nil {
		return err
	}
	payload, err := acmejson.NewBuilder().Put("keyAuthorization", ka).Bytes()
	if err != nil {
		return err
	}
	return e.trigger(ctx, payload)
}
