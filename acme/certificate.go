package acme

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"

	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/jose"
)

// Certificate represents an issued certificate chain, downloaded
// lazily from an Order's certificate URL. Unlike the other resources it
// has no JSON body: the wire representation is PEM, handled directly by
// the connector's content-type gating.
type Certificate struct {
	login *Login
	url   string

	chain     []*x509.Certificate
	alternate []*url.URL
}

// URL returns the location this certificate was (or will be) downloaded
// from.
func (c *Certificate) URL() string { return c.url }

// Download fetches and decodes the certificate chain, caching it. Safe
// to call more than once; subsequent calls return the cached chain
// without a network round trip unless the cache is empty.
func (c *Certificate) Download(ctx context.Context) ([]*x509.Certificate, error) {
	if c.chain != nil {
		return c.chain, nil
	}
	resp, err := c.login.session.postAsGet(ctx, c.url, c.login.key, c.login.accountURL)
	if err != nil {
		return nil, err
	}
	chain, err := jose.DecodeCertificateChain(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("acme: decoding certificate chain: %w", err)
	}
	c.chain = chain
	c.alternate = resp.AlternateURL
	return chain, nil
}

// WriteCertificate downloads (if needed) the certificate chain and
// writes it PEM-encoded to path.
func (c *Certificate) WriteCertificate(ctx context.Context, path string) error {
	chain, err := c.Download(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, jose.EncodeCertificateChain(chain), 0o600)
}

// GetAlternates returns the alternate chain URLs advertised via
// Link: rel="alternate" headers on the download response. Download
// must have been called first.
func (c *Certificate) GetAlternates() []*url.URL {
	return c.alternate
}

// Revoke revokes this certificate using the owning Login's account key,
// with an optional RFC 5280 CRLReason code (-1 to omit it).
func (c *Certificate) Revoke(ctx context.Context, reason int) error {
	chain, err := c.Download(ctx)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return fmt.Errorf("acme: certificate has no chain to revoke")
	}

	session := c.login.session
	revokeURL, err := session.endpoint(ctx, endpointRevokeCert)
	if err != nil {
		return err
	}

	b := acmejson.NewBuilder()
	b.Put("certificate", base64.RawURLEncoding.EncodeToString(chain[0].Raw))
	if reason >= 0 {
		b.Put("reason", reason)
	}
	payload, err := b.Bytes()
	if err != nil {
		return err
	}

	_, _, err = c.login.signedRequest(ctx, revokeURL, payload)
	return err
}
