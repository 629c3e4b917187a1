package jose

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

// idPeAcmeIdentifier is the OID for the tls-alpn-01 acmeIdentifier
// extension, RFC 8737 section 3.
var idPeAcmeIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 31}

// ALPNProtocol is the ALPN protocol identifier negotiated during tls-alpn-01
// validation, RFC 8737 section 3.
const ALPNProtocol = "acme-tls/1"

// TLSALPN01Extension builds the critical acmeIdentifier certificate
// extension: the DER encoding of an OCTET STRING containing
// SHA-256(keyAuthorization), itself wrapped in the outer OCTET STRING that
// carries extension values. encoding/asn1 is used directly here because
// this is a single fixed-shape DER value with no corpus dependency
// offering a higher-level primitive for it (see DESIGN.md).
func TLSALPN01Extension(keyAuthorization string) (pkix.Extension, error) {
	digest := sha256.Sum256([]byte(keyAuthorization))
	value, err := asn1.Marshal(digest[:])
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("jose: encoding acmeIdentifier extension: %w", err)
	}
	return pkix.Extension{
		Id:       idPeAcmeIdentifier,
		Critical: true,
		Value:    value,
	}, nil
}

// SelfSignedTLSALPNCertificate builds a short-lived self-signed
// certificate for identifier carrying the critical acmeIdentifier
// extension, suitable for presentation during a tls-alpn-01 validation
// handshake negotiated under ALPNProtocol.
func SelfSignedTLSALPNCertificate(identifier, keyAuthorization string, key crypto.Signer) (tls.Certificate, error) {
	ext, err := TLSALPN01Extension(keyAuthorization)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("jose: generating serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: identifier},
		DNSNames:              []string{identifier},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		ExtraExtensions:       []pkix.Extension{ext},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("jose: creating self-signed tls-alpn-01 certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}
