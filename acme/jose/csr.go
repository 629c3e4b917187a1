package jose

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
)

// BuildCSR constructs a PKCS#10 certificate signing request for the given
// identifiers, signed by key. It takes all of an order's identifiers as
// SAN entries.
//
// The request's CommonName is the first identifier, matching the common
// convention of ACME clients that don't otherwise have a subject to set;
// callers that need a different Subject should build their own
// x509.CertificateRequest and call x509.CreateCertificateRequest directly.
func BuildCSR(identifiers []string, key crypto.Signer) (der []byte, pemBytes []byte, err error) {
	if len(identifiers) == 0 {
		return nil, nil, fmt.Errorf("jose: BuildCSR requires at least one identifier")
	}

	template := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: identifiers[0]},
		DNSNames: identifiers,
	}

	der, err = x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, nil, fmt.Errorf("jose: creating CSR: %w", err)
	}

	pemBytes = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
	return der, pemBytes, nil
}
