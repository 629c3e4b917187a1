package jose

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// DecodeCertificateChain splits a PEM stream on CERTIFICATE blocks and
// parses each one, preserving order (leaf-first, per RFC 8555 section
// 7.4.2). Extra whitespace between blocks is tolerated because pem.Decode
// skips non-PEM bytes between blocks.
func DecodeCertificateChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jose: parsing certificate %d in chain: %w", len(certs), err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("jose: no CERTIFICATE blocks found in PEM stream")
	}
	return certs, nil
}

// EncodeCertificateChain serializes a leaf-first certificate chain back to
// a concatenated PEM stream.
func EncodeCertificateChain(certs []*x509.Certificate) []byte {
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return out
}
