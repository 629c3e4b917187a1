package jose

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	josepkg "github.com/go-jose/go-jose/v4"
)

// JWK returns the public JWK representation of signer, with the Algorithm
// member populated from its key type.
func JWK(signer crypto.Signer) josepkg.JSONWebKey {
	return josepkg.JSONWebKey{
		Key:       signer.Public(),
		Algorithm: jwkAlgLabel(signer),
	}
}

// JWKThumbprint computes the RFC 7638 SHA-256 thumbprint of signer's
// public JWK (the canonical JSON of the required members in lex order),
// returned unpadded base64url-encoded.
func JWKThumbprint(signer crypto.Signer) (string, error) {
	jwk := JWK(signer)
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("jose: computing JWK thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// KeyAuthorization computes token || "." || base64url(JWK thumbprint), the
// key authorization string used by every standard ACME challenge type.
func KeyAuthorization(signer crypto.Signer, token string) (string, error) {
	thumbprint, err := JWKThumbprint(signer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// DNS01Digest computes base64url(SHA-256(keyAuthorization)), the value
// placed in the dns-01 / dns-account-01 TXT record.
func DNS01Digest(keyAuthorization string) string {
	sum := sha256.Sum256([]byte(keyAuthorization))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
