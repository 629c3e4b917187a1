// Package jose implements the ACME client crypto toolbox: JOSE
// (flattened JWS) signing, JWK thumbprints, key authorizations, DNS-01
// digests, TLS-ALPN-01 extension bytes, PKCS#10 CSR construction and PEM
// certificate chain decoding.
//
// Signing is built on github.com/go-jose/go-jose/v4 and covers ECDSA,
// RSA and Ed25519 account keys, deriving the JWS alg from the key type.
package jose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	josepkg "github.com/go-jose/go-jose/v4"
)

// NonceSource adapts any nonce supplier (acme/connector wraps each
// already-popped nonce in one) to the interface go-jose's Signer expects
// to populate the protected "nonce" header automatically.
type NonceSource interface {
	Nonce() (string, error)
}

// AlgorithmForKey derives the JWS signature algorithm from the key type:
// RSA => RS256, EC P-256 => ES256, Ed25519 => EdDSA.
func AlgorithmForKey(signer crypto.Signer) (josepkg.SignatureAlgorithm, error) {
	switch k := signer.Public().(type) {
	case *rsa.PublicKey:
		return josepkg.RS256, nil
	case *ecdsa.PublicKey:
		if k.Curve.Params().BitSize != 256 {
			return "", fmt.Errorf("jose: unsupported EC curve bit size %d, only P-256 is supported", k.Curve.Params().BitSize)
		}
		return josepkg.ES256, nil
	case ed25519.PublicKey:
		return josepkg.EdDSA, nil
	default:
		return "", fmt.Errorf("jose: unsupported key type %T", k)
	}
}

func jwkAlgLabel(signer crypto.Signer) string {
	switch signer.Public().(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "ECDSA"
	case ed25519.PublicKey:
		return "EdDSA"
	default:
		return "unknown"
	}
}

// SignRequest describes a single signed ACME request. Exactly one of
// EmbedJWK or KeyID must be set: the protected header must carry
// exactly one of "jwk" or "kid", never both.
type SignRequest struct {
	// URL is the protected "url" header and the HTTP target of the request.
	URL string
	// Payload is the request body to sign. A nil (not empty-slice) Payload
	// signs an empty byte string, as required for POST-as-GET requests.
	Payload []byte
	// Signer is the account (or rollover) private key used to produce the
	// signature.
	Signer crypto.Signer
	// EmbedJWK requests that the public key be embedded as a JWK instead of
	// using a Key ID header. Used for newAccount and key-rollover inner JWS.
	EmbedJWK bool
	// KeyID is the ACME account URL used as the JWS "kid" header. Required
	// unless EmbedJWK is true.
	KeyID string
	// Nonces supplies the protected "nonce" header value. Nil omits the
	// nonce header entirely, as required for the inner JWS of a key-rollover
	// request (RFC 8555 section 7.3.5), which carries no "nonce" member.
	Nonces NonceSource
}

// FlattenedJWS is the parsed, round-trippable result of a signing
// operation: the serialized flattened JWS body plus the header and
// payload that produced it, so callers can verify that re-parsing
// yields the same header/payload that was signed.
type FlattenedJWS struct {
	Serialized []byte
	Parsed     *josepkg.JSONWebSignature
}

// Sign produces a flattened-serialization JWS for the given request. The
// signature algorithm is derived from the key type; the nonce is drawn
// from req.Nonces at signing time so exactly one nonce is consumed per
// call.
func Sign(req SignRequest) (*FlattenedJWS, error) {
	if req.Signer == nil {
		return nil, fmt.Errorf("jose: SignRequest.Signer must not be nil")
	}
	if req.EmbedJWK == (req.KeyID != "") {
		return nil, fmt.Errorf("jose: exactly one of EmbedJWK or KeyID must be set")
	}
	alg, err := AlgorithmForKey(req.Signer)
	if err != nil {
		return nil, err
	}

	extraHeaders := map[josepkg.HeaderKey]any{"url": req.URL}
	signerOpts := &josepkg.SignerOptions{
		ExtraHeaders: extraHeaders,
	}
	if req.Nonces != nil {
		signerOpts.NonceSource = req.Nonces
	}

	var signingKey josepkg.SigningKey
	if req.EmbedJWK {
		signerOpts.EmbedJWK = true
		signingKey = josepkg.SigningKey{Key: req.Signer, Algorithm: alg}
	} else {
		jwk := josepkg.JSONWebKey{
			Key:       req.Signer,
			Algorithm: jwkAlgLabel(req.Signer),
			KeyID:     req.KeyID,
		}
		signingKey = josepkg.SigningKey{Key: jwk, Algorithm: alg}
	}

	signer, err := josepkg.NewSigner(signingKey, signerOpts)
	if err != nil {
		return nil, fmt.Errorf("jose: creating signer: %w", err)
	}

	payload := req.Payload
	if payload == nil {
		payload = []byte{}
	}
	signed, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("jose: signing failed: %w", err)
	}

	serialized := []byte(signed.FullSerialize())
	parsed, err := josepkg.ParseSigned(string(serialized), []josepkg.SignatureAlgorithm{alg})
	if err != nil {
		return nil, fmt.Errorf("jose: re-parsing signed JWS: %w", err)
	}

	return &FlattenedJWS{Serialized: serialized, Parsed: parsed}, nil
}
