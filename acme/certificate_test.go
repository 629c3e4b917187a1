package acme

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSelfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key := testAccountKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestCertificate_DownloadParsesChainAndCachesIt(t *testing.T) {
	var calls int
	certPEM := testSelfSignedPEM(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/cert/1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/pem-certificate-chain")
		_, _ = w.Write(certPEM)
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	cert := &Certificate{login: login, url: server.URL + "/cert/1"}

	chain, err := cert.Download(context.Background())
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "example.com", chain[0].Subject.CommonName)

	_, err = cert.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second Download must use the cached chain")
}

func TestCertificate_WriteCertificateRoundTrips(t *testing.T) {
	certPEM := testSelfSignedPEM(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/cert/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/pem-certificate-chain")
		_, _ = w.Write(certPEM)
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	cert := &Certificate{login: login, url: server.URL + "/cert/1"}

	path := filepath.Join(t.TempDir(), "chain.pem")
	require.NoError(t, cert.WriteCertificate(context.Background(), path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "BEGIN CERTIFICATE")
}

func TestCertificate_GetAlternatesFromLinkHeader(t *testing.T) {
	certPEM := testSelfSignedPEM(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/cert/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Link", `<https://example.com/cert/1/alt>; rel="alternate"`)
		w.Header().Set("Content-Type", "application/pem-certificate-chain")
		_, _ = w.Write(certPEM)
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	cert := &Certificate{login: login, url: server.URL + "/cert/1"}

	_, err := cert.Download(context.Background())
	require.NoError(t, err)

	alts := cert.GetAlternates()
	require.Len(t, alts, 1)
	assert.Equal(t, "https://example.com/cert/1/alt", alts[0].String())
}

func TestCertificate_RevokeSendsLeafDER(t *testing.T) {
	certPEM := testSelfSignedPEM(t)
	var captured map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/cert/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.Header().Set("Content-Type", "application/pem-certificate-chain")
		_, _ = w.Write(certPEM)
	})
	mux.HandleFunc("/revoke-cert", func(w http.ResponseWriter, r *http.Request) {
		decodeJWSPayload(t, r.Body, &captured)
		w.Header().Set("Replay-Nonce", "next-nonce")
		w.WriteHeader(http.StatusOK)
	})

	session, server := newTestSessionMux(t, mux)
	login := session.Login(server.URL+"/acct/1", testAccountKey(t))
	cert := &Certificate{login: login, url: server.URL + "/cert/1"}

	require.NoError(t, cert.Revoke(context.Background(), 4))
	assert.Equal(t, float64(4), captured["reason"])
	leaf, _ := pem.Decode(certPEM)
	require.NotNil(t, leaf)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(leaf.Bytes), captured["certificate"])
}
