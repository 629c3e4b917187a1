package jose_test

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpu/acmecore/acme/jose"
)

func TestDNS01RRName(t *testing.T) {
	name, err := jose.DNS01RRName("example.com")
	require.NoError(t, err)
	require.Equal(t, "_acme-challenge.example.com.", name)
}

func TestDNSPersist01RRName(t *testing.T) {
	name, err := jose.DNSPersist01RRName("example.com")
	require.NoError(t, err)
	require.Equal(t, "_validation-persist.example.com.", name)
}

func TestDNSAccount01RRName(t *testing.T) {
	accountURL := "https://example.com/acme/acct/1"
	name, err := jose.DNSAccount01RRName("example.com", accountURL)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(accountURL))
	label := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))[:10]
	require.Equal(t, "_"+label+"._acme-challenge.example.com.", name)
}

func TestDNSNames_ACENormalization(t *testing.T) {
	name, err := jose.DNS01RRName("xn--n3h.example")
	require.NoError(t, err)
	require.Equal(t, "_acme-challenge.xn--n3h.example.", name)
}
