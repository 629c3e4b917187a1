package jose

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/miekg/dns"
)

// DNS01RRName returns the dns-01 TXT record owner name for domain:
// "_acme-challenge." + toAce(domain) + ".".
func DNS01RRName(domain string) (string, error) {
	ace, err := ToACE(domain)
	if err != nil {
		return "", err
	}
	return dns.Fqdn("_acme-challenge." + ace), nil
}

// DNSPersist01RRName returns the dns-persist-01 TXT record owner name:
// "_validation-persist." + toAce(domain) + ".".
func DNSPersist01RRName(domain string) (string, error) {
	ace, err := ToACE(domain)
	if err != nil {
		return "", err
	}
	return dns.Fqdn("_validation-persist." + ace), nil
}

// DNSAccount01RRName returns the dns-account-01 TXT record owner name:
// "_<base32(sha256(accountURL))[:10]>._acme-challenge." + toAce(domain) + ".".
func DNSAccount01RRName(domain, accountURL string) (string, error) {
	ace, err := ToACE(domain)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(accountURL))
	label := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))
	if len(label) > 10 {
		label = label[:10]
	}
	return dns.Fqdn("_" + label + "._acme-challenge." + ace), nil
}
