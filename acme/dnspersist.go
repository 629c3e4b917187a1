package acme

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cpu/acmecore/acme/jose"
)

const (
	minIssuerDomainNames = 1
	maxIssuerDomainNames = 10
	maxDomainNameLength  = 253
)

// DnsPersist01Challenge narrows a Challenge of type "dns-persist-01": a
// draft validation method recording a persistent TXT RR at
// "_validation-persist.<domain>." whose RDATA is built by
// NewDNSPersistRDATA.
type DnsPersist01Challenge struct{ *Challenge }

// AsDNSPersist01 narrows c if its type is dns-persist-01.
func (c *Challenge) AsDNSPersist01() (*DnsPersist01Challenge, bool) {
	if c.Type() != ChallengeTypeDNSPersist01 {
		return nil, false
	}
	return &DnsPersist01Challenge{c}, true
}

// RRName returns the fully-qualified dns-persist-01 TXT record name for
// domain.
func (d *DnsPersist01Challenge) RRName(domain string) (string, error) {
	return jose.DNSPersist01RRName(domain)
}

// DNSPersistRDATA fluently builds the dns-persist-01 TXT record value: a
// semicolon-joined list of
// "issuerDomainName; accounturi=<url>[; policy=wildcard][; persistUntil=<epoch>]"
// parts, either as one unquoted string or, by default, as a quoted TXT
// RDATA in which every part is its own quoted character-string.
type DNSPersistRDATA struct {
	issuerDomainNames []string
	issuerDomainName  string
	accountURL        string
	wildcard          bool
	persistUntil      *int64
	quoted            bool
}

// NewDNSPersistRDATA validates issuerDomainNames (RFC 8555-style
// constraints: 1 to 10 entries, each at most 253 characters) and
// returns a builder defaulted to the first entry, quoted output, no
// wildcard policy and no persistUntil bound.
func NewDNSPersistRDATA(issuerDomainNames []string, accountURL string) (*DNSPersistRDATA, error) {
	if len(issuerDomainNames) < minIssuerDomainNames || len(issuerDomainNames) > maxIssuerDomainNames {
		return nil, fmt.Errorf("acme: issuer-domain-names must have between %d and %d entries, got %d", minIssuerDomainNames, maxIssuerDomainNames, len(issuerDomainNames))
	}
	for _, name := range issuerDomainNames {
		if len(name) > maxDomainNameLength {
			return nil, fmt.Errorf("acme: issuer domain name %q exceeds %d characters", name, maxDomainNameLength)
		}
	}
	return &DNSPersistRDATA{
		issuerDomainNames: issuerDomainNames,
		issuerDomainName:  issuerDomainNames[0],
		accountURL:        accountURL,
		quoted:            true,
	}, nil
}

// Wildcard adds the "policy=wildcard" part.
func (r *DNSPersistRDATA) Wildcard() *DNSPersistRDATA {
	r.wildcard = true
	return r
}

// IssuerDomainName selects which of the constructor's
// issuerDomainNames is the leading RDATA part; it must be a member of
// that list, checked at Build time.
func (r *DNSPersistRDATA) IssuerDomainName(name string) *DNSPersistRDATA {
	r.issuerDomainName = name
	return r
}

// PersistUntil adds the "persistUntil=<epochSeconds>" part.
func (r *DNSPersistRDATA) PersistUntil(epochSeconds int64) *DNSPersistRDATA {
	r.persistUntil = &epochSeconds
	return r
}

// NoQuotes emits the parts joined by "; " as a single unquoted string
// instead of the default quoted form (one quoted character-string per
// part).
func (r *DNSPersistRDATA) NoQuotes() *DNSPersistRDATA {
	r.quoted = false
	return r
}

// Build renders the final RDATA string, validating that the selected
// issuerDomainName is a member of the constructor's issuerDomainNames.
func (r *DNSPersistRDATA) Build() (string, error) {
	member := false
	for _, name := range r.issuerDomainNames {
		if name == r.issuerDomainName {
			member = true
			break
		}
	}
	if !member {
		return "", fmt.Errorf("acme: selected issuerDomainName %q is not a member of issuer-domain-names", r.issuerDomainName)
	}

	parts := []string{r.issuerDomainName, "accounturi=" + r.accountURL}
	if r.wildcard {
		parts = append(parts, "policy=wildcard")
	}
	if r.persistUntil != nil {
		parts = append(parts, "persistUntil="+strconv.FormatInt(*r.persistUntil, 10))
	}

	if !r.quoted {
		return strings.Join(parts, "; "), nil
	}

	segments := make([]string, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = " " + part
		}
		if i < len(parts)-1 {
			part += ";"
		}
		segments[i] = fmt.Sprintf("%q", part)
	}
	return strings.Join(segments, " "), nil
}
