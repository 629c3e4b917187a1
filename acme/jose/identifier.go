package jose

import (
	"fmt"

	"golang.org/x/net/idna"
)

// aceProfile is a lookup profile for identifier values:
// it accepts already-ASCII labels (so bare ASCII domains round-trip
// unchanged) while still punycode-encoding non-ASCII labels.
var aceProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
)

// ToACE normalizes a UTF-8 domain name to its ASCII-compatible encoding,
// the representation ACME identifiers carry on the wire. Domains that
// are already ASCII are returned unchanged (aside from case-folding).
func ToACE(domain string) (string, error) {
	ace, err := aceProfile.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("jose: normalizing identifier %q to ACE: %w", domain, err)
	}
	return ace, nil
}
