package acme

import "github.com/cpu/acmecore/acme/acmeerr"

// DirectoryMeta carries the optional "meta" object of an ACME directory
// resource (RFC 8555 section 7.1.1).
type DirectoryMeta struct {
	TermsOfService          string
	Website                 string
	CAAIdentities           []string
	ExternalAccountRequired bool
	Profiles                map[string]string
}

// Directory is an immutable snapshot of the ACME server's directory
// resource, fetched once per Session and cached until an explicit
// ResetDirectory.
type Directory struct {
	endpoints map[string]string
	Meta      DirectoryMeta
}

func newDirectory(raw map[string]any) *Directory {
	d := &Directory{endpoints: map[string]string{}}
	for k, v := range raw {
		if k == "meta" {
			continue
		}
		if s, ok := v.(string); ok {
			d.endpoints[k] = s
		}
	}
	if metaRaw, ok := raw["meta"].(map[string]any); ok {
		if s, ok := metaRaw["termsOfService"].(string); ok {
			d.Meta.TermsOfService = s
		}
		if s, ok := metaRaw["website"].(string); ok {
			d.Meta.Website = s
		}
		if b, ok := metaRaw["externalAccountRequired"].(bool); ok {
			d.Meta.ExternalAccountRequired = b
		}
		if arr, ok := metaRaw["caaIdentities"].([]any); ok {
			for _, e := range arr {
				if s, ok := e.(string); ok {
					d.Meta.CAAIdentities = append(d.Meta.CAAIdentities, s)
				}
			}
		}
		if profiles, ok := metaRaw["profiles"].(map[string]any); ok {
			d.Meta.Profiles = map[string]string{}
			for name, desc := range profiles {
				if s, ok := desc.(string); ok {
					d.Meta.Profiles[name] = s
				}
			}
		}
	}
	return d
}

// endpoint constants, matching the ACME directory's well-known resource
// names (RFC 8555 section 9.7.5).
const (
	endpointNewNonce   = "newNonce"
	endpointNewAccount = "newAccount"
	endpointNewOrder   = "newOrder"
	endpointNewAuthz   = "newAuthz"
	endpointRevokeCert = "revokeCert"
	endpointKeyChange  = "keyChange"
	endpointRenewalInfo = "renewalInfo"
)

// URL looks up a directory endpoint by name, raising NotSupportedError
// when the server's directory lacks it.
func (d *Directory) URL(name string) (string, error) {
	u, ok := d.endpoints[name]
	if !ok || u == "" {
		return "", &acmeerr.NotSupportedError{What: "directory endpoint " + name}
	}
	return u, nil
}
