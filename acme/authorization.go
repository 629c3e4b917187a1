package acme

import (
	"context"
	"fmt"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
)

// Authorization is the lazily-loaded authorization resource.
type Authorization struct {
	base pollable
}

func (z *Authorization) login() *Login { return z.base.login }

// URL returns the authorization's own resource location.
func (z *Authorization) URL() string { return z.base.URL() }

// Status returns the authorization's current status.
func (z *Authorization) Status(ctx context.Context) (acmejson.Status, error) {
	data, err := z.base.getJSON(ctx)
	if err != nil {
		return acmejson.StatusUnknown, err
	}
	return data.Get("status").AsStatus()
}

// Identifier returns the authorization's identifier.
func (z *Authorization) Identifier(ctx context.Context) (acmejson.Identifier, error) {
	data, err := z.base.getJSON(ctx)
	if err != nil {
		return acmejson.Identifier{}, err
	}
	return data.Get("identifier").AsIdentifier()
}

// Wildcard reports the authorization's "wildcard" flag.
func (z *Authorization) Wildcard(ctx context.Context) (bool, error) {
	data, err := z.base.getJSON(ctx)
	if err != nil {
		return false, err
	}
	v := data.Get("wildcard")
	if !v.IsPresent() {
		return false, nil
	}
	return v.AsBool()
}

// Expires returns the authorization's expiry instant, if present.
func (z *Authorization) Expires(ctx context.Context) (time.Time, bool, error) {
	data, err := z.base.getJSON(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	v := data.Get("expires")
	if !v.IsPresent() {
		return time.Time{}, false, nil
	}
	t, err := v.AsInstant()
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Challenges returns every challenge offered by this authorization,
// constructed via the owning Session's challenge-type registry.
func (z *Authorization) Challenges(ctx context.Context) ([]*Challenge, error) {
	data, err := z.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := data.Get("challenges").AsArray()
	if err != nil {
		return nil, err
	}
	login := z.login()
	out := make([]*Challenge, 0, len(arr))
	for _, v := range arr {
		out = append(out, login.session.createChallenge(login, v))
	}
	return out, nil
}

// FindChallenge scans this authorization's challenges for exactly one
// of the given type, raising a ProtocolError if more than one matches.
func (z *Authorization) FindChallenge(ctx context.Context, challengeType string) (*Challenge, error) {
	challenges, err := z.Challenges(ctx)
	if err != nil {
		return nil, err
	}
	var match *Challenge
	for _, c := range challenges {
		if c.Type() == challengeType {
			if match != nil {
				return nil, &acmeerr.ProtocolError{Path: "challenges", Reason: fmt.Sprintf("multiple %s challenges", challengeType)}
			}
			match = c
		}
	}
	return match, nil
}

// Deactivate sends {"status": "deactivated"} to the authorization URL.
func (z *Authorization) Deactivate(ctx context.Context) error {
	b := acmejson.NewBuilder().Put("status", "deactivated")
	payload, err := b.Bytes()
	if err != nil {
		return err
	}
	data, meta, err := z.login().signedRequest(ctx, z.URL(), payload)
	if err != nil {
		return err
	}
	z.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}
