package acme

import (
	"context"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
)

var challengeTargetDone = []acmejson.Status{acmejson.StatusValid, acmejson.StatusInvalid}

// Challenge is the lazily-loaded base challenge resource common to
// every challenge type. Type-specific helpers (record names, digests,
// validation certificates) are exposed by the wrapper types in
// challenge_variants.go and dnspersist.go, each embedding *Challenge.
type Challenge struct {
	base pollable
	typ  string
}

// newChallenge builds a Challenge already populated from a challenge
// object embedded in an authorization's "challenges" array, matching
// every standard type shares the same resource shape, so a single
// constructor suffices and type-specific helpers (AsHTTP01, etc.)
// narrow the result on demand.
func newChallenge(login *Login, data acmejson.Value) *Challenge {
	typ, _ := data.Get("type").AsString()
	u, _ := data.Get("url").AsString()
	c := &Challenge{typ: typ, base: pollable{newResource(login, u)}}
	c.base.setJSON(data, nil, nil)
	return c
}

func (c *Challenge) login() *Login { return c.base.login }

// URL returns the challenge's own resource location.
func (c *Challenge) URL() string { return c.base.URL() }

// Type returns the challenge's "type" field, as captured at
// construction time (it does not change across the challenge's
// lifetime).
func (c *Challenge) Type() string { return c.typ }

// Status returns the challenge's current status.
func (c *Challenge) Status(ctx context.Context) (acmejson.Status, error) {
	data, err := c.base.getJSON(ctx)
	if err != nil {
		return acmejson.StatusUnknown, err
	}
	return data.Get("status").AsStatus()
}

// Token returns the challenge's "token" field. KeyAuthorization, and so
// every type's Trigger or record helper that uses it (email-reply-00's
// Trigger included), reads this field.
func (c *Challenge) Token(ctx context.Context) (string, error) {
	data, err := c.base.getJSON(ctx)
	if err != nil {
		return "", err
	}
	return data.Get("token").AsString()
}

// Validated returns the challenge's "validated" instant, if the server
// has recorded one.
func (c *Challenge) Validated(ctx context.Context) (time.Time, bool, error) {
	data, err := c.base.getJSON(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	v := data.Get("validated")
	if !v.IsPresent() {
		return time.Time{}, false, nil
	}
	t, err := v.AsInstant()
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Error returns the challenge's error Problem, if the server attached
// one after a failed validation attempt.
func (c *Challenge) Error(ctx context.Context) (*acmeerr.Problem, error) {
	data, err := c.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	v := data.Get("error")
	if !v.IsPresent() {
		return nil, nil
	}
	return v.AsProblem(nil)
}

// KeyAuthorization computes this challenge's key authorization, binding
// its token to the owning Login's account key (RFC 8555 section 8.1).
func (c *Challenge) KeyAuthorization(ctx context.Context) (string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}
	return c.login().keyAuthorization(token)
}

// trigger sends payload (built per challenge type) as a signed POST to
// the challenge URL, asking the server to begin validation.
func (c *Challenge) trigger(ctx context.Context, payload []byte) error {
	data, meta, err := c.login().signedRequest(ctx, c.URL(), payload)
	if err != nil {
		return err
	}
	c.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}

// Trigger asks the server to begin validating this challenge, sending
// an empty JSON object body ({}) as required for every standard
// challenge type except email-reply-00 (see EmailReply00Challenge.Trigger).
func (c *Challenge) Trigger(ctx context.Context) error {
	return c.trigger(ctx, []byte("{}"))
}

// WaitForCompletion polls until the challenge reaches status valid or
// invalid.
func (c *Challenge) WaitForCompletion(ctx context.Context, timeout time.Duration) (acmejson.Status, error) {
	return c.base.waitForStatus(ctx, challengeTargetDone, nil, timeout)
}
