package acme

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
)

// orderTargetReady and orderTargetDone are the waitFor* target status
// sets for an order's two meaningful wait points: becoming ready to
// finalize, and reaching a terminal outcome after finalization.
var (
	orderTargetReady = []acmejson.Status{acmejson.StatusReady}
	orderTargetDone  = []acmejson.Status{acmejson.StatusValid, acmejson.StatusInvalid}
)

// Order is the lazily-loaded certificate order resource.
type Order struct {
	base pollable
}

func (o *Order) login() *Login { return o.base.login }

// URL returns the order's own resource location.
func (o *Order) URL() string { return o.base.URL() }

// Status returns the order's current status.
func (o *Order) Status(ctx context.Context) (acmejson.Status, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return acmejson.StatusUnknown, err
	}
	return data.Get("status").AsStatus()
}

// Identifiers returns the order's requested identifiers.
func (o *Order) Identifiers(ctx context.Context) ([]acmejson.Identifier, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := data.Get("identifiers").AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]acmejson.Identifier, 0, len(arr))
	for _, v := range arr {
		ident, err := v.AsIdentifier()
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, nil
}

// Authorizations returns the order's authorization URLs, each wrapped
// as a lazily-loaded Authorization handle bound to this order's Login.
func (o *Order) Authorizations(ctx context.Context) ([]*Authorization, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := data.Get("authorizations").AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]*Authorization, 0, len(arr))
	for _, v := range arr {
		u, err := v.AsURL()
		if err != nil {
			return nil, err
		}
		out = append(out, &Authorization{base: pollable{newResource(o.login(), u.String())}})
	}
	return out, nil
}

// FinalizeURL returns the order's finalize endpoint.
func (o *Order) FinalizeURL(ctx context.Context) (string, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return "", err
	}
	return data.Get("finalize").AsString()
}

// CertificateURL returns the order's certificate download URL, empty
// until the order reaches status valid.
func (o *Order) CertificateURL(ctx context.Context) (string, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return "", err
	}
	v := data.Get("certificate")
	if !v.IsPresent() {
		return "", nil
	}
	return v.AsString()
}

// Error returns the order's error Problem, if the server has attached
// one (e.g. after a failed finalization).
func (o *Order) Error(ctx context.Context) (*acmeerr.Problem, error) {
	data, err := o.base.getJSON(ctx)
	if err != nil {
		return nil, err
	}
	v := data.Get("error")
	if !v.IsPresent() {
		return nil, nil
	}
	return v.AsProblem(nil)
}

// Execute submits der (a DER-encoded PKCS#10 CSR) to the order's
// finalize URL, moving the order to status processing.
func (o *Order) Execute(ctx context.Context, der []byte) error {
	finalizeURL, err := o.FinalizeURL(ctx)
	if err != nil {
		return err
	}
	if finalizeURL == "" {
		return fmt.Errorf("acme: order has no finalize URL; is it ready?")
	}

	b := acmejson.NewBuilder().Put("csr", base64.RawURLEncoding.EncodeToString(der))
	payload, err := b.Bytes()
	if err != nil {
		return err
	}

	data, meta, err := o.login().signedRequest(ctx, finalizeURL, payload)
	if err != nil {
		return err
	}
	o.base.setJSON(data, meta.location, meta.retryAfter)
	return nil
}

// WaitUntilReady polls until the order reaches status ready or invalid.
func (o *Order) WaitUntilReady(ctx context.Context, timeout time.Duration) (acmejson.Status, error) {
	return o.base.waitForStatus(ctx, orderTargetReady, []acmejson.Status{acmejson.StatusInvalid}, timeout)
}

// WaitForCompletion polls until the order reaches status valid or
// invalid, the terminal outcomes of Execute.
func (o *Order) WaitForCompletion(ctx context.Context, timeout time.Duration) (acmejson.Status, error) {
	return o.base.waitForStatus(ctx, orderTargetDone, nil, timeout)
}

// GetCertificate downloads the issued certificate chain once the order
// is valid.
func (o *Order) GetCertificate(ctx context.Context) (*Certificate, error) {
	certURL, err := o.CertificateURL(ctx)
	if err != nil {
		return nil, err
	}
	if certURL == "" {
		return nil, fmt.Errorf("acme: order has no certificate URL; is it valid?")
	}
	return &Certificate{login: o.login(), url: certURL}, nil
}
