package acme

import (
	"context"
	"fmt"
	"time"

	"github.com/cpu/acmecore/acme/acmejson"
)

// OrderBuilder fluently materializes a newOrder request, returned from
// Account.NewOrder.
type OrderBuilder struct {
	login       *Login
	identifiers []acmejson.Identifier
	notBefore   time.Time
	notAfter    time.Time
	profile     string
}

// AddDomain adds a "dns" identifier for domain.
func (b *OrderBuilder) AddDomain(domain string) *OrderBuilder {
	return b.AddIdentifier("dns", domain)
}

// AddIdentifier adds an arbitrary {type, value} identifier, e.g. "ip"
// for IP-address identifiers.
func (b *OrderBuilder) AddIdentifier(typ, value string) *OrderBuilder {
	b.identifiers = append(b.identifiers, acmejson.Identifier{Type: typ, Value: value})
	return b
}

// NotBefore sets the order's requested notBefore bound.
func (b *OrderBuilder) NotBefore(t time.Time) *OrderBuilder {
	b.notBefore = t
	return b
}

// NotAfter sets the order's requested notAfter bound.
func (b *OrderBuilder) NotAfter(t time.Time) *OrderBuilder {
	b.notAfter = t
	return b
}

// Profile selects a certificate profile (draft-ietf-acme-profiles) by
// name. The name is sent as given; it is not checked against the
// directory's meta.profiles.
func (b *OrderBuilder) Profile(profile string) *OrderBuilder {
	b.profile = profile
	return b
}

// Create submits the newOrder request and returns the created Order.
func (b *OrderBuilder) Create(ctx context.Context) (*Order, error) {
	if len(b.identifiers) == 0 {
		return nil, fmt.Errorf("acme: order must have at least one identifier")
	}

	newOrderURL, err := b.login.session.endpoint(ctx, endpointNewOrder)
	if err != nil {
		return nil, err
	}

	identsJSON := make([]map[string]string, len(b.identifiers))
	for i, ident := range b.identifiers {
		identsJSON[i] = map[string]string{"type": ident.Type, "value": ident.Value}
	}
	identBuilder := acmejson.FromAny(identsJSON)
	identBytes, err := identBuilder.MarshalJSON()
	if err != nil {
		return nil, err
	}

	body := acmejson.NewBuilder()
	body.PutRaw("identifiers", identBytes)
	if !b.notBefore.IsZero() {
		body.Put("notBefore", b.notBefore.Format(time.RFC3339))
	}
	if !b.notAfter.IsZero() {
		body.Put("notAfter", b.notAfter.Format(time.RFC3339))
	}
	body.PutIfNotEmpty("profile", b.profile)

	payload, err := body.Bytes()
	if err != nil {
		return nil, fmt.Errorf("acme: building newOrder payload: %w", err)
	}

	data, meta, err := b.login.signedRequest(ctx, newOrderURL, payload)
	if err != nil {
		return nil, err
	}

	order := &Order{base: pollable{newResource(b.login, "")}}
	order.base.setJSON(data, meta.location, meta.retryAfter)
	return order, nil
}
