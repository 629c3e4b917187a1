package acme

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"

	"github.com/cpu/acmecore/acme/acmejson"
)

// AccountBuilder fluently materializes a newAccount request.
type AccountBuilder struct {
	session                 *Session
	key                     crypto.Signer
	contacts                []string
	termsOfServiceAgreed    bool
	onlyReturnExisting      bool
	externalAccountBindingJ []byte
}

// NewAccountBuilder starts building a newAccount request signed by key.
func (s *Session) NewAccountBuilder(key crypto.Signer) *AccountBuilder {
	return &AccountBuilder{session: s, key: key}
}

// AddContact appends a contact URI (e.g. "mailto:admin@example.com").
func (b *AccountBuilder) AddContact(contact string) *AccountBuilder {
	b.contacts = append(b.contacts, contact)
	return b
}

// AgreeToTermsOfService sets the termsOfServiceAgreed flag.
func (b *AccountBuilder) AgreeToTermsOfService() *AccountBuilder {
	b.termsOfServiceAgreed = true
	return b
}

// OnlyReturnExisting sets onlyReturnExisting, asking the server to
// return an existing account for this key rather than create a new
// one, failing with accountDoesNotExist if there isn't one.
func (b *AccountBuilder) OnlyReturnExisting() *AccountBuilder {
	b.onlyReturnExisting = true
	return b
}

// WithExternalAccountBinding attaches a pre-computed externalAccountBinding
// JWS (built by the caller against the CA's MAC key, per RFC 8555
// section 7.3.4); this module does not itself manage EAB MAC keys.
func (b *AccountBuilder) WithExternalAccountBinding(jws []byte) *AccountBuilder {
	b.externalAccountBindingJ = jws
	return b
}

// Create submits the newAccount request and returns a Login bound to
// the created (or found, if OnlyReturnExisting) account, along with the
// Account resource already populated from the server's response.
func (b *AccountBuilder) Create(ctx context.Context) (*Login, *Account, error) {
	newAccountURL, err := b.session.endpoint(ctx, endpointNewAccount)
	if err != nil {
		return nil, nil, err
	}

	body := acmejson.NewBuilder()
	if len(b.contacts) > 0 {
		raw, err := json.Marshal(b.contacts)
		if err != nil {
			return nil, nil, err
		}
		body.PutRaw("contact", raw)
	}
	if b.termsOfServiceAgreed {
		body.Put("termsOfServiceAgreed", true)
	}
	if b.onlyReturnExisting {
		body.Put("onlyReturnExisting", true)
	}
	if b.externalAccountBindingJ != nil {
		body.PutRaw("externalAccountBinding", b.externalAccountBindingJ)
	}

	payload, err := body.Bytes()
	if err != nil {
		return nil, nil, fmt.Errorf("acme: building newAccount payload: %w", err)
	}

	pool, err := b.session.noncePool(ctx)
	if err != nil {
		return nil, nil, err
	}
	resp, err := b.session.conn.SignedRequest(ctx, newAccountURL, payload, b.key, "", true, pool)
	if err != nil {
		return nil, nil, err
	}
	if resp.Location == nil {
		return nil, nil, fmt.Errorf("acme: newAccount response had no Location header")
	}

	login := b.session.Login(resp.Location.String(), b.key)
	account := &Account{base: newResource(login, resp.Location.String())}
	account.base.setJSON(resp.JSON, resp.Location, resp.RetryAfter)
	return login, account, nil
}
