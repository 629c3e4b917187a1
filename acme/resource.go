package acme

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
)

// resource is the base embedded by every JSON-backed ACME resource
// type (Account, Order, Authorization, Challenge); Certificate, whose
// body is PEM, keeps its own fields instead. It
// fetches its JSON representation from the server at most once per
// invalidate(), caching the result and the last-seen Retry-After hint.
type resource struct {
	login *Login
	url   string

	mu         sync.Mutex
	loaded     bool
	data       acmejson.Value
	retryAfter *time.Time
}

func newResource(login *Login, resourceURL string) resource {
	return resource{login: login, url: resourceURL}
}

// URL returns the resource's own location.
func (r *resource) URL() string { return r.url }

// fetch reads the resource's URL per the owning Session's POST-as-GET
// setting, replacing any cached data.
func (r *resource) fetch(ctx context.Context) error {
	data, meta, err := r.login.fetchResource(ctx, r.url)
	if err != nil {
		return &acmeerr.LazyLoadingError{Resource: r.url, Err: err}
	}
	r.mu.Lock()
	r.data = data
	r.loaded = true
	if meta != nil && meta.location != nil {
		r.url = meta.location.String()
	}
	if meta != nil {
		r.retryAfter = meta.retryAfter
	}
	r.mu.Unlock()
	return nil
}

// setJSON installs data obtained from a response to a different
// request (e.g. the newOrder response that created this resource),
// sparing the caller a redundant fetch.
func (r *resource) setJSON(data acmejson.Value, location *url.URL, retryAfter *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	r.loaded = true
	if location != nil {
		r.url = location.String()
	}
	r.retryAfter = retryAfter
}

// invalidate discards cached data, forcing the next getJSON to
// re-fetch.
func (r *resource) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.data = acmejson.Value{}
}

// getJSON returns the cached representation, fetching it first if
// this resource has never been loaded.
func (r *resource) getJSON(ctx context.Context) (acmejson.Value, error) {
	r.mu.Lock()
	loaded := r.loaded
	r.mu.Unlock()
	if !loaded {
		if err := r.fetch(ctx); err != nil {
			return acmejson.Value{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, nil
}

// RetryAfter returns the Retry-After hint from the most recent fetch,
// if any.
func (r *resource) RetryAfter() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retryAfter == nil {
		return time.Time{}, false
	}
	return *r.retryAfter, true
}
