// Package connector implements the Connection component: a single HTTP
// round-trip unit that handles nonce management, JOSE signing,
// Retry-After/Link/Location headers, problem-document parsing and
// content-type gating for one ACME request.
package connector

import (
	"bytes"
	"context"
	"crypto"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/jose"
)

// Doer is the HTTP client contract a Connection delegates to: given
// a request, return a response or an error. *http.Client satisfies it
// directly; callers may substitute instrumented or test transports.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// NoncePool is the nonce supplier/sink a Connection needs: Nonce pops the
// next usable nonce (fetching one over HEAD if the pool is empty), Store
// deposits a freshly observed Replay-Nonce for the next caller.
type NoncePool interface {
	Nonce(ctx context.Context) (string, error)
	Store(nonce string)
}

// Connection is an HTTP round-trip unit. Each method call performs one
// round trip and closes its response before returning. A Connection
// holds only configuration and no per-request state, so it is not
// single-use: a Session reuses one Connection for all its requests.
type Connection struct {
	Doer           Doer
	AcceptLanguage string
	UserAgent      string
}

// New builds a Connection over doer. acceptLanguage and userAgent may be
// empty, in which case no header (acceptLanguage) or a generic default
// (userAgent) is sent.
func New(doer Doer, acceptLanguage, userAgent string) *Connection {
	return &Connection{Doer: doer, AcceptLanguage: acceptLanguage, UserAgent: userAgent}
}

// Response is the parsed result of one round trip.
type Response struct {
	StatusCode   int
	Header       http.Header
	Body         []byte
	JSON         acmejson.Value
	Location     *url.URL
	RetryAfter   *time.Time
	Nonce        string
	AlternateURL []*url.URL
}

const maxBadNonceAttempts = 10

// staticNonceSource adapts an already-popped nonce value to jose.NonceSource
// so go-jose embeds it without calling back into the pool.
type staticNonceSource string

func (s staticNonceSource) Nonce() (string, error) { return string(s), nil }

// SignedRequest performs a signed POST to url with the given payload,
// retrying when the server reports urn:ietf:params:acme:error:badNonce,
// up to maxBadNonceAttempts total attempts before giving up.
func (c *Connection) SignedRequest(ctx context.Context, reqURL string, payload []byte, signer crypto.Signer, keyID string, embedJWK bool, nonces NoncePool) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxBadNonceAttempts; attempt++ {
		nonce, err := nonces.Nonce(ctx)
		if err != nil {
			return nil, &acmeerr.NetworkError{Op: "acquire nonce", Err: err}
		}

		signed, err := jose.Sign(jose.SignRequest{
			URL:      reqURL,
			Payload:  payload,
			Signer:   signer,
			EmbedJWK: embedJWK,
			KeyID:    keyID,
			Nonces:   staticNonceSource(nonce),
		})
		if err != nil {
			return nil, fmt.Errorf("acme: signing request: %w", err)
		}

		resp, err := c.doRequest(ctx, http.MethodPost, reqURL, "application/jose+json", signed.Serialized)
		if err != nil {
			return nil, err
		}
		if resp.Nonce != "" {
			nonces.Store(resp.Nonce)
		}

		result, reqErr := interpretResponse(resp, reqURL)
		if isBadNonce(reqErr) {
			lastErr = &acmeerr.ServerError{Problem: reqErr.(*badNonceError).Problem}
			continue
		}
		return result, reqErr
	}
	return nil, fmt.Errorf("acme: exhausted %d bad-nonce retries: %w", maxBadNonceAttempts, lastErr)
}

// PostAsGet performs a POST-as-GET (signed request with an empty
// payload), the RFC 8555 idiom for authenticated reads.
func (c *Connection) PostAsGet(ctx context.Context, reqURL string, signer crypto.Signer, keyID string, nonces NoncePool) (*Response, error) {
	return c.SignedRequest(ctx, reqURL, nil, signer, keyID, false, nonces)
}

// Get performs an unsigned GET, used for the directory resource and for
// resource reads when a Session has POST-as-GET turned off.
func (c *Connection) Get(ctx context.Context, reqURL string) (*Response, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, reqURL, "", nil)
	if err != nil {
		return nil, err
	}
	return interpretResponse(resp, reqURL)
}

// HeadNonce performs an HTTP HEAD against newNonceURL and returns the
// Replay-Nonce header value, failing if the server omits it.
func (c *Connection) HeadNonce(ctx context.Context, newNonceURL string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodHead, newNonceURL, "", nil)
	if err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", &acmeerr.ProtocolError{Path: "newNonce", Reason: "response had no Replay-Nonce header"}
	}
	return resp.Nonce, nil
}

type rawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Nonce      string
}

func (c *Connection) doRequest(ctx context.Context, method, reqURL, contentType string, body []byte) (*rawResponse, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, &acmeerr.NetworkError{Op: method + " " + reqURL, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.AcceptLanguage)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = "acmecore"
	}
	req.Header.Set("User-Agent", ua)

	httpResp, err := c.Doer.Do(req)
	if err != nil {
		return nil, &acmeerr.NetworkError{Op: method + " " + reqURL, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &acmeerr.NetworkError{Op: "reading response body", Err: err}
	}

	return &rawResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		Nonce:      httpResp.Header.Get("Replay-Nonce"),
	}, nil
}

// interpretResponse routes 2xx JSON/PEM bodies back to the caller, and
// translates 4xx/5xx outcomes into the acmeerr taxonomy.
func interpretResponse(resp *rawResponse, reqURL string) (*Response, error) {
	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Nonce:      resp.Nonce,
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		if u, err := url.Parse(loc); err == nil {
			out.Location = u
		}
	}
	if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra != nil {
		out.RetryAfter = ra
	}
	out.AlternateURL = parseAlternateLinks(resp.Header)

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		switch contentType {
		case "application/pem-certificate-chain":
			return out, nil
		case "application/json", "":
			if len(resp.Body) > 0 {
				v, err := acmejson.Parse(resp.Body)
				if err != nil {
					return nil, err
				}
				out.JSON = v
			}
			return out, nil
		default:
			// Some endpoints (e.g. HEAD newNonce) have no body at all; treat
			// an empty body permissively regardless of content type.
			if len(resp.Body) == 0 {
				return out, nil
			}
			return nil, &acmeerr.ProtocolError{Path: reqURL, Reason: "unexpected content type " + contentType}
		}
	case contentType == "application/problem+json":
		v, err := acmejson.Parse(resp.Body)
		if err != nil {
			return nil, err
		}
		problem, err := v.AsProblem(mustParseURL(reqURL))
		if err != nil {
			return nil, err
		}
		return out, problemToError(problem, out)
	case resp.StatusCode >= 500:
		return nil, &acmeerr.ServerError{Problem: &acmeerr.Problem{
			Type:   "about:blank",
			Detail: fmt.Sprintf("server returned HTTP %d", resp.StatusCode),
			Status: resp.StatusCode,
		}}
	default:
		return nil, &acmeerr.ProtocolError{Path: reqURL, Reason: fmt.Sprintf("unexpected HTTP status %d with content type %q", resp.StatusCode, contentType)}
	}
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

const (
	problemBadNonce           = "urn:ietf:params:acme:error:badNonce"
	problemRateLimited        = "urn:ietf:params:acme:error:rateLimited"
	problemUserActionRequired = "urn:ietf:params:acme:error:userActionRequired"
)

func problemToError(p *acmeerr.Problem, resp *Response) error {
	switch p.Type {
	case problemBadNonce:
		return &badNonceError{Problem: p}
	case problemRateLimited:
		err := &acmeerr.RateLimitedError{Problem: p}
		if resp.RetryAfter != nil {
			err.RetryAfter = *resp.RetryAfter
		}
		for _, link := range parseLinksByRel(resp.Header, "help") {
			err.Documents = append(err.Documents, link.String())
		}
		return err
	case problemUserActionRequired:
		return &acmeerr.UserActionRequiredError{
			Problem:  p,
			TOS:      firstLinkString(resp.Header, "terms-of-service"),
			Instance: p.Instance,
		}
	default:
		return &acmeerr.ServerError{Problem: p}
	}
}

// badNonceError is an internal marker: Connection.SignedRequest retries on
// it automatically and never returns it to a caller; once retries are
// exhausted, its Problem surfaces wrapped in an *acmeerr.ServerError.
type badNonceError struct {
	Problem *acmeerr.Problem
}

func (e *badNonceError) Error() string { return "acme: bad nonce: " + e.Problem.Error() }
func (e *badNonceError) Unwrap() error { return e.Problem }

func isBadNonce(err error) bool {
	_, ok := err.(*badNonceError)
	return ok
}

// parseRetryAfter supports both HTTP-date and delta-seconds forms.
func parseRetryAfter(value string) *time.Time {
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		t := time.Now().Add(time.Duration(seconds) * time.Second)
		return &t
	}
	if t, err := http.ParseTime(value); err == nil {
		return &t
	}
	return nil
}

// parseLinksByRel extracts all Link header URLs for the given rel value.
func parseLinksByRel(header http.Header, rel string) []*url.URL {
	var out []*url.URL
	for _, raw := range header.Values("Link") {
		u, gotRel, ok := parseOneLink(raw)
		if ok && gotRel == rel {
			out = append(out, u)
		}
	}
	return out
}

func firstLinkString(header http.Header, rel string) string {
	links := parseLinksByRel(header, rel)
	if len(links) == 0 {
		return ""
	}
	return links[0].String()
}

func parseAlternateLinks(header http.Header) []*url.URL {
	return parseLinksByRel(header, "alternate")
}

// parseOneLink parses a single RFC 8288 Link header value of the shape
// <url>; rel="name".
func parseOneLink(raw string) (*url.URL, string, bool) {
	parts := strings.Split(raw, ";")
	if len(parts) < 1 {
		return nil, "", false
	}
	urlPart := strings.TrimSpace(parts[0])
	if len(urlPart) < 2 || urlPart[0] != '<' || urlPart[len(urlPart)-1] != '>' {
		return nil, "", false
	}
	u, err := url.Parse(urlPart[1 : len(urlPart)-1])
	if err != nil {
		return nil, "", false
	}
	var rel string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "rel" {
			rel = strings.Trim(strings.TrimSpace(val), `"`)
		}
	}
	return u, rel, true
}
