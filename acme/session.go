// Package acme implements a client-side engine for the Automatic
// Certificate Management Environment protocol (RFC 8555) and its
// extensions: tls-alpn-01 (RFC 8737), email-reply-00 (RFC 8823) and the
// dns-account-01/dns-persist-01 validation methods.
//
// A Session binds a directory URL and an HTTP transport together; a
// Login binds a Session to one account key pair. Resources (Account,
// Order, Authorization, Challenge, Certificate) are obtained from a
// Login and lazily fetch their representation (JSON, or a PEM chain for
// Certificate) from the server on first access.
package acme

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cpu/acmecore/acme/acmejson"
	"github.com/cpu/acmecore/acme/connector"
	"go.uber.org/zap"
)

// Session is the top-level handle for talking to one ACME server. It
// caches the server's directory resource after the first successful
// fetch and owns the nonce pool shared by every Login created from it,
// delegating the actual HTTP mechanics to acme/connector.
type Session struct {
	directoryURL     string
	conn             *connector.Connection
	log              *zap.Logger
	postAsGetEnabled bool

	mu             sync.Mutex
	directory      *Directory
	nonces         *noncePool
	challengeCtors map[string]challengeConstructor
}

// challengeConstructor builds a Challenge resource from its raw JSON
// object, one entry of an authorization's "challenges" array.
type challengeConstructor func(login *Login, data acmejson.Value) *Challenge

// defaultChallengeConstructors seeds a new Session's challenge-type
// registry. Every standard and draft challenge type shares the same
// resource shape on the wire, so one constructor serves them all;
// AsHTTP01/AsDNS01/etc. narrow the result to a typed wrapper on demand.
// RegisterChallengeConstructor lets a caller override an entry (or add
// one for a type this package doesn't know about yet).
func defaultChallengeConstructors() map[string]challengeConstructor {
	return map[string]challengeConstructor{
		ChallengeTypeHTTP01:       newChallenge,
		ChallengeTypeDNS01:        newChallenge,
		ChallengeTypeDNSAccount01: newChallenge,
		ChallengeTypeDNSPersist01: newChallenge,
		ChallengeTypeTLSALPN01:    newChallenge,
		ChallengeTypeEmailReply00: newChallenge,
	}
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithHTTPClient overrides the default *http.Client used for all
// requests issued by the Session.
func WithHTTPClient(doer connector.Doer) SessionOption {
	return func(s *Session) { s.conn.Doer = doer }
}

// WithAcceptLanguage sets the Accept-Language header sent on every
// request, used by the server to localize problem document "detail"
// strings.
func WithAcceptLanguage(lang string) SessionOption {
	return func(s *Session) { s.conn.AcceptLanguage = lang }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) SessionOption {
	return func(s *Session) { s.conn.UserAgent = ua }
}

// WithLogger installs a structured logger; the zero value logs nothing.
func WithLogger(log *zap.Logger) SessionOption {
	return func(s *Session) {
		if log == nil {
			log = zap.NewNop()
		}
		s.log = log
	}
}

// WithPostAsGet toggles whether lazily-loaded resources fetch
// themselves with an authenticated POST-as-GET (the default) or a
// plain GET.
func WithPostAsGet(enabled bool) SessionOption {
	return func(s *Session) { s.postAsGetEnabled = enabled }
}

// NewSession constructs a Session bound to directoryURL. The directory
// itself is not fetched until first needed (Directory, or any operation
// that requires a directory endpoint).
func NewSession(directoryURL string, opts ...SessionOption) *Session {
	s := &Session{
		directoryURL:     directoryURL,
		conn:             connector.New(http.DefaultClient, "", ""),
		log:              zap.NewNop(),
		postAsGetEnabled: true,
		challengeCtors:   defaultChallengeConstructors(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionConfig configures a Session up front, validated eagerly by
// NewSessionFromConfig rather than discovered piecemeal the way
// functional options would. Prefer this over NewSession when the
// directory URL, CA trust roots or timeouts come from untrusted
// configuration (a CLI flag, a config file) that should fail fast
// rather than surface as a confusing first-request error.
type SessionConfig struct {
	// DirectoryURL is the ACME server's directory endpoint. Mandatory,
	// must parse as an absolute URL.
	DirectoryURL string
	// CACertPath optionally names a file of one or more PEM encoded CA
	// certificates to trust for HTTPS connections to the server,
	// instead of the system roots. Useful for pointing at a local test
	// CA (e.g. Pebble's minica root).
	CACertPath string
	// AcceptLanguage sets the Accept-Language header sent on every
	// request, used by the server to localize problem document detail
	// strings.
	AcceptLanguage string
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// RequestTimeout bounds every individual HTTP round trip made by
	// the underlying *http.Client. Zero means no timeout.
	RequestTimeout time.Duration
	// POSTAsGET selects POST-as-GET for authenticated resource reads,
	// the RFC 8555 idiom, over plain unauthenticated GET. Defaults to
	// true when nil; set to a false pointer to fetch Orders,
	// Authorizations and Challenges with plain GET instead.
	POSTAsGET *bool
	// Logger installs a structured logger; nil logs nothing.
	Logger *zap.Logger
}

// normalize trims whitespace, validates mandatory fields and resolves
// defaults, mutating config in place.
func (config *SessionConfig) normalize() error {
	config.DirectoryURL = strings.TrimSpace(config.DirectoryURL)
	config.CACertPath = strings.TrimSpace(config.CACertPath)

	if config.DirectoryURL == "" {
		return fmt.Errorf("acme: SessionConfig.DirectoryURL must not be empty")
	}
	u, err := url.Parse(config.DirectoryURL)
	if err != nil {
		return fmt.Errorf("acme: SessionConfig.DirectoryURL invalid: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("acme: SessionConfig.DirectoryURL must be an absolute URL")
	}
	if config.RequestTimeout < 0 {
		return fmt.Errorf("acme: SessionConfig.RequestTimeout must not be negative")
	}
	if config.POSTAsGET == nil {
		enabled := true
		config.POSTAsGET = &enabled
	}
	return nil
}

// NewSessionFromConfig validates config and constructs a Session from
// it, failing fast on a bad directory URL, an unreadable CA bundle or a
// negative timeout instead of deferring the error to the first request.
func NewSessionFromConfig(config SessionConfig) (*Session, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	var rootCAs *x509.CertPool
	if config.CACertPath != "" {
		pemBundle, err := os.ReadFile(config.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("acme: reading SessionConfig.CACertPath: %w", err)
		}
		rootCAs = x509.NewCertPool()
		if !rootCAs.AppendCertsFromPEM(pemBundle) {
			return nil, fmt.Errorf("acme: SessionConfig.CACertPath %q contained no usable PEM certificates", config.CACertPath)
		}
	}

	httpClient := &http.Client{
		Timeout: config.RequestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
		},
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Session{
		directoryURL:     config.DirectoryURL,
		conn:             connector.New(httpClient, config.AcceptLanguage, config.UserAgent),
		log:              log,
		postAsGetEnabled: *config.POSTAsGET,
		challengeCtors:   defaultChallengeConstructors(),
	}, nil
}

// RegisterChallengeConstructor overrides (or adds) the constructor used
// for challenges whose "type" field equals typ. createChallenge
// consults this registry; an unregistered type falls back to the
// generic Challenge constructor.
func (s *Session) RegisterChallengeConstructor(typ string, ctor func(login *Login, data acmejson.Value) *Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challengeCtors[typ] = ctor
}

// createChallenge looks up data's "type" field in the Session's
// challenge-type registry and invokes the matching constructor,
// falling back to the generic Challenge constructor for an
// unrecognized type.
func (s *Session) createChallenge(login *Login, data acmejson.Value) *Challenge {
	typ, _ := data.Get("type").AsString()
	s.mu.Lock()
	ctor, ok := s.challengeCtors[typ]
	s.mu.Unlock()
	if !ok {
		return newChallenge(login, data)
	}
	return ctor(login, data)
}

// Directory fetches (if not already cached) and returns the server's
// directory resource.
func (s *Session) Directory(ctx context.Context) (*Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directoryLocked(ctx)
}

func (s *Session) directoryLocked(ctx context.Context) (*Directory, error) {
	if s.directory != nil {
		return s.directory, nil
	}
	s.log.Debug("fetching directory", zap.String("url", s.directoryURL))
	resp, err := s.conn.Get(ctx, s.directoryURL)
	if err != nil {
		return nil, fmt.Errorf("acme: fetching directory: %w", err)
	}
	raw, ok := resp.JSON.Raw().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("acme: directory response was not a JSON object")
	}
	dir := newDirectory(raw)
	s.directory = dir

	if newNonceURL, err := dir.URL(endpointNewNonce); err == nil {
		s.nonces = newNoncePool(s.conn, newNonceURL)
	}
	return dir, nil
}

// ResetDirectory discards the cached directory resource, forcing the
// next call to Directory (or any operation needing one) to re-fetch it.
// Useful after a server migrates an endpoint during a long-lived
// process.
func (s *Session) ResetDirectory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = nil
	s.nonces = nil
}

// endpoint resolves a directory endpoint by name, fetching the
// directory first if needed.
func (s *Session) endpoint(ctx context.Context, name string) (string, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return "", err
	}
	return dir.URL(name)
}

// noncePool returns the session's nonce pool, fetching the directory
// first if it has not been loaded yet.
func (s *Session) noncePool(ctx context.Context) (*noncePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonces != nil {
		return s.nonces, nil
	}
	if _, err := s.directoryLocked(ctx); err != nil {
		return nil, err
	}
	if s.nonces == nil {
		return nil, fmt.Errorf("acme: server directory has no newNonce endpoint")
	}
	return s.nonces, nil
}

// usesPostAsGet reports whether lazily-loaded resources should fetch
// themselves with an authenticated POST-as-GET (the default) rather
// than a plain GET.
func (s *Session) usesPostAsGet() bool { return s.postAsGetEnabled }

// Login binds this session to an account key pair and URL, without any
// server round trip. Use NewAccountBuilder to create a new account and
// obtain a verified Login from the server's response instead.
func (s *Session) Login(accountURL string, key crypto.Signer) *Login {
	return &Login{session: s, accountURL: accountURL, key: key}
}

// postAsGet is a convenience wrapper tying together the session's
// connector and nonce pool for resources that only need a Login's key
// material, not a full Login value.
func (s *Session) postAsGet(ctx context.Context, reqURL string, key crypto.Signer, keyID string) (*connector.Response, error) {
	pool, err := s.noncePool(ctx)
	if err != nil {
		return nil, err
	}
	return s.conn.PostAsGet(ctx, reqURL, key, keyID, pool)
}

func (s *Session) signedRequest(ctx context.Context, reqURL string, payload []byte, key crypto.Signer, keyID string, embedJWK bool) (*connector.Response, error) {
	pool, err := s.noncePool(ctx)
	if err != nil {
		return nil, err
	}
	return s.conn.SignedRequest(ctx, reqURL, payload, key, keyID, embedJWK, pool)
}
