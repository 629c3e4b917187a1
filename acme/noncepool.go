package acme

import (
	"context"
	"sync"

	"github.com/cpu/acmecore/acme/connector"
)

// noncePool is a lock-guarded LIFO stash of anti-replay nonces, refilling
// itself over HTTP HEAD against the directory's newNonce endpoint when
// empty. It implements connector.NoncePool and is safe for concurrent
// use so a Session can be shared across goroutines issuing requests at
// the same time.
type noncePool struct {
	mu           sync.Mutex
	stash        []string
	newNonceURL  string
	conn         *connector.Connection
}

func newNoncePool(conn *connector.Connection, newNonceURL string) *noncePool {
	return &noncePool{conn: conn, newNonceURL: newNonceURL}
}

// Nonce pops a stashed nonce, or fetches one over HEAD when the stash is
// empty.
func (p *noncePool) Nonce(ctx context.Context) (string, error) {
	p.mu.Lock()
	if n := len(p.stash); n > 0 {
		nonce := p.stash[n-1]
		p.stash = p.stash[:n-1]
		p.mu.Unlock()
		return nonce, nil
	}
	p.mu.Unlock()

	return p.conn.HeadNonce(ctx, p.newNonceURL)
}

// Store deposits a freshly observed Replay-Nonce for a future caller.
func (p *noncePool) Store(nonce string) {
	if nonce == "" {
		return
	}
	p.mu.Lock()
	p.stash = append(p.stash, nonce)
	p.mu.Unlock()
}
