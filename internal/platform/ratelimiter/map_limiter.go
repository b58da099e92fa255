// Package ratelimiter keeps one token bucket per client at the RPC edge.
// Clients are either a connection identity (token or remote address) or a
// ledger principal that signed the call.
package ratelimiter

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angganurf/wunderland-sol/pkg/models"
)

const sweepEvery = 512

// MapLimiter applies a token bucket per client key and evicts clients idle
// for longer than idleTTL. A nil *MapLimiter allows everything.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	clients map[string]*bucket
	calls   uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns nil when rps or burst is not positive.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		clients: make(map[string]*bucket),
	}
}

// Allow consumes one token for client at now. Blank client keys are not
// limited.
func (l *MapLimiter) Allow(client string, now time.Time) bool {
	ok, _ := l.Check(client, now)
	return ok
}

// Check is Allow that also reports how long client has to wait for its next
// token when refused. A refused call consumes nothing.
func (l *MapLimiter) Check(client string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	r := b.limiter.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// ClientKey names the connection a request arrived on: its RPC token when it
// carries one, otherwise the remote host.
func ClientKey(token, remoteAddr string) string {
	if token = strings.TrimSpace(token); token != "" {
		return "token:" + token
	}
	remote := strings.TrimSpace(remoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

// PrincipalKey names the bucket of a wallet or agent that signed a call.
func PrincipalKey(principal models.Key) string {
	if principal.IsZero() {
		return ""
	}
	return "principal:" + principal.String()
}

// Clients reports how many client buckets are currently tracked.
func (l *MapLimiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *MapLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
}
