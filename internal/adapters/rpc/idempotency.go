package rpc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	idempotencyHeader      = "X-Ledger-Idempotency-Key"
	defaultIdempotencyTTL  = 10 * time.Minute
	defaultIdempotencySize = 4096
)

type idempotencyEntry struct {
	requestHash string
	response    rpcResponse
}

// idempotencyCache replays the first response stored under a key for as long
// as the entry lives. Requests sharing a key while the first is still running
// wait for it and receive its response. A nil cache remembers nothing.
type idempotencyCache struct {
	entries  *expirable.LRU[string, idempotencyEntry]
	inflight singleflight.Group
}

func newIdempotencyCache(size int, ttl time.Duration) *idempotencyCache {
	if size <= 0 {
		size = defaultIdempotencySize
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &idempotencyCache{entries: expirable.NewLRU[string, idempotencyEntry](size, nil, ttl)}
}

// do runs exec at most once per key among concurrent callers and remembers
// its response unless it failed in a retryable way. replayed reports that the
// response came from another request; conflict reports that the key was
// already bound to a different request.
func (c *idempotencyCache) do(key, reqHash string, exec func() rpcResponse) (resp rpcResponse, replayed, conflict bool) {
	if c == nil || key == "" {
		return exec(), false, false
	}
	ran := false
	v, _, _ := c.inflight.Do(key, func() (any, error) {
		if entry, ok := c.entries.Get(key); ok {
			return entry, nil
		}
		ran = true
		entry := idempotencyEntry{requestHash: reqHash, response: exec()}
		if !retryable(entry.response.Error) {
			c.entries.Add(key, entry)
		}
		return entry, nil
	})
	entry := v.(idempotencyEntry)
	if entry.requestHash != reqHash {
		return rpcResponse{}, false, true
	}
	return entry.response, !ran, false
}

func idempotencyKey(raw, token string) string {
	key := strings.TrimSpace(raw)
	if key == "" {
		return ""
	}
	return token + "|" + key
}

func requestHash(req rpcRequest) string {
	payload := struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}{
		Method: req.Method,
		Params: req.Params,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(req.Method + "|" + string(req.Params))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
