package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// ExecutionCache makes session executions idempotent. It remembers the
// transaction hash of each successfully submitted multicall for a TTL and
// collapses concurrent submissions of the same multicall into one, so a
// relayer retrying after a timeout does not spend the grant twice.
type ExecutionCache struct {
	mu       sync.Mutex
	results  map[string]string
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewExecutionCache creates a cache keeping transaction hashes for ttl
func NewExecutionCache(ttl time.Duration) *ExecutionCache {
	return &ExecutionCache{
		results:  make(map[string]string),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// ExecutionKey identifies a multicall by the SHA-256 of its JSON encoding.
// The session_execute call carries the grant signature, so identical user calls
// under different grants get different keys.
func ExecutionKey(calls []starknet.Call) (string, error) {
	raw, err := json.Marshal(calls)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:]), nil
}

// ExecutionStatus is the outcome of looking up a key
type ExecutionStatus int

const (
	// ExecutionNotFound means the caller now owns the key and must Complete or Fail it.
	ExecutionNotFound ExecutionStatus = iota
	// ExecutionCached means the multicall was already submitted.
	ExecutionCached
	// ExecutionInFlight means another caller is submitting the multicall.
	ExecutionInFlight
)

// CheckAndMark looks key up and, when it is unknown, marks it in flight.
// The returned channel is closed once the owner completes or fails the key.
func (c *ExecutionCache) CheckAndMark(key string) (ExecutionStatus, string, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if txHash, ok := c.getLocked(key); ok {
		return ExecutionCached, txHash, nil
	}
	if done, ok := c.inFlight[key]; ok {
		return ExecutionInFlight, "", done
	}

	done := make(chan struct{})
	c.inFlight[key] = done
	return ExecutionNotFound, "", done
}

// Wait blocks until the in-flight owner of key finishes. It reports false when
// the owner failed, in which case the caller may retry.
func (c *ExecutionCache) Wait(ctx context.Context, key string, done chan struct{}) (string, bool, error) {
	select {
	case <-done:
		txHash, ok := c.Get(key)
		return txHash, ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Get returns the cached transaction hash for key
func (c *ExecutionCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

// Complete records txHash for key and releases waiters
func (c *ExecutionCache) Complete(key, txHash string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[key] = txHash
	c.expiry[key] = c.now().Add(c.ttl)
	delete(c.inFlight, key)
	close(done)

	c.cleanupExpiredLocked()
}

// Fail releases key without caching anything so that it can be retried
func (c *ExecutionCache) Fail(key string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, key)
	close(done)
}

func (c *ExecutionCache) getLocked(key string) (string, bool) {
	expiry, ok := c.expiry[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(expiry) {
		delete(c.results, key)
		delete(c.expiry, key)
		return "", false
	}
	return c.results[key], true
}

// cleanupExpiredLocked must be called with mu held.
func (c *ExecutionCache) cleanupExpiredLocked() {
	now := c.now()
	for key, expiry := range c.expiry {
		if !now.Before(expiry) {
			delete(c.results, key)
			delete(c.expiry, key)
		}
	}
}
