package tutorapi

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"sync"
)

// DeduplicationEntry is an in-flight request shared between callers.
type DeduplicationEntry struct {
	result  RawResponse
	done    chan struct{}
	mu      sync.Mutex
	waiters int
}

// DeduplicationTracker tracks in-flight requests to coalesce duplicates.
type DeduplicationTracker struct {
	mu      sync.Mutex
	entries map[string]*DeduplicationEntry
}

// NewDeduplicationTracker returns an in-memory de-duplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*DeduplicationEntry),
	}
}

// GetOrCreateEntry returns an existing entry (owner=false) or creates a new
// one that the caller must Complete (owner=true).
func (dt *DeduplicationTracker) GetOrCreateEntry(key string) (*DeduplicationEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &DeduplicationEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	dt.entries[key] = entry
	return entry, true
}

// Complete publishes the owner's result to every waiter and forgets the key,
// so the next identical request goes to the network again.
func (dt *DeduplicationTracker) Complete(key string, result RawResponse) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	delete(dt.entries, key)
	dt.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.result = result
	entry.mu.Unlock()
	close(entry.done)
}

// InFlight returns the number of keys currently being executed.
func (dt *DeduplicationTracker) InFlight() int {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return len(dt.entries)
}

// Wait blocks until the owning request completes or ctx is done.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (RawResponse, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.result, nil
	case <-ctx.Done():
		return RawResponse{}, ctx.Err()
	}
}

// Waiters reports how many callers share this entry, the owner included.
func (entry *DeduplicationEntry) Waiters() int {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.waiters
}

// DeduplicationCondition decides whether a request may be coalesced.
type DeduplicationCondition func(method, endpoint string) bool

// DefaultDeduplicationCondition coalesces every request; the key already
// includes method and body.
func DefaultDeduplicationCondition(method, endpoint string) bool {
	return true
}

// DeduplicationKey builds the key identifying identical in-flight requests
// from method, endpoint and body.
func DeduplicationKey(method, endpoint string, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(endpoint))

	if len(body) > 0 {
		sum := sha256.Sum256(body)
		h.Write(sum[:])
	}

	return fmt.Sprintf("%x", h.Sum64())
}
