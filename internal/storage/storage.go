// Package storage provides the pluggable state store behind the
// matchmaking engine: the waiting queue, the symmetric pair registry and
// user presence. Three backends implement the same contract (Redis,
// Postgres, in-memory) so the engine never knows which one it is on.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned once per-operation retries are exhausted.
// No raw backend error leaves this package.
var ErrUnavailable = errors.New("state store unavailable")

// StateStore is the contract the matchmaking engine requires. All
// operations may block on I/O. Callers serialize the queue/pair mutation
// sequence themselves (the engine is a single writer); each individual
// operation is still atomic within its backend, so the symmetric pair
// writes can never be observed half-done.
type StateStore interface {
	// Enqueue appends userID to the back of the waiting queue.
	Enqueue(ctx context.Context, userID string) error
	// DequeueSkipping pops the front of the queue, discarding expired
	// entries and any entry equal to selfID, until a distinct candidate
	// is found. Returns ok=false when the queue is exhausted.
	DequeueSkipping(ctx context.Context, selfID string) (string, bool, error)
	// RemoveFromQueue drops userID from the queue; no-op if absent.
	RemoveFromQueue(ctx context.Context, userID string) error
	// IsQueued reports whether userID has a live (unexpired) queue entry.
	IsQueued(ctx context.Context, userID string) (bool, error)
	// QueueDepth returns the number of live queue entries.
	QueueDepth(ctx context.Context) (int, error)

	// SetPair records the symmetric relation a<->b.
	SetPair(ctx context.Context, a, b string) error
	// GetPartner returns the partner of userID, if any.
	GetPartner(ctx context.Context, userID string) (string, bool, error)
	// ClearPair removes the pair userID belongs to, both sides, and
	// returns the former partner.
	ClearPair(ctx context.Context, userID string) (string, bool, error)
	// PairCount returns the number of live pairs.
	PairCount(ctx context.Context) (int, error)

	SetPresence(ctx context.Context, userID, state string) error
	GetPresence(ctx context.Context, userID string) (string, error)
}

// UserDirectory is implemented by backends that also keep the users
// table (the relational one). Transports use it to register a user on
// first contact.
type UserDirectory interface {
	EnsureUser(ctx context.Context, userID, displayName string) error
}

const (
	retryAttempts = 3
	retryDelay    = 100 * time.Millisecond
)

// withRetry runs op up to retryAttempts times with a short fixed
// backoff, then converts the final error to ErrUnavailable.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay * time.Duration(attempt+1)):
		}
	}
	return errors.Join(ErrUnavailable, err)
}
