// Package engine implements the matchmaking core: the single writer that
// decides, for every search request, whether the caller joins the
// waiting queue or binds to an already-waiting user, and that owns every
// presence, queue and pair mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
)

// ErrEngineUnavailable is returned when the state store stays
// unreachable after the adapter's retries.
var ErrEngineUnavailable = errors.New("matchmaking engine unavailable")

// Teardown causes, for the ledger/metrics trail.
const (
	CauseStop            = "stop"
	CauseResearch        = "research"
	CauseDeliveryFailure = "delivery_failure"
	CauseDisconnect      = "disconnect"
)

// Ledger is the optional audit trail of pair lifetimes. Both calls are
// fire-and-forget: implementations must never block the match path.
type Ledger interface {
	RecordOpen(a, b string)
	RecordClose(a, b string)
}

// Outcome is the result of RequestSearch.
type Outcome struct {
	// Queued is true when no candidate was available and the caller was
	// placed at the back of the waiting queue.
	Queued bool
	// PartnerID is the matched candidate when Queued is false.
	PartnerID string
	// ReleasedPartnerID is the former partner freed by the implicit
	// teardown of a stale pair, so the caller can notify them.
	ReleasedPartnerID string
}

// Engine serializes all queue/pair/presence transitions behind one
// mutex: the single-writer design that closes the dequeue-then-pair race
// of running the pop and the pair write as two unrelated store commands.
// It is the only lock in the process held across store I/O.
type Engine struct {
	mu     sync.Mutex
	store  storage.StateStore
	ledger Ledger // may be nil
}

func New(store storage.StateStore, ledger Ledger) *Engine {
	return &Engine{store: store, ledger: ledger}
}

// Register creates the user's presence record on first contact. It never
// downgrades an existing state.
func (e *Engine) Register(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.store.GetPresence(ctx, userID)
	if err != nil {
		return wrapStoreErr(err)
	}
	if state == models.PresenceOffline {
		if err := e.store.SetPresence(ctx, userID, models.PresenceOffline); err != nil {
			return wrapStoreErr(err)
		}
	}
	return nil
}

// RequestSearch executes the full search transition:
//
//  1. a caller holding a stale pair implicitly tears it down first,
//  2. a caller already waiting stays queued without a duplicate entry,
//  3. otherwise the front of the queue is dequeued (skipping the caller's
//     own discarded entries) and bound into a symmetric pair, or
//  4. the caller is enqueued at the back.
//
// The whole transition runs under the engine mutex, so two concurrent
// callers can never both win the same candidate.
func (e *Engine) RequestSearch(ctx context.Context, userID string) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out Outcome

	// Re-searching while paired abandons the old conversation: the
	// partner is released to Offline and reported back for notification.
	former, hadPair, err := e.store.ClearPair(ctx, userID)
	if err != nil {
		return out, wrapStoreErr(err)
	}
	if hadPair {
		out.ReleasedPartnerID = former
		if err := e.store.SetPresence(ctx, former, models.PresenceOffline); err != nil {
			return out, wrapStoreErr(err)
		}
		e.recordClose(userID, former)
		metrics.RecordTeardown(CauseResearch)
		log.Printf("Pair closed by re-search: %s <-> %s", userID, former)
	}

	queued, err := e.store.IsQueued(ctx, userID)
	if err != nil {
		return out, wrapStoreErr(err)
	}
	if queued {
		out.Queued = true
		metrics.RecordSearch("queued")
		return out, nil
	}

	candidate, found, err := e.store.DequeueSkipping(ctx, userID)
	if err != nil {
		return out, wrapStoreErr(err)
	}
	if found {
		if err := e.store.SetPair(ctx, userID, candidate); err != nil {
			// The candidate was already popped; put it back rather than
			// losing it, then fail the caller.
			if reErr := e.store.Enqueue(ctx, candidate); reErr != nil {
				log.Printf("ERROR: failed to requeue candidate %s after pair write failure: %v", candidate, reErr)
			}
			return out, wrapStoreErr(err)
		}
		if err := e.store.SetPresence(ctx, userID, models.PresencePaired); err != nil {
			return out, wrapStoreErr(err)
		}
		if err := e.store.SetPresence(ctx, candidate, models.PresencePaired); err != nil {
			return out, wrapStoreErr(err)
		}
		out.PartnerID = candidate
		e.recordOpen(userID, candidate)
		metrics.RecordSearch("paired")
		metrics.RecordMatch()
		log.Printf("Pair created: %s <-> %s", userID, candidate)
		return out, nil
	}

	if err := e.store.Enqueue(ctx, userID); err != nil {
		return out, wrapStoreErr(err)
	}
	if err := e.store.SetPresence(ctx, userID, models.PresenceSearching); err != nil {
		return out, wrapStoreErr(err)
	}
	out.Queued = true
	metrics.RecordSearch("queued")
	log.Printf("User %s added to waiting queue", userID)
	return out, nil
}

// Cancel removes the user from the waiting queue. No-op if not queued:
// in particular it never touches a paired user's state, so a pair stays
// consistent with both presences until an explicit teardown.
func (e *Engine) Cancel(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	queued, err := e.store.IsQueued(ctx, userID)
	if err != nil {
		return wrapStoreErr(err)
	}
	if !queued {
		return nil
	}
	if err := e.store.RemoveFromQueue(ctx, userID); err != nil {
		return wrapStoreErr(err)
	}
	if err := e.store.SetPresence(ctx, userID, models.PresenceOffline); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Teardown closes the caller's open pair and returns the former partner
// so the caller can notify them. ok is false when no pair existed; that
// is a defined outcome, not an error, and repeating the call changes
// nothing.
func (e *Engine) Teardown(ctx context.Context, userID, cause string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	partner, ok, err := e.store.ClearPair(ctx, userID)
	if err != nil {
		return "", false, wrapStoreErr(err)
	}
	if !ok {
		return "", false, nil
	}
	if err := e.store.SetPresence(ctx, userID, models.PresenceOffline); err != nil {
		return "", false, wrapStoreErr(err)
	}
	if err := e.store.SetPresence(ctx, partner, models.PresenceOffline); err != nil {
		return "", false, wrapStoreErr(err)
	}
	e.recordClose(userID, partner)
	metrics.RecordTeardown(cause)
	log.Printf("Pair closed (%s): %s <-> %s", cause, userID, partner)
	return partner, true, nil
}

// Partner exposes the pair registry read-only, for the relay dispatcher.
func (e *Engine) Partner(ctx context.Context, userID string) (string, bool, error) {
	partner, ok, err := e.store.GetPartner(ctx, userID)
	if err != nil {
		return "", false, wrapStoreErr(err)
	}
	return partner, ok, nil
}

func (e *Engine) recordOpen(a, b string) {
	if e.ledger != nil {
		e.ledger.RecordOpen(a, b)
	}
}

func (e *Engine) recordClose(a, b string) {
	if e.ledger != nil {
		e.ledger.RecordClose(a, b)
	}
}

func wrapStoreErr(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return err
}
