// Package relay forwards payloads between the two sides of an
// established pair. The dispatcher owns the registry of connected
// transport clients; it reads pair state through the engine and triggers
// teardown through the engine, never against the store directly.
package relay

import (
	"context"
	"log"
	"sync"

	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/media"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

// Transport is one connected client able to receive forwarded payloads
// and plain-text service notifications.
type Transport interface {
	// UserID returns the user this client belongs to.
	UserID() string
	// Deliver forwards a relayed payload to the client.
	Deliver(msg models.RelayMessage) error
	// Notify sends a service notification (pairing, teardown, prompts).
	Notify(text string) error
}

// Result of a relay attempt.
type Result int

const (
	Delivered Result = iota
	NoPartner
	DeliveryFailed
)

// Delivery reports what happened to one relayed payload. PersistErr is
// independent of the delivery result: a payload whose media could not be
// saved is still forwarded, but the failure is surfaced rather than
// swallowed.
type Delivery struct {
	Result        Result
	FormerPartner string // set when Result == DeliveryFailed
	SavedPath     string
	PersistErr    error
}

// Dispatcher routes payloads between paired users.
type Dispatcher struct {
	mu      sync.RWMutex
	clients map[string]Transport

	engine *engine.Engine
	media  *media.Store
}

func NewDispatcher(eng *engine.Engine, mediaStore *media.Store) *Dispatcher {
	return &Dispatcher{
		clients: make(map[string]Transport),
		engine:  eng,
		media:   mediaStore,
	}
}

// Register adds (or replaces) the transport client for a user.
func (d *Dispatcher) Register(t Transport) {
	d.mu.Lock()
	d.clients[t.UserID()] = t
	d.mu.Unlock()
}

// Unregister drops the user's client if it is still the registered one.
func (d *Dispatcher) Unregister(t Transport) {
	d.mu.Lock()
	if current, ok := d.clients[t.UserID()]; ok && current == t {
		delete(d.clients, t.UserID())
	}
	d.mu.Unlock()
}

// Client returns the registered transport for a user.
func (d *Dispatcher) Client(userID string) (Transport, bool) {
	d.mu.RLock()
	t, ok := d.clients[userID]
	d.mu.RUnlock()
	return t, ok
}

// NotifyUser sends a service notification through the user's registered
// transport. Returns false when the user has no reachable client.
func (d *Dispatcher) NotifyUser(userID, text string) bool {
	client, ok := d.Client(userID)
	if !ok {
		return false
	}
	return client.Notify(text) == nil
}

// ClientCount returns the number of registered transport clients.
func (d *Dispatcher) ClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// Relay forwards msg to the sender's partner. With no partner it returns
// NoPartner so the caller can prompt the user to search; a delivery
// failure tears the pair down and reports the former partner.
func (d *Dispatcher) Relay(ctx context.Context, msg models.RelayMessage) (Delivery, error) {
	var delivery Delivery

	partner, ok, err := d.engine.Partner(ctx, msg.SenderID)
	if err != nil {
		return delivery, err
	}
	if !ok {
		delivery.Result = NoPartner
		metrics.RecordRelay(string(msg.Kind), "no_partner")
		return delivery, nil
	}

	// Persist media before forwarding. Failure is reported alongside the
	// delivery result, never by dropping the message.
	if msg.Data != nil {
		if _, persisted := models.MediaFolder(msg.Kind); persisted {
			path, err := d.media.Save(msg.Kind, msg.SenderID, msg.Sequence, msg.OriginalName, msg.Data)
			if err != nil {
				delivery.PersistErr = err
				metrics.RecordMediaPersist(false)
				log.Printf("ERROR: failed to persist %s payload from %s: %v", msg.Kind, msg.SenderID, err)
			} else {
				delivery.SavedPath = path
				metrics.RecordMediaPersist(true)
			}
		}
	}

	client, connected := d.Client(partner)
	if connected {
		err = client.Deliver(msg)
	}
	if !connected || err != nil {
		if err != nil {
			log.Printf("ERROR: delivery to %s failed: %v", partner, err)
		}
		former, _, tdErr := d.engine.Teardown(ctx, msg.SenderID, engine.CauseDeliveryFailure)
		if tdErr != nil {
			log.Printf("ERROR: teardown after delivery failure for %s: %v", msg.SenderID, tdErr)
		}
		if former == "" {
			former = partner
		}
		// Best-effort note to the unreachable side.
		if connected {
			_ = client.Notify("The conversation has ended.")
		}
		delivery.Result = DeliveryFailed
		delivery.FormerPartner = former
		metrics.RecordRelay(string(msg.Kind), "delivery_failed")
		return delivery, nil
	}

	delivery.Result = Delivered
	metrics.RecordRelay(string(msg.Kind), "delivered")
	return delivery, nil
}
