package models

import "time"

// QueueEntry is one waiting user in the relational state backend.
// FIFO order is the autoincrement ID; EnqueuedAt drives TTL expiry.
type QueueEntry struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"uniqueIndex;not null"`
	EnqueuedAt time.Time
}
