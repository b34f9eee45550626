package models

import "time"

// Dialog status constants
const (
	DialogStatusOpen   = "Open"
	DialogStatusClosed = "Closed"
)

// Dialog represents one 1-on-1 conversation between two users.
// It is both the live pair relation of the relational state backend
// (an Open row) and the append-only history row of the durable ledger.
type Dialog struct {
	// DialogID is "<lo>:<hi>:<openedUnix>", where lo/hi are the two
	// participant IDs with the lowest one first. The "<lo>:<hi>" prefix
	// is stable for a given pair of users, so reconnects correlate by
	// prefix and are told apart by timestamp.
	DialogID string `gorm:"primaryKey"`
	// Participant1 is the lower of the two participant IDs.
	Participant1 string `gorm:"index"`
	// Participant2 is the higher of the two participant IDs.
	Participant2 string `gorm:"index"`
	CreatedAt    time.Time
	Status       string `gorm:"default:Open;index"`
}
