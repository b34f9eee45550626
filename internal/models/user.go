package models

// Presence lifecycle states. Only the matchmaking engine moves users
// between them.
const (
	PresenceOffline   = "Offline"
	PresenceSearching = "Searching"
	PresencePaired    = "Paired"
)

// User представляє користувача в системі.
// ID призначається транспортом: Telegram chat ID (як string) або
// анонімний UUID для WebSocket-клієнтів.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	DisplayName string
	State       string `gorm:"default:Offline;index"`
}
