package domain

import "time"

// User is the persisted trace of a user's last live connection.
// It is informational, Presence is the source of truth for routing.
type User struct {
	ID               string    `json:"id"`
	LastConnectionID string    `json:"lastConnectionId"`
	Online           bool      `json:"online"`
	OnlineAt         time.Time `json:"onlineAt"`
	OfflineAt        time.Time `json:"offlineAt"`
}
