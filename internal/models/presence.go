package models

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	StatusOffline PresenceStatus = "offline"
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
)

// Text is the human readable label shown next to an avatar.
func (s PresenceStatus) Text() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusAway:
		return "Away"
	case StatusBusy:
		return "Busy"
	default:
		return "Offline"
	}
}

// AccountPresence is the displayed presence of one tracked account.
type AccountPresence struct {
	AccountID  uuid.UUID      `json:"accountId"`
	Status     PresenceStatus `json:"status"`
	StatusText string         `json:"statusText"`
	ManualAway bool           `json:"manualAway"`
	ManualBusy bool           `json:"manualBusy"`
	Active     bool           `json:"active"`
	ChangedAt  time.Time      `json:"changedAt"`
}

// StatusChange is emitted whenever an account's displayed status changes.
type StatusChange struct {
	AccountID  uuid.UUID      `json:"accountId"`
	Status     PresenceStatus `json:"status"`
	StatusText string         `json:"statusText"`
	ChangedAt  time.Time      `json:"changedAt"`
}
