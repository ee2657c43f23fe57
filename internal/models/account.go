package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a grid avatar the operator can log in through the web front-end.
type Account struct {
	ID          uuid.UUID      `json:"id"`
	OperatorID  uuid.UUID      `json:"operator_id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	DisplayName string         `json:"display_name"`
	GridURL     string         `json:"grid_url"`
	Status      PresenceStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// FullName returns the legacy "First Last" avatar name.
func (a *Account) FullName() string {
	if a.LastName == "" || a.LastName == "Resident" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
