package grid

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrNotConnected = errors.New("grid session is not connected")

// Session is the live grid connection of one avatar account.
type Session interface {
	AccountID() uuid.UUID
	IsConnected() bool
	SetAway(ctx context.Context, enabled bool) error
	SetBusy(ctx context.Context, enabled bool) error
	Close() error
}

// Animation is the presence animation an avatar is currently playing.
type Animation string

const (
	AnimationNone Animation = ""
	AnimationAway Animation = "away"
	AnimationBusy Animation = "busy"
)

// LocalSession keeps the animation state in process. It stands in for a
// protocol-backed session when no grid adapter is configured.
type LocalSession struct {
	mu        sync.Mutex
	accountID uuid.UUID
	connected bool
	away      bool
	busy      bool
}

func NewLocalSession(accountID uuid.UUID) *LocalSession {
	return &LocalSession{accountID: accountID, connected: true}
}

func (s *LocalSession) AccountID() uuid.UUID {
	return s.accountID
}

func (s *LocalSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *LocalSession) SetAway(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.away = enabled
	return nil
}

func (s *LocalSession) SetBusy(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.busy = enabled
	return nil
}

// Animation reports what the avatar shows in-world. Away wins over busy.
func (s *LocalSession) Animation() Animation {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.away:
		return AnimationAway
	case s.busy:
		return AnimationBusy
	default:
		return AnimationNone
	}
}

func (s *LocalSession) Close() error {
	s.mu.Lock()
	s.connected = false
	s.away = false
	s.busy = false
	s.mu.Unlock()
	return nil
}
