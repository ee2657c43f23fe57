package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/grid"
	"github.com/prudhvinik1/webradegast/internal/metrics"
	"github.com/prudhvinik1/webradegast/internal/models"
	"go.uber.org/zap"
)

const gridCallTimeout = 5 * time.Second

// SessionResolver finds the grid session that plays an account's animations.
type SessionResolver interface {
	Get(accountID uuid.UUID) (grid.Session, bool)
}

// PresenceFlags are the inputs the displayed status is derived from.
type PresenceFlags struct {
	ManualAway bool
	ManualBusy bool
	Active     bool
	// Selecting is true once the owning operator has made an active-account
	// selection.
	Selecting bool
}

// ComputeStatus applies the precedence Away > Busy > Online.
func ComputeStatus(f PresenceFlags) models.PresenceStatus {
	switch {
	case f.ManualAway:
		return models.StatusAway
	case f.ManualBusy:
		return models.StatusBusy
	case f.Active || !f.Selecting:
		return models.StatusOnline
	default:
		return models.StatusBusy
	}
}

type presenceState struct {
	operatorID uuid.UUID
	manualAway bool
	manualBusy bool
	status     models.PresenceStatus
	changedAt  time.Time
	animator   *animator
}

// operatorPresence is the selection and browser state of one operator. It
// only ever affects that operator's accounts.
type operatorPresence struct {
	active          uuid.UUID
	hasActive       bool
	selecting       bool
	browserClosed   bool
	busyBeforeClose map[uuid.UUID]struct{}
}

// animator serializes the grid animation calls of a single account. Only the
// latest desired status is kept; intermediate ones are skipped.
type animator struct {
	accountID uuid.UUID

	mu      sync.Mutex
	applied models.PresenceStatus
	desired models.PresenceStatus
	running bool
}

type transition struct {
	accountID uuid.UUID
	from      models.PresenceStatus
	to        models.PresenceStatus
	at        time.Time
	animator  *animator
}

// PresenceService owns the displayed presence of every tracked account.
//
// State changes happen under mu. Outbound events are queued under effectsMu,
// which is taken before mu is released so events leave in the same order as
// the state changes. Grid animation calls run on a per-account worker and
// never hold either lock.
type PresenceService struct {
	mu        sync.Mutex
	effectsMu sync.Mutex
	accounts  map[uuid.UUID]*presenceState
	operators map[uuid.UUID]*operatorPresence
	// pending holds the latest change per account that did not fit in the
	// outbound queue. Guarded by effectsMu.
	pending map[uuid.UUID]models.StatusChange

	animMu    sync.Mutex
	animIdle  *sync.Cond
	animating int

	sessions SessionResolver
	changes  chan models.StatusChange
	metrics  *metrics.PresenceMetrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewPresenceService(sessions SessionResolver, m *metrics.PresenceMetrics, logger *zap.Logger, buffer int) *PresenceService {
	if buffer <= 0 {
		buffer = 256
	}
	s := &PresenceService{
		accounts:  make(map[uuid.UUID]*presenceState),
		operators: make(map[uuid.UUID]*operatorPresence),
		pending:   make(map[uuid.UUID]models.StatusChange),
		sessions:  sessions,
		changes:   make(chan models.StatusChange, buffer),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	s.animIdle = sync.NewCond(&s.animMu)
	return s
}

// Changes is the outbound queue of status changes for the transport layer.
func (s *PresenceService) Changes() <-chan models.StatusChange {
	return s.changes
}

// Track adds an account owned by operatorID to the presence model. Tracking
// an already tracked account changes nothing.
func (s *PresenceService) Track(ctx context.Context, operatorID, accountID uuid.UUID) bool {
	s.mu.Lock()
	if _, ok := s.accounts[accountID]; ok {
		s.mu.Unlock()
		return true
	}
	s.accounts[accountID] = &presenceState{
		operatorID: operatorID,
		status:     models.StatusOffline,
		animator:   &animator{accountID: accountID, applied: models.StatusOffline, desired: models.StatusOffline},
	}
	s.commit(ctx, s.recomputeLocked(operatorID))
	return true
}

// Untrack removes an account, typically on grid logout, and reports it as
// offline to watchers.
func (s *PresenceService) Untrack(ctx context.Context, accountID uuid.UUID) bool {
	s.mu.Lock()
	state, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.accounts, accountID)
	if op, ok := s.operators[state.operatorID]; ok {
		delete(op.busyBeforeClose, accountID)
		if op.hasActive && op.active == accountID {
			op.hasActive = false
			op.active = uuid.Nil
		}
	}
	now := s.now()
	transitions := []transition{{accountID: accountID, from: state.status, to: models.StatusOffline, at: now}}
	s.commit(ctx, transitions)
	return true
}

// SetActiveAccount selects the operator's foreground account. A nil id clears
// the selection; every account of the operator then shows Busy unless
// manually Away. Accounts of other operators are not affected.
func (s *PresenceService) SetActiveAccount(ctx context.Context, operatorID uuid.UUID, accountID *uuid.UUID) bool {
	s.mu.Lock()
	op := s.operatorLocked(operatorID)
	if accountID != nil {
		state, ok := s.accounts[*accountID]
		if !ok || state.operatorID != operatorID {
			s.mu.Unlock()
			return false
		}
		op.active = *accountID
		op.hasActive = true
	} else {
		op.active = uuid.Nil
		op.hasActive = false
	}
	op.selecting = true
	s.commit(ctx, s.recomputeLocked(operatorID))
	return true
}

func (s *PresenceService) SetAway(ctx context.Context, accountID uuid.UUID, enabled bool) bool {
	s.mu.Lock()
	state, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	state.manualAway = enabled
	s.commit(ctx, s.recomputeLocked(state.operatorID))
	return true
}

func (s *PresenceService) SetBusy(ctx context.Context, accountID uuid.UUID, enabled bool) bool {
	s.mu.Lock()
	state, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	state.manualBusy = enabled
	// An explicit choice made while the browser is gone replaces whatever
	// was remembered at close.
	if op, ok := s.operators[state.operatorID]; ok {
		delete(op.busyBeforeClose, accountID)
	}
	s.commit(ctx, s.recomputeLocked(state.operatorID))
	return true
}

// HandleBrowserClose marks every account of the operator Away and clears
// their manual busy flags, remembering them for HandleBrowserReturn.
func (s *PresenceService) HandleBrowserClose(ctx context.Context, operatorID uuid.UUID) {
	s.mu.Lock()
	op := s.operatorLocked(operatorID)
	if !op.browserClosed {
		op.busyBeforeClose = make(map[uuid.UUID]struct{})
		for id, state := range s.accounts {
			if state.operatorID == operatorID && state.manualBusy {
				op.busyBeforeClose[id] = struct{}{}
			}
		}
		op.browserClosed = true
	}
	for _, state := range s.accounts {
		if state.operatorID != operatorID {
			continue
		}
		state.manualBusy = false
		state.manualAway = true
	}
	s.commit(ctx, s.recomputeLocked(operatorID))
}

// HandleBrowserReturn clears manual away on every account of the operator
// and restores the busy flags that were set before the browser closed.
func (s *PresenceService) HandleBrowserReturn(ctx context.Context, operatorID uuid.UUID) {
	s.mu.Lock()
	op := s.operatorLocked(operatorID)
	for _, state := range s.accounts {
		if state.operatorID == operatorID {
			state.manualAway = false
		}
	}
	for id := range op.busyBeforeClose {
		if state, ok := s.accounts[id]; ok && state.operatorID == operatorID {
			state.manualBusy = true
		}
	}
	op.busyBeforeClose = make(map[uuid.UUID]struct{})
	op.browserClosed = false
	s.commit(ctx, s.recomputeLocked(operatorID))
}

func (s *PresenceService) GetStatus(accountID uuid.UUID) (models.PresenceStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.accounts[accountID]
	if !ok {
		return models.StatusOffline, false
	}
	return state.status, true
}

func (s *PresenceService) Presence(accountID uuid.UUID) (models.AccountPresence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.accounts[accountID]
	if !ok {
		return models.AccountPresence{}, false
	}
	return s.presenceLocked(accountID, state), true
}

// Snapshot returns the presence of the operator's tracked accounts ordered
// by id.
func (s *PresenceService) Snapshot(operatorID uuid.UUID) []models.AccountPresence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AccountPresence, 0)
	for id, state := range s.accounts {
		if state.operatorID == operatorID {
			out = append(out, s.presenceLocked(id, state))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID.String() < out[j].AccountID.String() })
	return out
}

// Tracked reports how many accounts are in the presence model.
func (s *PresenceService) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *PresenceService) ActiveAccount(operatorID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operators[operatorID]
	if !ok {
		return uuid.Nil, false
	}
	return op.active, op.hasActive
}

// FlushPending offers changes held back by a full outbound queue again and
// returns how many were queued.
func (s *PresenceService) FlushPending() int {
	s.effectsMu.Lock()
	defer s.effectsMu.Unlock()
	return s.flushPendingLocked()
}

// WaitAnimations blocks until no grid animation call is in flight.
func (s *PresenceService) WaitAnimations() {
	s.animMu.Lock()
	defer s.animMu.Unlock()
	for s.animating > 0 {
		s.animIdle.Wait()
	}
}

func (s *PresenceService) operatorLocked(operatorID uuid.UUID) *operatorPresence {
	op, ok := s.operators[operatorID]
	if !ok {
		op = &operatorPresence{busyBeforeClose: make(map[uuid.UUID]struct{})}
		s.operators[operatorID] = op
	}
	return op
}

func (s *PresenceService) isActiveLocked(id uuid.UUID, state *presenceState) bool {
	op, ok := s.operators[state.operatorID]
	return ok && op.hasActive && op.active == id
}

func (s *PresenceService) presenceLocked(id uuid.UUID, state *presenceState) models.AccountPresence {
	return models.AccountPresence{
		AccountID:  id,
		Status:     state.status,
		StatusText: state.status.Text(),
		ManualAway: state.manualAway,
		ManualBusy: state.manualBusy,
		Active:     s.isActiveLocked(id, state),
		ChangedAt:  state.changedAt,
	}
}

func (s *PresenceService) flagsLocked(id uuid.UUID, state *presenceState) PresenceFlags {
	op, ok := s.operators[state.operatorID]
	return PresenceFlags{
		ManualAway: state.manualAway,
		ManualBusy: state.manualBusy,
		Active:     s.isActiveLocked(id, state),
		Selecting:  ok && op.selecting,
	}
}

// recomputeLocked re-derives the status of every account owned by
// operatorID and returns the ones that changed.
func (s *PresenceService) recomputeLocked(operatorID uuid.UUID) []transition {
	now := s.now()
	var out []transition
	for id, state := range s.accounts {
		if state.operatorID != operatorID {
			continue
		}
		next := ComputeStatus(s.flagsLocked(id, state))
		if next == state.status {
			continue
		}
		out = append(out, transition{accountID: id, from: state.status, to: next, at: now, animator: state.animator})
		state.status = next
		state.changedAt = now
	}
	sort.Slice(out, func(i, j int) bool { return out[i].accountID.String() < out[j].accountID.String() })
	return out
}

// commit must be called with mu held; it releases mu, queues the events for
// transitions and hands their animations to the account workers.
func (s *PresenceService) commit(ctx context.Context, transitions []transition) {
	s.effectsMu.Lock()
	s.mu.Unlock()
	defer s.effectsMu.Unlock()

	for _, t := range transitions {
		s.logger.Info("presence changed",
			zap.String("account_id", t.accountID.String()),
			zap.String("from", string(t.from)),
			zap.String("to", string(t.to)))
		s.metrics.Transitions.WithLabelValues(string(t.to)).Inc()

		if t.to != models.StatusOffline && t.animator != nil {
			s.animate(ctx, t.animator, t.to)
		}
		s.emit(models.StatusChange{
			AccountID:  t.accountID,
			Status:     t.to,
			StatusText: t.to.Text(),
			ChangedAt:  t.at,
		})
	}
}

func animationFlags(status models.PresenceStatus) (away, busy bool) {
	switch status {
	case models.StatusAway:
		return true, false
	case models.StatusBusy:
		return false, true
	default:
		return false, false
	}
}

// animate records the status the account's avatar should show and starts its
// worker if none is running.
func (s *PresenceService) animate(ctx context.Context, a *animator, to models.PresenceStatus) {
	a.mu.Lock()
	a.desired = to
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	s.animMu.Lock()
	s.animating++
	s.animMu.Unlock()
	go s.runAnimator(context.WithoutCancel(ctx), a)
}

func (s *PresenceService) runAnimator(ctx context.Context, a *animator) {
	defer func() {
		s.animMu.Lock()
		s.animating--
		if s.animating == 0 {
			s.animIdle.Broadcast()
		}
		s.animMu.Unlock()
	}()

	for {
		a.mu.Lock()
		if a.applied == a.desired {
			a.running = false
			a.mu.Unlock()
			return
		}
		from, to := a.applied, a.desired
		a.mu.Unlock()

		s.applyAnimation(ctx, a.accountID, from, to)

		a.mu.Lock()
		a.applied = to
		a.mu.Unlock()
	}
}

// applyAnimation is best-effort: failures are logged and the local state
// stays authoritative.
func (s *PresenceService) applyAnimation(ctx context.Context, accountID uuid.UUID, from, to models.PresenceStatus) {
	session, ok := s.sessions.Get(accountID)
	if !ok || !session.IsConnected() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, gridCallTimeout)
	defer cancel()

	fromAway, fromBusy := animationFlags(from)
	toAway, toBusy := animationFlags(to)

	if fromBusy != toBusy {
		if err := session.SetBusy(ctx, toBusy); err != nil {
			s.metrics.GridCallFailures.WithLabelValues("set_busy").Inc()
			s.logger.Warn("failed to set busy animation",
				zap.String("account_id", accountID.String()), zap.Bool("enabled", toBusy), zap.Error(err))
		}
	}
	if fromAway != toAway {
		if err := session.SetAway(ctx, toAway); err != nil {
			s.metrics.GridCallFailures.WithLabelValues("set_away").Inc()
			s.logger.Warn("failed to set away animation",
				zap.String("account_id", accountID.String()), zap.Bool("enabled", toAway), zap.Error(err))
		}
	}
}

// emit must be called with effectsMu held. While older changes are still
// held back, new ones join them so the queue never reorders an account.
func (s *PresenceService) emit(change models.StatusChange) {
	s.flushPendingLocked()
	if len(s.pending) == 0 {
		select {
		case s.changes <- change:
			return
		default:
		}
	}
	s.pending[change.AccountID] = change
	s.metrics.DeferredEvents.Inc()
	s.logger.Warn("presence event queue full, holding latest change",
		zap.String("account_id", change.AccountID.String()),
		zap.String("status", string(change.Status)))
}

func (s *PresenceService) flushPendingLocked() int {
	if len(s.pending) == 0 {
		return 0
	}
	held := make([]models.StatusChange, 0, len(s.pending))
	for _, change := range s.pending {
		held = append(held, change)
	}
	sort.Slice(held, func(i, j int) bool { return held[i].ChangedAt.Before(held[j].ChangedAt) })

	sent := 0
	for _, change := range held {
		select {
		case s.changes <- change:
			delete(s.pending, change.AccountID)
			sent++
		default:
			return sent
		}
	}
	return sent
}
