package services

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConnectionTracker keeps the many-to-many relation between live transport
// connections and the accounts they watch.
//
// An account is present in byAccount only while it has at least one
// connection, and a connection is present in byConnection only while it
// watches at least one account. The two maps always mirror each other.
type ConnectionTracker struct {
	mu           sync.RWMutex
	byAccount    map[uuid.UUID]map[string]struct{}
	byConnection map[string]map[uuid.UUID]struct{}
	logger       *zap.Logger
}

func NewConnectionTracker(logger *zap.Logger) *ConnectionTracker {
	return &ConnectionTracker{
		byAccount:    make(map[uuid.UUID]map[string]struct{}),
		byConnection: make(map[string]map[uuid.UUID]struct{}),
		logger:       logger,
	}
}

// AddConnection records that connectionID watches accountID. Calling it again
// for the same pair has no further effect.
func (t *ConnectionTracker) AddConnection(connectionID string, accountID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.byAccount[accountID]
	if !ok {
		conns = make(map[string]struct{})
		t.byAccount[accountID] = conns
	}
	conns[connectionID] = struct{}{}

	accounts, ok := t.byConnection[connectionID]
	if !ok {
		accounts = make(map[uuid.UUID]struct{})
		t.byConnection[connectionID] = accounts
	}
	accounts[accountID] = struct{}{}

	t.logger.Debug("connection attached",
		zap.String("connection_id", connectionID),
		zap.String("account_id", accountID.String()),
		zap.Int("account_connections", len(conns)))
}

// RemoveConnection drops a single pair. Absent pairs are ignored.
func (t *ConnectionTracker) RemoveConnection(connectionID string, accountID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removePairLocked(connectionID, accountID)
}

// RemoveAllForConnection detaches connectionID from every account it was
// watching and returns those accounts.
func (t *ConnectionTracker) RemoveAllForConnection(connectionID string) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	accounts, ok := t.byConnection[connectionID]
	if !ok {
		return nil
	}

	detached := make([]uuid.UUID, 0, len(accounts))
	for accountID := range accounts {
		detached = append(detached, accountID)
	}
	for _, accountID := range detached {
		t.removePairLocked(connectionID, accountID)
	}
	// removePairLocked drops the entry once the last account is gone; this
	// only matters if the set was already empty.
	delete(t.byConnection, connectionID)

	t.logger.Debug("connection detached",
		zap.String("connection_id", connectionID),
		zap.Int("accounts", len(detached)))

	return detached
}

func (t *ConnectionTracker) removePairLocked(connectionID string, accountID uuid.UUID) {
	if conns, ok := t.byAccount[accountID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(t.byAccount, accountID)
		}
	}
	if accounts, ok := t.byConnection[connectionID]; ok {
		delete(accounts, accountID)
		if len(accounts) == 0 {
			delete(t.byConnection, connectionID)
		}
	}
}

func (t *ConnectionTracker) HasActiveConnections(accountID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAccount[accountID]) > 0
}

func (t *ConnectionTracker) GetConnectionCount(accountID uuid.UUID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAccount[accountID])
}

// GetConnectionsForAccount returns a sorted copy of the connections watching
// accountID.
func (t *ConnectionTracker) GetConnectionsForAccount(accountID uuid.UUID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := t.byAccount[accountID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *ConnectionTracker) GetAccountsForConnection(connectionID string) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	accounts := t.byConnection[connectionID]
	ids := make([]uuid.UUID, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// CleanupStaleConnections compacts both maps: empty sets are dropped and any
// member without its mirror entry is removed. It returns the number of
// entries removed. With correctly paired Add/Remove calls it finds nothing.
func (t *ConnectionTracker) CleanupStaleConnections() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for accountID, conns := range t.byAccount {
		for connectionID := range conns {
			if _, ok := t.byConnection[connectionID][accountID]; !ok {
				delete(conns, connectionID)
				removed++
			}
		}
		if len(conns) == 0 {
			delete(t.byAccount, accountID)
			removed++
		}
	}
	for connectionID, accounts := range t.byConnection {
		for accountID := range accounts {
			if _, ok := t.byAccount[accountID][connectionID]; !ok {
				delete(accounts, accountID)
				removed++
			}
		}
		if len(accounts) == 0 {
			delete(t.byConnection, connectionID)
			removed++
		}
	}

	if removed > 0 {
		t.logger.Warn("removed stale connection entries", zap.Int("removed", removed))
	}
	return removed
}

// Stats returns the number of watched accounts and live connections.
func (t *ConnectionTracker) Stats() (accounts, connections int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAccount), len(t.byConnection)
}
