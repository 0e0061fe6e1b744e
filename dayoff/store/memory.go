// Package store provides in-memory dayoff.TxStore and dayoff.Directory
// implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	credits  map[string]dayoff.Credit
	requests map[string]dayoff.Request

	users       map[string]dayoff.User
	sections    map[string]dayoff.Section
	departments map[string]dayoff.Department
}

func NewMemory() *Memory {
	return &Memory{
		credits:     make(map[string]dayoff.Credit),
		requests:    make(map[string]dayoff.Request),
		users:       make(map[string]dayoff.User),
		sections:    make(map[string]dayoff.Section),
		departments: make(map[string]dayoff.Department),
	}
}

func (m *Memory) SaveCredit(_ context.Context, c dayoff.Credit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCreditLocked(c)
}

func (m *Memory) GetCredit(_ context.Context, id string) (*dayoff.Credit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCreditLocked(id)
}

func (m *Memory) ListCredits(_ context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCreditsLocked(ownerID, includeConsumed), nil
}

func (m *Memory) DeleteCredit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credits, id)
	return nil
}

func (m *Memory) SaveRequest(_ context.Context, r dayoff.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRequestLocked(r)
}

func (m *Memory) GetRequest(_ context.Context, id string) (*dayoff.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) ListRequests(_ context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(filter), nil
}

func (m *Memory) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

// =============================================================================
// LOCKED HELPERS - Callers hold mu
// =============================================================================

func (m *Memory) saveCreditLocked(c dayoff.Credit) error {
	if c.ID == "" {
		return fmt.Errorf("%w: credit id is required", generic.ErrInvalidRequest)
	}
	m.credits[c.ID] = c
	return nil
}

func (m *Memory) getCreditLocked(id string) (*dayoff.Credit, error) {
	c, ok := m.credits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrCreditNotFound, id)
	}
	return &c, nil
}

func (m *Memory) listCreditsLocked(ownerID string, includeConsumed bool) []dayoff.Credit {
	var result []dayoff.Credit
	for _, c := range m.credits {
		if c.OwnerID != ownerID || (c.Consumed && !includeConsumed) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.EarnedOn.Equal(b.EarnedOn) {
			return a.EarnedOn.Before(b.EarnedOn)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return result
}

func (m *Memory) saveRequestLocked(r dayoff.Request) error {
	if r.ID == "" {
		return fmt.Errorf("%w: request id is required", generic.ErrInvalidRequest)
	}
	r.Allocations = append([]dayoff.Allocation(nil), r.Allocations...)
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) getRequestLocked(id string) (*dayoff.Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	r.Allocations = append([]dayoff.Allocation(nil), r.Allocations...)
	return &r, nil
}

func (m *Memory) listRequestsLocked(filter dayoff.RequestFilter) []dayoff.Request {
	result := []dayoff.Request{}
	for _, r := range m.requests {
		if !filter.Match(&r) {
			continue
		}
		r.Allocations = append([]dayoff.Allocation(nil), r.Allocations...)
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) AddDepartment(d dayoff.Department) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[d.ID] = d
}

func (m *Memory) AddSection(s dayoff.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[s.ID] = s
}

func (m *Memory) AddUser(u dayoff.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) GetUser(_ context.Context, id string) (*dayoff.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrUserNotFound, id)
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*dayoff.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", generic.ErrUserNotFound, email)
}

func (m *Memory) ResolveApprovers(_ context.Context, employeeID string) (dayoff.Approvers, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[employeeID]
	if !ok {
		return dayoff.Approvers{}, fmt.Errorf("%w: %s", generic.ErrUserNotFound, employeeID)
	}
	var section *dayoff.Section
	if s, ok := m.sections[u.SectionID]; ok {
		section = &s
	}
	return dayoff.ApproversFor(&u, section)
}

func (m *Memory) SectionsSupervisedBy(_ context.Context, userID string) ([]dayoff.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []dayoff.Section
	for _, s := range m.sections {
		if s.SupervisorID == userID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(dayoff.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	credits  map[string]dayoff.Credit
	requests map[string]dayoff.Request
}

func (tm *TxMemory) snapshot() memorySnapshot {
	credits := make(map[string]dayoff.Credit, len(tm.credits))
	for k, v := range tm.credits {
		credits[k] = v
	}
	requests := make(map[string]dayoff.Request, len(tm.requests))
	for k, v := range tm.requests {
		requests[k] = v
	}
	return memorySnapshot{credits: credits, requests: requests}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.credits = s.credits
	tm.requests = s.requests
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveCredit(_ context.Context, c dayoff.Credit) error {
	return tv.parent.saveCreditLocked(c)
}

func (tv *txMemoryView) GetCredit(_ context.Context, id string) (*dayoff.Credit, error) {
	return tv.parent.getCreditLocked(id)
}

func (tv *txMemoryView) ListCredits(_ context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	return tv.parent.listCreditsLocked(ownerID, includeConsumed), nil
}

func (tv *txMemoryView) DeleteCredit(_ context.Context, id string) error {
	delete(tv.parent.credits, id)
	return nil
}

func (tv *txMemoryView) SaveRequest(_ context.Context, r dayoff.Request) error {
	return tv.parent.saveRequestLocked(r)
}

func (tv *txMemoryView) GetRequest(_ context.Context, id string) (*dayoff.Request, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txMemoryView) ListRequests(_ context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	return tv.parent.listRequestsLocked(filter), nil
}

func (tv *txMemoryView) DeleteRequest(_ context.Context, id string) error {
	delete(tv.parent.requests, id)
	return nil
}
