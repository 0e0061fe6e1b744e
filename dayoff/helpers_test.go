package dayoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/dayoff/store"
	"github.com/warp/compday/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	employee   = generic.Actor{ID: "emp-1", Role: generic.RoleEmployee}
	colleague  = generic.Actor{ID: "emp-2", Role: generic.RoleEmployee}
	orphan     = generic.Actor{ID: "emp-3", Role: generic.RoleEmployee}
	teamLeader = generic.Actor{ID: "tl-1", Role: generic.RoleTeamLeader}
	otherTL    = generic.Actor{ID: "tl-2", Role: generic.RoleTeamLeader}
	manager    = generic.Actor{ID: "mgr-1", Role: generic.RoleManager}
	otherMgr   = generic.Actor{ID: "mgr-2", Role: generic.RoleManager}
	admin      = generic.Actor{ID: "admin-1", Role: generic.RoleAdmin}
)

func days(n float64) generic.Amount {
	return generic.NewAmount(n)
}

func date(day int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.March, day)
}

// newOrg builds a memory store with two departments:
//
//	ops:   section line-a (tl-1, mgr-1) with emp-1, emp-2; emp-3 has no section
//	sales: section desk   (tl-2, mgr-2)
func newOrg() *store.TxMemory {
	m := store.NewTxMemory()
	m.AddDepartment(dayoff.Department{ID: "ops", Name: "Operations"})
	m.AddDepartment(dayoff.Department{ID: "sales", Name: "Sales"})
	m.AddSection(dayoff.Section{ID: "line-a", Name: "Line A", DepartmentID: "ops", SupervisorID: "tl-1", ManagerID: "mgr-1"})
	m.AddSection(dayoff.Section{ID: "desk", Name: "Desk", DepartmentID: "sales", SupervisorID: "tl-2", ManagerID: "mgr-2"})

	for _, u := range []dayoff.User{
		{ID: "emp-1", Name: "Ana", Role: generic.RoleEmployee, DepartmentID: "ops", SectionID: "line-a"},
		{ID: "emp-2", Name: "Ben", Role: generic.RoleEmployee, DepartmentID: "ops", SectionID: "line-a"},
		{ID: "emp-3", Name: "Cleo", Role: generic.RoleEmployee, DepartmentID: "ops"},
		{ID: "tl-1", Name: "Dana", Role: generic.RoleTeamLeader, DepartmentID: "ops", SectionID: "line-a"},
		{ID: "tl-2", Name: "Eli", Role: generic.RoleTeamLeader, DepartmentID: "sales", SectionID: "desk"},
		{ID: "mgr-1", Name: "Fay", Role: generic.RoleManager, DepartmentID: "ops"},
		{ID: "mgr-2", Name: "Gus", Role: generic.RoleManager, DepartmentID: "sales"},
		{ID: "admin-1", Name: "Hal", Role: generic.RoleAdmin},
	} {
		m.AddUser(u)
	}
	return m
}

func newService(m *store.TxMemory) *dayoff.Service {
	return dayoff.NewService(m, m, zerolog.Nop())
}

// seedCredit writes a credit straight to the store.
func seedCredit(t *testing.T, s dayoff.CreditStore, id, owner string, earned generic.TimePoint, balance float64) dayoff.Credit {
	t.Helper()
	c := dayoff.Credit{
		ID:             id,
		OwnerID:        owner,
		EarnedOn:       earned,
		Label:          earned.DayName(),
		Remark:         "weekend shift",
		Balance:        days(balance),
		InitialBalance: days(balance),
		CreatedAt:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveCredit(context.Background(), c))
	return c
}

func requireCredit(t *testing.T, s dayoff.CreditStore, id string, balance float64, consumed bool) {
	t.Helper()
	c, err := s.GetCredit(context.Background(), id)
	require.NoError(t, err)
	require.Truef(t, c.Balance.Equal(days(balance)), "credit %s balance: expected %v, got %s", id, balance, c.Balance)
	require.Equalf(t, consumed, c.Consumed, "credit %s consumed flag", id)
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

// faultyStore fails SaveCredit inside transactions after failAfter
// successful credit writes.
type faultyStore struct {
	dayoff.TxStore
	failAfter int
	writes    int
}

var errDiskFull = errors.New("disk full")

func (f *faultyStore) WithTx(ctx context.Context, fn func(dayoff.Store) error) error {
	return f.TxStore.WithTx(ctx, func(tx dayoff.Store) error {
		return fn(&faultyTx{Store: tx, parent: f})
	})
}

type faultyTx struct {
	dayoff.Store
	parent *faultyStore
}

func (f *faultyTx) SaveCredit(ctx context.Context, c dayoff.Credit) error {
	if f.parent.writes >= f.parent.failAfter {
		return errDiskFull
	}
	f.parent.writes++
	return f.Store.SaveCredit(ctx, c)
}
