package dayoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

func requestDays(n float64) dayoff.CreateRequestInput {
	return dayoff.CreateRequestInput{
		DaysRequested:    days(n),
		CompensationDate: generic.NewTimePoint(2025, time.April, 14),
		Remark:           "family visit",
	}
}

// =============================================================================
// CREATE REQUEST
// =============================================================================

func TestCreateRequest_DebitsOldestCredits(t *testing.T) {
	// GIVEN: Credits of 1.5 on day 1 and day 2
	// WHEN: The employee requests 2 days
	// THEN: Request is pending, day-1 credit consumed, day-2 credit left at 1.0

	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "day2", "emp-1", date(2), 1.5)
	seedCredit(t, m, "day1", "emp-1", date(1), 1.5)

	req, err := svc.CreateRequest(context.Background(), employee, requestDays(2))
	require.NoError(t, err)

	assert.Equal(t, dayoff.StatusPending, req.Status)
	assert.Equal(t, "tl-1", req.TeamLeaderID)
	assert.Equal(t, "mgr-1", req.ManagerID)
	assert.Equal(t, "line-a", req.SectionID)
	assert.Equal(t, "ops", req.DepartmentID)
	assert.Equal(t, "Monday", req.CompensationDay)
	assert.Equal(t, 2, req.DebitsApplied)
	assert.True(t, req.ConsumedBalance.Equal(days(2)))
	require.Len(t, req.Allocations, 2)
	assert.Equal(t, "day1", req.Allocations[0].CreditID)

	requireCredit(t, m, "day1", 0, true)
	requireCredit(t, m, "day2", 1, false)

	stored, err := m.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, dayoff.StatusPending, stored.Status)
}

func TestCreateRequest_InsufficientBalance_NoWrites(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1.5)
	seedCredit(t, m, "c2", "emp-1", date(2), 1.5)

	_, err := svc.CreateRequest(context.Background(), employee, requestDays(5))
	require.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.NotErrorIs(t, err, generic.ErrCommitFailed)

	requireCredit(t, m, "c1", 1.5, false)
	requireCredit(t, m, "c2", 1.5, false)
	all, err := m.ListRequests(context.Background(), dayoff.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateRequest_ValidatesInput(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, employee, requestDays(0))
	assert.ErrorIs(t, err, generic.ErrInvalidRequest)

	in := requestDays(1)
	in.CompensationDate = generic.TimePoint{}
	_, err = svc.CreateRequest(ctx, employee, in)
	assert.ErrorIs(t, err, generic.ErrInvalidRequest)

	_, err = svc.CreateRequest(ctx, generic.Actor{}, requestDays(1))
	assert.ErrorIs(t, err, generic.ErrNotAuthorized)
}

func TestCreateRequest_ApproverNotConfigured(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-3", date(1), 1)

	_, err := svc.CreateRequest(context.Background(), orphan, requestDays(1))
	require.ErrorIs(t, err, generic.ErrApproverNotConfigured)
	requireCredit(t, m, "c1", 1, false)
}

func TestCreateRequest_MissingManager(t *testing.T) {
	m := newOrg()
	m.AddSection(dayoff.Section{ID: "line-a", DepartmentID: "ops", SupervisorID: "tl-1"})
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)

	_, err := svc.CreateRequest(context.Background(), employee, requestDays(1))
	require.ErrorIs(t, err, generic.ErrApproverNotConfigured)
}

func TestCreateRequest_CommitFailureRollsBack(t *testing.T) {
	// GIVEN: Three credits and a store that fails the second debit
	// WHEN: The employee requests 2.5 days
	// THEN: CommitError listing the applied credit; every credit restored and
	//       no request persisted

	m := newOrg()
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-1", date(2), 1)
	seedCredit(t, m, "c3", "emp-1", date(3), 1)

	faulty := &faultyStore{TxStore: m, failAfter: 1}
	svc := dayoff.NewService(faulty, m, zerolog.Nop())

	_, err := svc.CreateRequest(context.Background(), employee, requestDays(2.5))
	require.ErrorIs(t, err, generic.ErrCommitFailed)
	require.ErrorIs(t, err, errDiskFull)
	assert.False(t, generic.IsClientError(err))

	var commitErr *generic.CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, []string{"c1"}, commitErr.Applied)

	requireCredit(t, m, "c1", 1, false)
	requireCredit(t, m, "c2", 1, false)
	requireCredit(t, m, "c3", 1, false)
	all, err := m.ListRequests(context.Background(), dayoff.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func TestApprove_TwoStageFlow_RemovesConsumedCredits(t *testing.T) {
	// GIVEN: A pending 2-day request drawn from a 1.5 and a 1.5 credit
	// WHEN: Team leader then manager approve
	// THEN: The consumed credit is removed, the partial one keeps 1.0, and
	//       both approvals are recorded

	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "day1", "emp-1", date(1), 1.5)
	seedCredit(t, m, "day2", "emp-1", date(2), 1.5)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, employee, requestDays(2))
	require.NoError(t, err)

	req, err = svc.Approve(ctx, teamLeader, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dayoff.StatusTeamLeaderApproved, req.Status)
	assert.Equal(t, "tl-1", req.TeamLeaderApprovedBy)
	require.NotNil(t, req.TeamLeaderApprovedAt)

	_, err = svc.Approve(ctx, teamLeader, req.ID)
	require.ErrorIs(t, err, generic.ErrInvalidTransition)

	req, err = svc.Approve(ctx, manager, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dayoff.StatusApproved, req.Status)
	assert.Equal(t, "mgr-1", req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)

	_, err = m.GetCredit(ctx, "day1")
	require.ErrorIs(t, err, generic.ErrCreditNotFound)
	requireCredit(t, m, "day2", 1, false)
}

func TestApprove_WrongManager_StatusUnchanged(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, employee, requestDays(1))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, teamLeader, req.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, otherMgr, req.ID)
	require.ErrorIs(t, err, generic.ErrNotAuthorized)
	assert.True(t, generic.IsForbidden(err))

	stored, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dayoff.StatusTeamLeaderApproved, stored.Status)
}

func TestApprove_KeepsCreditSharedWithOpenRequest(t *testing.T) {
	// GIVEN: Two requests drawing 0.5 each from the same 1.0 credit
	// WHEN: The first is fully approved while the second is still pending
	// THEN: The consumed credit stays until the second request settles

	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	first, err := svc.CreateRequest(ctx, employee, requestDays(0.5))
	require.NoError(t, err)
	second, err := svc.CreateRequest(ctx, employee, requestDays(0.5))
	require.NoError(t, err)
	requireCredit(t, m, "c1", 0, true)

	_, err = svc.Approve(ctx, admin, first.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, first.ID)
	require.NoError(t, err)
	requireCredit(t, m, "c1", 0, true)

	_, err = svc.Reject(ctx, teamLeader, second.ID)
	require.NoError(t, err)
	requireCredit(t, m, "c1", 0.5, false)
}

func TestReject_RestoresCredits(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-1", date(2), 1)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, employee, requestDays(1.5))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, teamLeader, req.ID)
	require.NoError(t, err)

	req, err = svc.Reject(ctx, manager, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dayoff.StatusRejected, req.Status)
	assert.Equal(t, "mgr-1", req.ApprovedBy)

	requireCredit(t, m, "c1", 1, false)
	requireCredit(t, m, "c2", 1, false)

	_, err = svc.Reject(ctx, manager, req.ID)
	require.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestApprove_UnknownRequest(t *testing.T) {
	svc := newService(newOrg())
	_, err := svc.Approve(context.Background(), admin, "missing")
	require.ErrorIs(t, err, generic.ErrRequestNotFound)
}

func TestDelete_OnlyTerminalByAdminOrManager(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, employee, requestDays(1))
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, req.ID)
	require.ErrorIs(t, err, generic.ErrInvalidTransition)

	_, err = svc.Reject(ctx, teamLeader, req.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, employee, req.ID)
	require.ErrorIs(t, err, generic.ErrNotAuthorized)
	err = svc.Delete(ctx, otherMgr, req.ID)
	require.ErrorIs(t, err, generic.ErrNotAuthorized)

	require.NoError(t, svc.Delete(ctx, manager, req.ID))
	_, err = m.GetRequest(ctx, req.ID)
	require.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestGet_Visibility(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, employee, requestDays(1))
	require.NoError(t, err)

	for _, actor := range []generic.Actor{employee, teamLeader, manager, admin} {
		_, err := svc.Get(ctx, actor, req.ID)
		assert.NoErrorf(t, err, "actor %s", actor)
	}
	for _, actor := range []generic.Actor{colleague, otherTL, otherMgr} {
		_, err := svc.Get(ctx, actor, req.ID)
		assert.ErrorIsf(t, err, generic.ErrNotAuthorized, "actor %s", actor)
	}
}

func TestApprovalQueue_ByRole(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-2", date(1), 1)
	ctx := context.Background()

	first, err := svc.CreateRequest(ctx, employee, requestDays(1))
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, colleague, requestDays(1))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, teamLeader, first.ID)
	require.NoError(t, err)

	tlQueue, err := svc.ApprovalQueue(ctx, teamLeader)
	require.NoError(t, err)
	require.Len(t, tlQueue, 1)
	assert.Equal(t, "emp-2", tlQueue[0].EmployeeID)

	mgrQueue, err := svc.ApprovalQueue(ctx, manager)
	require.NoError(t, err)
	require.Len(t, mgrQueue, 1)
	assert.Equal(t, first.ID, mgrQueue[0].ID)

	adminQueue, err := svc.ApprovalQueue(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, adminQueue, 2)

	otherQueue, err := svc.ApprovalQueue(ctx, otherTL)
	require.NoError(t, err)
	assert.Empty(t, otherQueue)

	_, err = svc.ApprovalQueue(ctx, employee)
	require.ErrorIs(t, err, generic.ErrNotAuthorized)
}

func TestArchive_ScopedByRole(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-2", date(1), 1)
	ctx := context.Background()

	for _, actor := range []generic.Actor{employee, colleague} {
		req, err := svc.CreateRequest(ctx, actor, requestDays(1))
		require.NoError(t, err)
		_, err = svc.Approve(ctx, teamLeader, req.ID)
		require.NoError(t, err)
		_, err = svc.Approve(ctx, manager, req.ID)
		require.NoError(t, err)
	}

	count := func(actor generic.Actor) int {
		list, err := svc.Archive(ctx, actor)
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 2, count(admin))
	assert.Equal(t, 2, count(manager))
	assert.Equal(t, 2, count(teamLeader))
	assert.Equal(t, 1, count(employee))
	assert.Equal(t, 0, count(otherMgr))
	assert.Equal(t, 0, count(otherTL))
}

func TestMyRequests_HidesProvisional(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ctx := context.Background()

	require.NoError(t, m.SaveRequest(ctx, dayoff.Request{ID: "stuck", EmployeeID: "emp-1", Status: dayoff.StatusProvisional}))
	_, err := svc.CreateRequest(ctx, employee, requestDays(1))
	require.NoError(t, err)

	mine, err := svc.MyRequests(ctx, employee)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, dayoff.StatusPending, mine[0].Status)

	_, err = svc.Get(ctx, employee, "stuck")
	require.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// CREDITS
// =============================================================================

func TestCreateCredit_Defaults(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	ctx := context.Background()

	c, err := svc.CreateCredit(ctx, employee, dayoff.CreditInput{
		EarnedOn: generic.NewTimePoint(2025, time.March, 1),
		Remark:   "inventory count",
	})
	require.NoError(t, err)
	assert.Equal(t, "Saturday", c.Label)
	assert.True(t, c.Balance.Equal(days(1)))
	assert.True(t, c.InitialBalance.Equal(days(1)))
	assert.Equal(t, "emp-1", c.OwnerID)

	_, err = svc.CreateCredit(ctx, employee, dayoff.CreditInput{EarnedOn: date(1)})
	assert.ErrorIs(t, err, generic.ErrInvalidRequest)

	_, err = svc.CreateCredit(ctx, employee, dayoff.CreditInput{EarnedOn: date(1), Remark: "x", Balance: days(-1)})
	assert.ErrorIs(t, err, generic.ErrInvalidRequest)
}

func TestUpdateAndDeleteCredit(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-1", date(2), 1)
	ctx := context.Background()

	label := "Holiday shift"
	c, err := svc.UpdateCredit(ctx, employee, "c1", dayoff.CreditUpdate{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, "Holiday shift", c.Label)

	_, err = svc.UpdateCredit(ctx, colleague, "c1", dayoff.CreditUpdate{Label: &label})
	require.ErrorIs(t, err, generic.ErrNotAuthorized)

	_, err = svc.CreateRequest(ctx, employee, requestDays(0.5))
	require.NoError(t, err)

	err = svc.DeleteCredit(ctx, employee, "c1")
	require.ErrorIs(t, err, generic.ErrCreditInUse)

	require.NoError(t, svc.DeleteCredit(ctx, manager, "c2"))
	_, err = m.GetCredit(ctx, "c2")
	require.ErrorIs(t, err, generic.ErrNotFound)
}

func TestAvailableCredits_Access(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-1", date(2), 0.5)
	ctx := context.Background()

	credits, total, err := svc.AvailableCredits(ctx, employee, "")
	require.NoError(t, err)
	assert.Len(t, credits, 2)
	assert.Equal(t, "1.50", total.String())

	_, _, err = svc.AvailableCredits(ctx, colleague, "emp-1")
	require.ErrorIs(t, err, generic.ErrNotAuthorized)

	_, total, err = svc.AvailableCredits(ctx, manager, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "1.50", total.String())
}

func TestPreview_DoesNotWrite(t *testing.T) {
	m := newOrg()
	svc := newService(m)
	seedCredit(t, m, "c1", "emp-1", date(1), 1)

	plan, err := svc.Preview(context.Background(), employee, days(0.75))
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	requireCredit(t, m, "c1", 1, false)
}
