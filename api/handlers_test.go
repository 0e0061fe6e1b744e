/*
handlers_test.go - HTTP tests for the day-off API

Tests run the full router (auth, handlers, error mapping) against an
in-memory SQLite store loaded with the demo scenario:

	ops/line-a:  emp-ana (3.50 days banked), emp-ben (1.00), tl-ops, mgr-ops
	sales/desk:  emp-cara (1.00), tl-sales, mgr-sales
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compday/auth"
	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
	"github.com/warp/compday/store/sqlite"
)

const testSecret = "test-secret"

var demoRoles = map[string]generic.Role{
	"admin":     generic.RoleAdmin,
	"mgr-ops":   generic.RoleManager,
	"tl-ops":    generic.RoleTeamLeader,
	"emp-ana":   generic.RoleEmployee,
	"emp-ben":   generic.RoleEmployee,
	"mgr-sales": generic.RoleManager,
	"tl-sales":  generic.RoleTeamLeader,
	"emp-cara":  generic.RoleEmployee,
}

type testEnv struct {
	t      *testing.T
	store  *sqlite.Store
	h      *Handler
	router http.Handler
}

func newTestEnv(t *testing.T, scenario string) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, testSecret, time.Hour, time.Minute, zerolog.Nop())
	require.NoError(t, h.ApplyScenario(context.Background(), scenario))
	return &testEnv{t: t, store: store, h: h, router: NewRouter(h, []string{"*"})}
}

// token signs a bearer token for a demo user.
func (e *testEnv) token(userID string) string {
	e.t.Helper()
	role, ok := demoRoles[userID]
	require.True(e.t, ok, "unknown demo user %s", userID)
	tok, err := auth.GenerateToken(testSecret, generic.Actor{ID: userID, Role: role}, time.Hour)
	require.NoError(e.t, err)
	return tok
}

// do sends a request as userID ("" for anonymous).
func (e *testEnv) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doRaw sends a literal JSON body as userID.
func (e *testEnv) doRaw(method, path, userID, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token(userID))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	requireStatus(t, rec, status)
	assert.Equal(t, code, decode[ErrorResponse](t, rec).Code)
}

func (e *testEnv) balance(userID string) BalanceDTO {
	e.t.Helper()
	rec := e.do(http.MethodGet, "/api/requests/balance", userID, nil)
	requireStatus(e.t, rec, http.StatusOK)
	return decode[BalanceDTO](e.t, rec)
}

func (e *testEnv) createDayOff(userID string, days any) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(http.MethodPost, "/api/requests/dayoff-request", userID, map[string]any{
		"daysRequested":    days,
		"compensationDate": "2025-04-18",
		"remark":           "family visit",
	})
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	e := newTestEnv(t, "demo")

	t.Run("valid credentials issue a token for the user's role", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/login", "", LoginRequest{Email: "Ana@compday.local", Password: DemoPassword})
		requireStatus(t, rec, http.StatusOK)

		resp := decode[LoginResponse](t, rec)
		assert.Equal(t, "emp-ana", resp.User.ID)
		assert.Equal(t, generic.RoleEmployee, resp.User.Role)

		claims, err := auth.ParseToken(testSecret, resp.Token)
		require.NoError(t, err)
		actor, err := claims.Actor()
		require.NoError(t, err)
		assert.Equal(t, generic.Actor{ID: "emp-ana", Role: generic.RoleEmployee}, actor)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/login", "", LoginRequest{Email: "ana@compday.local", Password: "nope"})
		requireErrorCode(t, rec, http.StatusUnauthorized, "invalid_credentials")
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/login", "", LoginRequest{Email: "ghost@compday.local", Password: DemoPassword})
		requireErrorCode(t, rec, http.StatusUnauthorized, "invalid_credentials")
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/login", "", LoginRequest{Email: "ana@compday.local"})
		requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
	})
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "demo")
	rec := e.do(http.MethodGet, "/api/health", "", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t, "demo")

	for _, path := range []string{"/api/requests", "/api/requests/mine", "/api/requests/approve", "/api/requests/archive"} {
		rec := e.do(http.MethodGet, path, "", nil)
		requireErrorCode(t, rec, http.StatusUnauthorized, "unauthenticated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/requests/mine", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	requireErrorCode(t, rec, http.StatusUnauthorized, "unauthenticated")
}

// =============================================================================
// CREDITS
// =============================================================================

func TestCredits_CreateUpdateDelete(t *testing.T) {
	e := newTestEnv(t, "demo")

	// GIVEN: Ben logs a half day worked on a Saturday
	rec := e.do(http.MethodPost, "/api/requests", "emp-ben", map[string]any{
		"date":    "2025-05-03",
		"remark":  "inventory count",
		"balance": 0.5,
	})
	requireStatus(t, rec, http.StatusCreated)
	created := decode[CreditDTO](t, rec)
	assert.Equal(t, "Saturday", created.Day)
	assert.Equal(t, "0.50", created.Balance.String())
	assert.Equal(t, "emp-ben", created.OwnerID)
	assert.Equal(t, "1.50", e.balance("emp-ben").Total.String())

	// WHEN: He edits the remark
	rec = e.do(http.MethodPut, "/api/requests/"+created.ID, "emp-ben", map[string]any{"remark": "stock count"})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "stock count", decode[CreditDTO](t, rec).Remark)

	// THEN: A colleague cannot touch it, but he can delete it
	rec = e.do(http.MethodDelete, "/api/requests/"+created.ID, "emp-ana", nil)
	requireErrorCode(t, rec, http.StatusForbidden, "not_authorized")

	rec = e.do(http.MethodDelete, "/api/requests/"+created.ID, "emp-ben", nil)
	requireStatus(t, rec, http.StatusOK)

	rec = e.do(http.MethodDelete, "/api/requests/"+created.ID, "emp-ben", nil)
	requireErrorCode(t, rec, http.StatusNotFound, "credit_not_found")
}

func TestCredits_Validation(t *testing.T) {
	e := newTestEnv(t, "demo")

	rec := e.do(http.MethodPost, "/api/requests", "emp-ben", map[string]any{"date": "2025-05-03"})
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")

	rec = e.do(http.MethodPost, "/api/requests", "emp-ben", map[string]any{"date": "03/05/2025", "remark": "x"})
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")

	rec = e.do(http.MethodPost, "/api/requests", "emp-ben", map[string]any{"date": "2025-05-03", "remark": "x", "balance": "-1"})
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestCredits_DeleteDrawnCreditConflicts(t *testing.T) {
	e := newTestEnv(t, "demo")

	// GIVEN: A 2-day request drew 0.50 from Ana's second credit
	requireStatus(t, e.createDayOff("emp-ana", 2), http.StatusCreated)

	credits := e.balance("emp-ana").Credits
	require.Len(t, credits, 2)
	assert.Equal(t, "1.00", credits[0].Balance.String())

	// WHEN/THEN: Deleting it is a conflict
	rec := e.do(http.MethodDelete, "/api/requests/"+credits[0].ID, "emp-ana", nil)
	requireErrorCode(t, rec, http.StatusConflict, "credit_in_use")
}

func TestListCredits_OtherEmployee(t *testing.T) {
	e := newTestEnv(t, "demo")

	rec := e.do(http.MethodGet, "/api/requests?employee_id=emp-ana", "emp-ben", nil)
	requireErrorCode(t, rec, http.StatusForbidden, "not_authorized")

	rec = e.do(http.MethodGet, "/api/requests?employee_id=emp-ana", "mgr-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	credits := decode[[]CreditDTO](t, rec)
	require.Len(t, credits, 3)
	assert.Equal(t, "2025-03-01", credits[0].Date, "oldest first")
}

// =============================================================================
// DAY-OFF REQUESTS
// =============================================================================

func TestDayOffRequest_TwoStageApproval(t *testing.T) {
	// GIVEN: Ana has 1.50 + 1.50 + 0.50 banked
	// WHEN: She requests 2 days and both approvers sign off
	// THEN: The first credit is gone, the second keeps 1.00, the form prints

	e := newTestEnv(t, "demo")
	assert.Equal(t, "3.50", e.balance("emp-ana").Total.String())

	rec := e.do(http.MethodPost, "/api/requests/allocation-preview", "emp-ana", map[string]any{"daysRequested": "2"})
	requireStatus(t, rec, http.StatusOK)
	plan := decode[PlanDTO](t, rec)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "1.50", plan.Allocations[0].Amount.String())
	assert.Equal(t, "0.50", plan.Allocations[1].Amount.String())
	assert.Equal(t, "2.00", plan.Total.String())
	assert.Equal(t, "3.50", e.balance("emp-ana").Total.String(), "preview does not debit")

	rec = e.createDayOff("emp-ana", 2)
	requireStatus(t, rec, http.StatusCreated)
	created := decode[CreateDayOffResponse](t, rec)
	assert.Equal(t, dayoff.StatusPending, created.Request.Status)
	assert.Equal(t, "tl-ops", created.Request.TeamLeaderID)
	assert.Equal(t, "mgr-ops", created.Request.ManagerID)
	assert.Equal(t, "Friday", created.Request.CompensationDay)
	assert.Equal(t, "1.50", e.balance("emp-ana").Total.String())

	// Team leader queue
	rec = e.do(http.MethodGet, "/api/requests/approve", "tl-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	queue := decode[[]RequestDTO](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, created.ID, queue[0].ID)
	assert.Equal(t, []dayoff.Action{dayoff.ActionApprove, dayoff.ActionReject}, queue[0].AllowedActions)

	rec = e.do(http.MethodPost, "/api/requests/"+created.ID+"/approve", "tl-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, dayoff.StatusTeamLeaderApproved, decode[RequestDTO](t, rec).Status)

	// Manager queue
	rec = e.do(http.MethodGet, "/api/requests/approve", "mgr-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	require.Len(t, decode[[]RequestDTO](t, rec), 1)

	rec = e.do(http.MethodPost, "/api/requests/"+created.ID+"/approve", "mgr-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	final := decode[RequestDTO](t, rec)
	assert.Equal(t, dayoff.StatusApproved, final.Status)
	assert.Equal(t, "tl-ops", final.TeamLeaderApprovedBy)
	assert.Equal(t, "mgr-ops", final.ApprovedBy)
	assert.NotEmpty(t, final.ApprovedAt)

	credits := e.balance("emp-ana").Credits
	require.Len(t, credits, 2)
	assert.Equal(t, "2025-03-08", credits[0].Date)
	assert.Equal(t, "1.00", credits[0].Balance.String())
	assert.Equal(t, "1.50", e.balance("emp-ana").Total.String())

	// Archive scoping
	rec = e.do(http.MethodGet, "/api/requests/archive", "mgr-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]RequestDTO](t, rec), 1)

	rec = e.do(http.MethodGet, "/api/requests/archive", "mgr-sales", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[[]RequestDTO](t, rec))

	rec = e.do(http.MethodGet, "/api/requests/archive", "tl-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]RequestDTO](t, rec), 1)

	// Printable form
	rec = e.do(http.MethodGet, "/api/requests/dayoff/"+created.ID+"/form.pdf", "emp-ana", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestDayOffRequest_InsufficientBalance(t *testing.T) {
	e := newTestEnv(t, "demo")

	rec := e.createDayOff("emp-ben", 2)
	requireErrorCode(t, rec, http.StatusBadRequest, "insufficient_balance")
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "shortfall 1.00")

	assert.Equal(t, "1.00", e.balance("emp-ben").Total.String(), "nothing debited")
	rec = e.do(http.MethodGet, "/api/requests/mine", "emp-ben", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[[]RequestDTO](t, rec))
}

func TestDayOffRequest_ApproverNotConfigured(t *testing.T) {
	e := newTestEnv(t, "approver-gap")

	rec := e.createDayOff("emp-cara", 1)
	requireErrorCode(t, rec, http.StatusBadRequest, "approver_not_configured")
	assert.Equal(t, "1.00", e.balance("emp-cara").Total.String())
}

func TestDayOffRequest_InvalidInput(t *testing.T) {
	e := newTestEnv(t, "demo")

	requireErrorCode(t, e.createDayOff("emp-ana", 0), http.StatusBadRequest, "invalid_request")
	requireErrorCode(t, e.createDayOff("emp-ana", "two"), http.StatusBadRequest, "invalid_request")

	rec := e.do(http.MethodPost, "/api/requests/dayoff-request", "emp-ana", map[string]any{"daysRequested": 1})
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "compensationDate")
}

func TestDayOffRequest_FormBody(t *testing.T) {
	// GIVEN: Ana has 3.50 days banked
	// WHEN: The day-off form posts every field
	// THEN: The request is created with the submitted day, date and remark

	e := newTestEnv(t, "demo")
	rec := e.doRaw(http.MethodPost, "/api/requests/dayoff-request", "emp-ana",
		`{"daysRequested":2,"compensationDay":"Friday","compensationDate":"2026-11-20","remark":"x"}`)

	requireStatus(t, rec, http.StatusCreated)
	created := decode[CreateDayOffResponse](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "2.00", created.Request.RequestedBalance.String())
	assert.Equal(t, "Friday", created.Request.CompensationDay)
	assert.Equal(t, "2026-11-20", created.Request.CompensationDate)
	assert.Equal(t, "x", created.Request.Remark)
	assert.Contains(t, rec.Body.String(), `"credit_id"`)
	assert.Equal(t, "1.50", e.balance("emp-ana").Total.String())
}

func TestAmountInput_OutOfRange(t *testing.T) {
	// GIVEN: Amounts with huge exponents or beyond a year of days
	// WHEN: They are posted as days or as a credit balance
	// THEN: Each is refused with 400 before reaching the ledger

	e := newTestEnv(t, "demo")
	for _, raw := range []string{"1e900000000", "-1e-900000000", "367"} {
		t.Run(raw, func(t *testing.T) {
			var recs []*httptest.ResponseRecorder
			done := make(chan struct{})
			go func() {
				defer close(done)
				recs = append(recs,
					e.doRaw(http.MethodPost, "/api/requests/allocation-preview", "emp-ana",
						`{"daysRequested":`+raw+`}`),
					e.doRaw(http.MethodPost, "/api/requests/dayoff-request", "emp-ana",
						`{"daysRequested":`+raw+`,"compensationDate":"2025-04-18"}`),
					e.doRaw(http.MethodPost, "/api/requests", "emp-ben",
						`{"date":"2025-05-03","remark":"x","balance":`+raw+`}`),
				)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("amount %s was not refused promptly", raw)
			}
			for _, rec := range recs {
				requireErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
			}
		})
	}
	assert.Equal(t, "3.50", e.balance("emp-ana").Total.String())
}

func TestDayOffRequest_TransitionErrors(t *testing.T) {
	e := newTestEnv(t, "demo")
	rec := e.createDayOff("emp-ana", 1)
	requireStatus(t, rec, http.StatusCreated)
	id := decode[CreateDayOffResponse](t, rec).ID

	// Another section's team leader
	rec = e.do(http.MethodPost, "/api/requests/"+id+"/approve", "tl-sales", nil)
	requireErrorCode(t, rec, http.StatusForbidden, "not_authorized")

	// The employee
	rec = e.do(http.MethodPost, "/api/requests/"+id+"/approve", "emp-ana", nil)
	requireErrorCode(t, rec, http.StatusForbidden, "not_authorized")

	// Manager before the team leader
	rec = e.do(http.MethodPost, "/api/requests/"+id+"/approve", "mgr-ops", nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_transition")

	rec = e.do(http.MethodPost, "/api/requests/missing/approve", "tl-ops", nil)
	requireErrorCode(t, rec, http.StatusNotFound, "request_not_found")
}

func TestDayOffRequest_RejectRestoresBalance(t *testing.T) {
	e := newTestEnv(t, "demo")
	rec := e.createDayOff("emp-ana", 2)
	requireStatus(t, rec, http.StatusCreated)
	id := decode[CreateDayOffResponse](t, rec).ID
	assert.Equal(t, "1.50", e.balance("emp-ana").Total.String())

	rec = e.do(http.MethodPost, "/api/requests/"+id+"/reject", "tl-ops", nil)
	requireStatus(t, rec, http.StatusOK)
	rejected := decode[RequestDTO](t, rec)
	assert.Equal(t, dayoff.StatusRejected, rejected.Status)
	assert.Equal(t, "tl-ops", rejected.ApprovedBy)

	assert.Equal(t, "3.50", e.balance("emp-ana").Total.String())

	rec = e.do(http.MethodPost, "/api/requests/"+id+"/approve", "mgr-ops", nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_transition")
}

func TestDayOffRequest_Visibility(t *testing.T) {
	e := newTestEnv(t, "demo")
	rec := e.createDayOff("emp-ana", 1)
	requireStatus(t, rec, http.StatusCreated)
	id := decode[CreateDayOffResponse](t, rec).ID
	path := "/api/requests/dayoff/" + id

	for _, viewer := range []string{"emp-ana", "tl-ops", "mgr-ops", "admin"} {
		requireStatus(t, e.do(http.MethodGet, path, viewer, nil), http.StatusOK)
	}
	for _, outsider := range []string{"emp-ben", "emp-cara", "tl-sales", "mgr-sales"} {
		requireErrorCode(t, e.do(http.MethodGet, path, outsider, nil), http.StatusForbidden, "not_authorized")
	}
	requireErrorCode(t, e.do(http.MethodGet, path+"/form.pdf", "emp-cara", nil), http.StatusForbidden, "not_authorized")

	rec = e.do(http.MethodGet, path, "tl-ops", nil)
	assert.Equal(t, []dayoff.Action{dayoff.ActionApprove, dayoff.ActionReject}, decode[RequestDTO](t, rec).AllowedActions)

	requireErrorCode(t, e.do(http.MethodGet, "/api/requests/dayoff/missing", "admin", nil), http.StatusNotFound, "request_not_found")
}

func TestApprovalQueue_EmployeeForbidden(t *testing.T) {
	e := newTestEnv(t, "demo")
	requireErrorCode(t, e.do(http.MethodGet, "/api/requests/approve", "emp-ana", nil), http.StatusForbidden, "not_authorized")
}

func TestMyRequests(t *testing.T) {
	e := newTestEnv(t, "demo")
	requireStatus(t, e.createDayOff("emp-ana", 0.5), http.StatusCreated)
	requireStatus(t, e.createDayOff("emp-ana", 1), http.StatusCreated)

	rec := e.do(http.MethodGet, "/api/requests/mine", "emp-ana", nil)
	requireStatus(t, rec, http.StatusOK)
	mine := decode[[]RequestDTO](t, rec)
	require.Len(t, mine, 2)
	assert.Equal(t, "1.00", mine[0].RequestedBalance.String(), "newest first")
	assert.Empty(t, mine[0].AllowedActions)

	rec = e.do(http.MethodGet, "/api/requests/mine", "emp-ben", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[[]RequestDTO](t, rec))
}

func TestDeleteDayOffRequest(t *testing.T) {
	e := newTestEnv(t, "demo")
	rec := e.createDayOff("emp-ana", 1)
	requireStatus(t, rec, http.StatusCreated)
	id := decode[CreateDayOffResponse](t, rec).ID
	path := "/api/requests/dayoff/" + id

	// Open requests cannot be deleted
	requireErrorCode(t, e.do(http.MethodDelete, path, "mgr-ops", nil), http.StatusBadRequest, "invalid_transition")

	requireStatus(t, e.do(http.MethodPost, "/api/requests/"+id+"/reject", "mgr-ops", nil), http.StatusOK)

	requireErrorCode(t, e.do(http.MethodDelete, path, "emp-ana", nil), http.StatusForbidden, "not_authorized")
	requireErrorCode(t, e.do(http.MethodDelete, path, "mgr-sales", nil), http.StatusForbidden, "not_authorized")
	requireStatus(t, e.do(http.MethodDelete, path, "mgr-ops", nil), http.StatusOK)
	requireErrorCode(t, e.do(http.MethodGet, path, "mgr-ops", nil), http.StatusNotFound, "request_not_found")
}

// =============================================================================
// ADMIN
// =============================================================================

func TestTriggerReconcile(t *testing.T) {
	e := newTestEnv(t, "demo")
	ctx := context.Background()

	// GIVEN: A provisional request abandoned after its first debit
	credits, err := e.store.ListCredits(ctx, "emp-ben", false)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	_, err = dayoff.NewLedger(e.store).Debit(ctx, credits[0].ID, generic.NewAmount(1))
	require.NoError(t, err)
	require.NoError(t, e.store.SaveRequest(ctx, dayoff.Request{
		ID:               "stale",
		EmployeeID:       "emp-ben",
		CompensationDay:  "Friday",
		CompensationDate: generic.NewTimePoint(2025, time.April, 18),
		RequestedBalance: generic.NewAmount(1),
		ConsumedBalance:  generic.NewAmount(1),
		Allocations:      []dayoff.Allocation{{CreditID: credits[0].ID, Amount: generic.NewAmount(1), ResultingBalance: generic.Zero()}},
		DebitsApplied:    1,
		Status:           dayoff.StatusProvisional,
		CreatedAt:        time.Now().Add(-time.Hour),
		UpdatedAt:        time.Now().Add(-time.Hour),
	}))
	assert.Equal(t, "0.00", e.balance("emp-ben").Total.String())

	// WHEN: An employee tries, then an admin triggers reconciliation
	requireErrorCode(t, e.do(http.MethodPost, "/api/admin/reconcile", "emp-ben", nil), http.StatusForbidden, "not_authorized")

	rec := e.do(http.MethodPost, "/api/admin/reconcile", "admin", nil)
	requireStatus(t, rec, http.StatusOK)

	// THEN: The debit is restored and the request is gone
	assert.Equal(t, 1, decode[ReconcileResponse](t, rec).Reconciled)
	assert.Equal(t, "1.00", e.balance("emp-ben").Total.String())
	_, err = e.store.GetRequest(ctx, "stale")
	require.ErrorIs(t, err, generic.ErrRequestNotFound)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t, "demo")
	requireErrorCode(t, e.do(http.MethodGet, "/api/nope", "admin", nil), http.StatusNotFound, "not_found")
}
