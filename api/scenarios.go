/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	organisation: departments, sections with their approvers, users of every
	role, and a few compensatory credits to spend.

AVAILABLE SCENARIOS:

	demo:          Two departments, full approval chains, credits for employees
	approver-gap:  Same as demo, but one section has no manager assigned

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create departments and sections
 3. Create users with bcrypt-hashed passwords
 4. Add credits

USAGE:

	POST /api/scenarios/load
	{"scenario_id": "demo"}

	or on startup: server -seed=demo

	Every demo user logs in with DemoPassword.

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Backend interface
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/compday/auth"
	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "compday"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo",
		Name:        "Demo Organisation",
		Description: "Operations and Sales departments with team leaders, managers and banked credits",
	},
	{
		ID:          "approver-gap",
		Name:        "Approver Gap",
		Description: "Demo organisation where the Sales desk has no manager assigned",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.CurrentScenario()
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario. Admin only.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.Is(generic.RoleAdmin) {
		writeError(w, generic.ErrNotAuthorized)
		return
	}

	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.ApplyScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// CurrentScenario returns the id of the last loaded scenario, or "".
func (h *Handler) CurrentScenario() string {
	h.scenarioMu.RLock()
	defer h.scenarioMu.RUnlock()
	return h.currentScenario
}

// ApplyScenario resets the backend and loads the named scenario. Loads run
// one at a time.
func (h *Handler) ApplyScenario(ctx context.Context, id string) error {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	var err error
	switch id {
	case "demo":
		err = loadDemoScenario(ctx, h.Backend, false)
	case "approver-gap":
		err = loadDemoScenario(ctx, h.Backend, true)
	default:
		return badRequest("scenario_id", fmt.Sprintf("unknown scenario %q", id))
	}
	if err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, err)
	}

	h.currentScenario = id
	h.log.Info().Str("scenario", id).Msg("Scenario loaded")
	return nil
}

// =============================================================================
// DEMO ORGANISATION
// =============================================================================

func loadDemoScenario(ctx context.Context, b Backend, withoutSalesManager bool) error {
	if err := b.Reset(ctx); err != nil {
		return err
	}

	for _, d := range []dayoff.Department{
		{ID: "ops", Name: "Operations"},
		{ID: "sales", Name: "Sales"},
	} {
		if err := b.SaveDepartment(ctx, d); err != nil {
			return err
		}
	}

	salesManager := "mgr-sales"
	if withoutSalesManager {
		salesManager = ""
	}
	for _, s := range []dayoff.Section{
		{ID: "line-a", Name: "Line A", DepartmentID: "ops", SupervisorID: "tl-ops", ManagerID: "mgr-ops"},
		{ID: "desk", Name: "Sales Desk", DepartmentID: "sales", SupervisorID: "tl-sales", ManagerID: salesManager},
	} {
		if err := b.SaveSection(ctx, s); err != nil {
			return err
		}
	}

	// One hash for everyone keeps seeding fast.
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	users := []dayoff.User{
		{ID: "admin", Name: "Avery Admin", Email: "admin@compday.local", Role: generic.RoleAdmin},
		{ID: "mgr-ops", Name: "Fay Morgan", Email: "fay@compday.local", Role: generic.RoleManager, DepartmentID: "ops"},
		{ID: "tl-ops", Name: "Dana Reyes", Email: "dana@compday.local", Role: generic.RoleTeamLeader, DepartmentID: "ops", SectionID: "line-a", EmployeeNo: "E-010"},
		{ID: "emp-ana", Name: "Ana Silva", Email: "ana@compday.local", Role: generic.RoleEmployee, DepartmentID: "ops", SectionID: "line-a", EmployeeNo: "E-101"},
		{ID: "emp-ben", Name: "Ben Okafor", Email: "ben@compday.local", Role: generic.RoleEmployee, DepartmentID: "ops", SectionID: "line-a", EmployeeNo: "E-102"},
		{ID: "mgr-sales", Name: "Gil Novak", Email: "gil@compday.local", Role: generic.RoleManager, DepartmentID: "sales"},
		{ID: "tl-sales", Name: "Hana Ito", Email: "hana@compday.local", Role: generic.RoleTeamLeader, DepartmentID: "sales", SectionID: "desk", EmployeeNo: "E-020"},
		{ID: "emp-cara", Name: "Cara Lind", Email: "cara@compday.local", Role: generic.RoleEmployee, DepartmentID: "sales", SectionID: "desk", EmployeeNo: "E-201"},
	}
	for _, u := range users {
		u.PasswordHash = hash
		if err := b.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	now := time.Now()
	credits := []struct {
		owner   string
		earned  generic.TimePoint
		balance float64
		remark  string
	}{
		{"emp-ana", generic.NewTimePoint(2025, time.March, 1), 1.5, "Saturday stocktake"},
		{"emp-ana", generic.NewTimePoint(2025, time.March, 8), 1.5, "Weekend line changeover"},
		{"emp-ana", generic.NewTimePoint(2025, time.March, 20), 0.5, "Evening shift cover"},
		{"emp-ben", generic.NewTimePoint(2025, time.March, 8), 1, "Weekend line changeover"},
		{"emp-cara", generic.NewTimePoint(2025, time.April, 5), 1, "Trade fair"},
	}
	for i, c := range credits {
		amount := generic.NewAmount(c.balance)
		err := b.SaveCredit(ctx, dayoff.Credit{
			ID:             uuid.NewString(),
			OwnerID:        c.owner,
			EarnedOn:       c.earned,
			Label:          c.earned.DayName(),
			Remark:         c.remark,
			Balance:        amount,
			InitialBalance: amount,
			CreatedAt:      now.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
