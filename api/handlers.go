/*
handlers.go - HTTP API handlers for the day-off service

PURPOSE:
  Exposes the dayoff.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to the service.

ENDPOINTS:
  Auth:
    POST   /api/login                          Issue a bearer token
    GET    /api/health                         Liveness + store ping

  Credits:
    GET    /api/requests                       Available credits (?employee_id= for managers)
    POST   /api/requests                       Log a worked day
    PUT    /api/requests/{id}                  Edit a credit
    DELETE /api/requests/{id}                  Delete an untouched credit
    GET    /api/requests/balance               Total available + credits

  Day-off requests:
    POST   /api/requests/dayoff-request        Create a request
    POST   /api/requests/allocation-preview    Plan without committing
    GET    /api/requests/approve               Approval queue
    GET    /api/requests/mine                  Actor's own requests
    GET    /api/requests/archive               Approved requests in scope
    GET    /api/requests/dayoff/{id}           One request
    GET    /api/requests/dayoff/{id}/form.pdf  Printable form
    DELETE /api/requests/dayoff/{id}           Delete a terminal request
    POST   /api/requests/{id}/approve          Approve
    POST   /api/requests/{id}/reject           Reject

  Admin:
    POST   /api/admin/reconcile                Release abandoned provisional requests

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: the dayoff workflow
  - Backend: the store (also the user directory)
  - Reconciler: provisional-request cleanup
  - Secret/TokenTTL: token issuing

REQUEST FLOW:
  1. Resolve the actor from the request context (auth.Authenticate)
  2. Parse HTTP request
  3. Call the service with the explicit actor
  4. Serialize response
  5. Map errors through writeError

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/warp/compday/auth"
	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is a store that also serves as the user directory and can be
// seeded. Both SQL stores satisfy it.
type Backend interface {
	dayoff.TxStore
	dayoff.Directory

	SaveDepartment(ctx context.Context, d dayoff.Department) error
	SaveSection(ctx context.Context, s dayoff.Section) error
	SaveUser(ctx context.Context, u dayoff.User) error
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *dayoff.Service
	Reconciler *dayoff.Reconciler
	Backend    Backend
	Secret     string
	TokenTTL   time.Duration

	log zerolog.Logger

	// scenarioMu serializes scenario loads and guards currentScenario
	scenarioMu      sync.RWMutex
	currentScenario string
}

// NewHandler wires the service and reconciler over backend.
func NewHandler(backend Backend, secret string, tokenTTL, grace time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		Service:    dayoff.NewService(backend, backend, log),
		Reconciler: dayoff.NewReconciler(backend, grace, log),
		Backend:    backend,
		Secret:     secret,
		TokenTTL:   tokenTTL,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// requireActor writes 401 when the request carries no valid token.
func requireActor(w http.ResponseWriter, r *http.Request) (generic.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, errUnauthenticated)
		return generic.Actor{}, false
	}
	return actor, true
}

// fail writes the error and logs server-side failures with the request id.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	writeError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login exchanges email and password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, badRequest("email", "email and password are required"))
		return
	}

	user, err := h.Backend.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			writeError(w, errInvalidCredentials)
			return
		}
		h.fail(w, r, err)
		return
	}
	if user.PasswordHash == "" || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		writeError(w, errInvalidCredentials)
		return
	}

	actor := generic.Actor{ID: user.ID, Role: user.Role}
	token, err := auth.GenerateToken(h.Secret, actor, h.TokenTTL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("role", user.Role.String()).Msg("User logged in")
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.TokenTTL).UTC().Format(time.RFC3339),
		User:      toUserDTO(user),
	})
}

// Health pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.Ping(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// ListCredits returns available credits. Managers and admins may pass
// ?employee_id= to look at someone else's.
func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	credits, _, err := h.Service.AvailableCredits(r.Context(), actor, r.URL.Query().Get("employee_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditDTOs(credits))
}

// CreateCredit logs a worked day for the actor.
func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateCreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	earned, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := parseAmountField("balance", req.Balance)
	if err != nil {
		writeError(w, err)
		return
	}

	credit, err := h.Service.CreateCredit(r.Context(), actor, dayoff.CreditInput{
		Label:    req.Day,
		EarnedOn: earned,
		Remark:   req.Remark,
		Balance:  balance,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditDTO(*credit))
}

// UpdateCredit edits a credit's day label, date or remark.
func (h *Handler) UpdateCredit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req UpdateCreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	update := dayoff.CreditUpdate{Label: req.Day, Remark: req.Remark}
	if req.Date != nil {
		earned, err := parseDateField("date", *req.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		update.EarnedOn = &earned
	}

	credit, err := h.Service.UpdateCredit(r.Context(), actor, chi.URLParam(r, "id"), update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditDTO(*credit))
}

// DeleteCredit removes a credit nothing has drawn from.
func (h *Handler) DeleteCredit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.DeleteCredit(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// GetBalance returns the actor's total available balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	credits, total, err := h.Service.AvailableCredits(r.Context(), actor, r.URL.Query().Get("employee_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		employeeID = actor.ID
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID: employeeID,
		Total:      total,
		Credits:    toCreditDTOs(credits),
	})
}

// =============================================================================
// DAY-OFF REQUEST HANDLERS
// =============================================================================

// CreateDayOffRequest converts credit into a pending request.
func (h *Handler) CreateDayOffRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateDayOffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	days, err := parseAmountField("daysRequested", req.DaysRequested)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := parseDateField("compensationDate", req.CompensationDate)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.Service.CreateRequest(r.Context(), actor, dayoff.CreateRequestInput{
		DaysRequested:    days,
		CompensationDay:  req.CompensationDay,
		CompensationDate: date,
		Remark:           req.Remark,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateDayOffResponse{ID: created.ID, Request: toRequestDTO(*created)})
}

// AllocationPreview shows which credits a request would draw from.
func (h *Handler) AllocationPreview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req AllocationPreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	days, err := parseAmountField("daysRequested", req.DaysRequested)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := h.Service.Preview(r.Context(), actor, days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// ApprovalQueue lists requests waiting on the actor.
func (h *Handler) ApprovalQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	requests, err := h.Service.ApprovalQueue(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(actor, requests))
}

// MyRequests lists the actor's own requests.
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	requests, err := h.Service.MyRequests(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(actor, requests))
}

// Archive lists approved requests scoped by role.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	requests, err := h.Service.Archive(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(actor, requests))
}

// GetDayOffRequest returns one request.
func (h *Handler) GetDayOffRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dto := toRequestDTO(*req)
	dto.AllowedActions = dayoff.Allowed(actor, req)
	writeJSON(w, http.StatusOK, dto)
}

// ApproveRequest advances a request one approval stage.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Approve)
}

// RejectRequest rejects a request and returns its credit.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	step func(context.Context, generic.Actor, string) (*dayoff.Request, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	req, err := step(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// DeleteDayOffRequest removes an approved or rejected request.
func (h *Handler) DeleteDayOffRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerReconcile runs the provisional-request reconciler now.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.Is(generic.RoleAdmin) {
		writeError(w, generic.ErrNotAuthorized)
		return
	}

	n, err := h.Reconciler.Run(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Reconciled: n})
}
