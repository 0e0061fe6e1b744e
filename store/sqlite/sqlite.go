/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements dayoff.TxStore and dayoff.Directory using SQLite. The
  PostgreSQL store (store/postgres) follows the same table layout; only the
  dialect and driver differ.

INTERFACES IMPLEMENTED:
  dayoff.CreditStore:  Credit ledger rows
  dayoff.RequestStore: Day-off requests (allocations as JSON)
  dayoff.TxStore:      WithTx over a database transaction
  dayoff.Directory:    Users, sections, departments

KEY TABLES:
  credits:          One row per compensatory working day
  day_off_requests: Requests with their allocation plan and provenance
  users:            Directory entries with role and section
  sections:         Team leader / manager assignment
  departments:      Department names

AMOUNTS:
  Balances are stored as TEXT in their fixed-precision form ("1.50") and
  parsed back through generic.ParseAmount, never as REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole callback, so a request's debits never interleave with another
  request's.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/compday.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := dayoff.NewService(store, store, logger)

SEE ALSO:
  - dayoff/store.go: Interface definitions
  - dayoff/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

// timeLayout keeps timestamps sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT,
		supervisor_id TEXT,
		manager_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sections_supervisor ON sections(supervisor_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		department_id TEXT,
		section_id TEXT,
		employee_no TEXT
	);

	-- Credits: the ledger. Rows are deleted once fully consumed and approved.
	CREATE TABLE IF NOT EXISTS credits (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		earned_on TEXT NOT NULL,
		label TEXT NOT NULL,
		remark TEXT NOT NULL,
		balance TEXT NOT NULL,
		initial_balance TEXT NOT NULL,
		consumed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Hot path: available credits for an owner in FIFO order
	CREATE INDEX IF NOT EXISTS idx_credits_owner_earned
		ON credits(owner_id, consumed, earned_on, created_at);

	CREATE TABLE IF NOT EXISTS day_off_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		team_leader_id TEXT,
		manager_id TEXT,
		section_id TEXT,
		department_id TEXT,
		compensation_day TEXT NOT NULL,
		compensation_date TEXT NOT NULL,
		remark TEXT,
		requested_balance TEXT NOT NULL,
		consumed_balance TEXT NOT NULL,
		allocations_json TEXT NOT NULL,
		debits_applied INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		team_leader_approved_by TEXT,
		team_leader_approved_at TEXT,
		approved_by TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee ON day_off_requests(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_team_leader ON day_off_requests(team_leader_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_manager ON day_off_requests(manager_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON day_off_requests(status, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CREDIT STORE
// =============================================================================

func (s *Store) SaveCredit(ctx context.Context, c dayoff.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCredit(ctx, s.db, c)
}

func (s *Store) GetCredit(ctx context.Context, id string) (*dayoff.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCredit(ctx, s.db, id)
}

func (s *Store) ListCredits(ctx context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCredits(ctx, s.db, ownerID, includeConsumed)
}

func (s *Store) DeleteCredit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM credits WHERE id = ?", id)
	return err
}

func saveCredit(ctx context.Context, q querier, c dayoff.Credit) error {
	query := `
		INSERT INTO credits (id, owner_id, earned_on, label, remark, balance,
			initial_balance, consumed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			earned_on = excluded.earned_on,
			label = excluded.label,
			remark = excluded.remark,
			balance = excluded.balance,
			consumed = excluded.consumed
	`

	_, err := q.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.EarnedOn.String(), c.Label, c.Remark,
		c.Balance.String(), c.InitialBalance.String(), c.Consumed,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save credit: %w", err)
	}
	return nil
}

const creditColumns = `id, owner_id, earned_on, label, remark, balance, initial_balance, consumed, created_at`

func getCredit(ctx context.Context, q querier, id string) (*dayoff.Credit, error) {
	row := q.QueryRowContext(ctx, "SELECT "+creditColumns+" FROM credits WHERE id = ?", id)
	c, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrCreditNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func listCredits(ctx context.Context, q querier, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	query := "SELECT " + creditColumns + " FROM credits WHERE owner_id = ?"
	if !includeConsumed {
		query += " AND consumed = 0"
	}
	query += " ORDER BY earned_on ASC, created_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var credits []dayoff.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredit(row scanner) (dayoff.Credit, error) {
	var c dayoff.Credit
	var earnedOn, balance, initial, created string
	if err := row.Scan(&c.ID, &c.OwnerID, &earnedOn, &c.Label, &c.Remark,
		&balance, &initial, &c.Consumed, &created); err != nil {
		return c, err
	}

	var err error
	if c.EarnedOn, err = generic.ParseDate(earnedOn); err != nil {
		return c, fmt.Errorf("credit %s: %w", c.ID, err)
	}
	if c.Balance, err = generic.ParseAmount(balance); err != nil {
		return c, fmt.Errorf("credit %s: %w", c.ID, err)
	}
	if c.InitialBalance, err = generic.ParseAmount(initial); err != nil {
		return c, fmt.Errorf("credit %s: %w", c.ID, err)
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r dayoff.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequest(ctx, s.db, r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*dayoff.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) ListRequests(ctx context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, filter)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM day_off_requests WHERE id = ?", id)
	return err
}

func saveRequest(ctx context.Context, q querier, r dayoff.Request) error {
	allocations, err := json.Marshal(r.Allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations: %w", err)
	}

	query := `
		INSERT INTO day_off_requests (id, employee_id, team_leader_id, manager_id,
			section_id, department_id, compensation_day, compensation_date, remark,
			requested_balance, consumed_balance, allocations_json, debits_applied, status,
			team_leader_approved_by, team_leader_approved_at, approved_by, approved_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			debits_applied = excluded.debits_applied,
			status = excluded.status,
			team_leader_approved_by = excluded.team_leader_approved_by,
			team_leader_approved_at = excluded.team_leader_approved_at,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`

	_, err = q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, nullString(r.TeamLeaderID), nullString(r.ManagerID),
		nullString(r.SectionID), nullString(r.DepartmentID),
		r.CompensationDay, r.CompensationDate.String(), nullString(r.Remark),
		r.RequestedBalance.String(), r.ConsumedBalance.String(), string(allocations),
		r.DebitsApplied, string(r.Status),
		nullString(r.TeamLeaderApprovedBy), nullTime(r.TeamLeaderApprovedAt),
		nullString(r.ApprovedBy), nullTime(r.ApprovedAt),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

const requestColumns = `id, employee_id, team_leader_id, manager_id, section_id, department_id,
	compensation_day, compensation_date, remark, requested_balance, consumed_balance,
	allocations_json, debits_applied, status, team_leader_approved_by, team_leader_approved_at,
	approved_by, approved_at, created_at, updated_at`

func getRequest(ctx context.Context, q querier, id string) (*dayoff.Request, error) {
	row := q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM day_off_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func listRequests(ctx context.Context, q querier, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	var (
		where []string
		args  []any
	)
	eq := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, column+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")+")")
		for _, v := range values {
			args = append(args, v)
		}
	}

	eq("employee_id", filter.EmployeeID)
	eq("team_leader_id", filter.TeamLeaderID)
	eq("manager_id", filter.ManagerID)
	eq("department_id", filter.DepartmentID)
	in("section_id", filter.SectionIDs)
	statuses := make([]string, len(filter.Statuses))
	for i, st := range filter.Statuses {
		statuses[i] = string(st)
	}
	in("status", statuses)
	if filter.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(*filter.CreatedBefore))
	}

	query := "SELECT " + requestColumns + " FROM day_off_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := []dayoff.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (dayoff.Request, error) {
	var (
		r                                          dayoff.Request
		teamLeaderID, managerID, sectionID, deptID sql.NullString
		remark, tlApprovedBy, approvedBy           sql.NullString
		tlApprovedAt, approvedAt                   sql.NullString
		compDate, requested, consumed, allocations string
		status, created, updated                   string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &teamLeaderID, &managerID, &sectionID, &deptID,
		&r.CompensationDay, &compDate, &remark, &requested, &consumed,
		&allocations, &r.DebitsApplied, &status, &tlApprovedBy, &tlApprovedAt,
		&approvedBy, &approvedAt, &created, &updated)
	if err != nil {
		return r, err
	}

	r.TeamLeaderID = teamLeaderID.String
	r.ManagerID = managerID.String
	r.SectionID = sectionID.String
	r.DepartmentID = deptID.String
	r.Remark = remark.String
	r.Status = dayoff.Status(status)
	r.TeamLeaderApprovedBy = tlApprovedBy.String
	r.TeamLeaderApprovedAt = parseNullTime(tlApprovedAt)
	r.ApprovedBy = approvedBy.String
	r.ApprovedAt = parseNullTime(approvedAt)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)

	if r.CompensationDate, err = generic.ParseDate(compDate); err != nil {
		return r, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if r.RequestedBalance, err = generic.ParseAmount(requested); err != nil {
		return r, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if r.ConsumedBalance, err = generic.ParseAmount(consumed); err != nil {
		return r, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(allocations), &r.Allocations); err != nil {
		return r, fmt.Errorf("request %s: failed to decode allocations: %w", r.ID, err)
	}
	return r, nil
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store dayoff.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the dayoff.Store handed to WithTx callbacks. The parent lock
// is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveCredit(ctx context.Context, c dayoff.Credit) error {
	return saveCredit(ctx, ts.tx, c)
}

func (ts *txStore) GetCredit(ctx context.Context, id string) (*dayoff.Credit, error) {
	return getCredit(ctx, ts.tx, id)
}

func (ts *txStore) ListCredits(ctx context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	return listCredits(ctx, ts.tx, ownerID, includeConsumed)
}

func (ts *txStore) DeleteCredit(ctx context.Context, id string) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM credits WHERE id = ?", id)
	return err
}

func (ts *txStore) SaveRequest(ctx context.Context, r dayoff.Request) error {
	return saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*dayoff.Request, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequests(ctx context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	return listRequests(ctx, ts.tx, filter)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id string) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM day_off_requests WHERE id = ?", id)
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

// SaveDepartment upserts a department.
func (s *Store) SaveDepartment(ctx context.Context, d dayoff.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, d.ID, d.Name)
	return err
}

// SaveSection upserts a section and its approver assignment.
func (s *Store) SaveSection(ctx context.Context, sec dayoff.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sections (id, name, department_id, supervisor_id, manager_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id,
			supervisor_id = excluded.supervisor_id,
			manager_id = excluded.manager_id
	`, sec.ID, sec.Name, nullString(sec.DepartmentID), nullString(sec.SupervisorID), nullString(sec.ManagerID))
	return err
}

// SaveUser upserts a directory user.
func (s *Store) SaveUser(ctx context.Context, u dayoff.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, department_id, section_id, employee_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			password_hash = excluded.password_hash,
			role = excluded.role,
			department_id = excluded.department_id,
			section_id = excluded.section_id,
			employee_no = excluded.employee_no
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role.String(),
		nullString(u.DepartmentID), nullString(u.SectionID), nullString(u.EmployeeNo))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: email %s already registered", generic.ErrInvalidRequest, u.Email)
	}
	return err
}

const userColumns = `id, name, email, password_hash, role, department_id, section_id, employee_no`

func (s *Store) GetUser(ctx context.Context, id string) (*dayoff.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*dayoff.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, "email = ?", email)
}

func (s *Store) getUser(ctx context.Context, cond string, arg string) (*dayoff.User, error) {
	var u dayoff.User
	var role string
	var deptID, sectionID, empNo sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &deptID, &sectionID, &empNo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrUserNotFound, arg)
	}
	if err != nil {
		return nil, err
	}

	if u.Role, err = generic.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.DepartmentID = deptID.String
	u.SectionID = sectionID.String
	u.EmployeeNo = empNo.String
	return &u, nil
}

// ResolveApprovers loads the employee's section and derives the chain.
func (s *Store) ResolveApprovers(ctx context.Context, employeeID string) (dayoff.Approvers, error) {
	u, err := s.GetUser(ctx, employeeID)
	if err != nil {
		return dayoff.Approvers{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var section *dayoff.Section
	if u.SectionID != "" {
		sec, err := s.getSection(ctx, u.SectionID)
		if err != nil {
			return dayoff.Approvers{}, err
		}
		section = sec
	}
	return dayoff.ApproversFor(u, section)
}

func (s *Store) getSection(ctx context.Context, id string) (*dayoff.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, department_id, supervisor_id, manager_id FROM sections WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	sections, err := scanSections(rows)
	if err != nil || len(sections) == 0 {
		return nil, err
	}
	return &sections[0], nil
}

func (s *Store) SectionsSupervisedBy(ctx context.Context, userID string) ([]dayoff.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, department_id, supervisor_id, manager_id FROM sections WHERE supervisor_id = ? ORDER BY id",
		userID)
	if err != nil {
		return nil, err
	}
	return scanSections(rows)
}

func scanSections(rows *sql.Rows) ([]dayoff.Section, error) {
	defer rows.Close()

	var sections []dayoff.Section
	for rows.Next() {
		var sec dayoff.Section
		var dept, supervisor, mgr sql.NullString
		if err := rows.Scan(&sec.ID, &sec.Name, &dept, &supervisor, &mgr); err != nil {
			return nil, err
		}
		sec.DepartmentID = dept.String
		sec.SupervisorID = supervisor.String
		sec.ManagerID = mgr.String
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"day_off_requests", "credits", "users", "sections", "departments"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
