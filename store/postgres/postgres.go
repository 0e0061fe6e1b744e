/*
Package postgres provides a PostgreSQL-backed implementation of the storage
interfaces using pgx.

PURPOSE:
  Same contract as store/sqlite, for multi-instance deployments. The
  database does the concurrency control: inside WithTx every credit and
  request read takes a row lock (SELECT ... FOR UPDATE), so two requests
  drawing on the same credits serialize on the rows instead of a process
  mutex.

MIGRATIONS:
  SQL files under migrations/ are embedded and applied in name order on
  New(). Applied versions are tracked in schema_migrations.

TYPES:
  balances      NUMERIC(10,2)  <->  generic.Amount (decimal.Decimal)
  dates         DATE           <->  generic.TimePoint
  allocations   JSONB          <->  []dayoff.Allocation

SEE ALSO:
  - dayoff/store.go: Interface definitions
  - store/sqlite/sqlite.go: Default single-node store
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements dayoff.TxStore and dayoff.Directory on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects to databaseURL and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"); err != nil {
		return err
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		version := strings.TrimSuffix(strings.TrimPrefix(file, "migrations/"), ".sql")

		var count int
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = $1", version).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		sqlBytes, err := migrations.ReadFile(file)
		if err != nil {
			return err
		}

		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// CREDITS
// =============================================================================

const creditColumns = `id, owner_id, earned_on, label, remark, balance, initial_balance, consumed, created_at`

func (s *Store) SaveCredit(ctx context.Context, c dayoff.Credit) error {
	return saveCredit(ctx, s.pool, c)
}

func (s *Store) GetCredit(ctx context.Context, id string) (*dayoff.Credit, error) {
	return getCredit(ctx, s.pool, id, "")
}

func (s *Store) ListCredits(ctx context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	return listCredits(ctx, s.pool, ownerID, includeConsumed, "")
}

func (s *Store) DeleteCredit(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM credits WHERE id = $1", id)
	return err
}

func saveCredit(ctx context.Context, q querier, c dayoff.Credit) error {
	_, err := q.Exec(ctx, `
		INSERT INTO credits (`+creditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			earned_on = EXCLUDED.earned_on,
			label = EXCLUDED.label,
			remark = EXCLUDED.remark,
			balance = EXCLUDED.balance,
			consumed = EXCLUDED.consumed
	`, c.ID, c.OwnerID, c.EarnedOn.Time, c.Label, c.Remark,
		c.Balance.Round().Value, c.InitialBalance.Round().Value, c.Consumed, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credit: %w", err)
	}
	return nil
}

func getCredit(ctx context.Context, q querier, id, lock string) (*dayoff.Credit, error) {
	c, err := scanCredit(q.QueryRow(ctx, "SELECT "+creditColumns+" FROM credits WHERE id = $1"+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrCreditNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func listCredits(ctx context.Context, q querier, ownerID string, includeConsumed bool, lock string) ([]dayoff.Credit, error) {
	query := "SELECT " + creditColumns + " FROM credits WHERE owner_id = $1"
	if !includeConsumed {
		query += " AND NOT consumed"
	}
	query += " ORDER BY earned_on, created_at, id" + lock

	rows, err := q.Query(ctx, query, ownerID)
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

func scanCredit(row pgx.Row) (dayoff.Credit, error) {
	var c dayoff.Credit
	var earnedOn time.Time
	err := row.Scan(&c.ID, &c.OwnerID, &earnedOn, &c.Label, &c.Remark,
		&c.Balance.Value, &c.InitialBalance.Value, &c.Consumed, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.EarnedOn = generic.FromTime(earnedOn)
	c.Balance = c.Balance.Round()
	c.InitialBalance = c.InitialBalance.Round()
	return c, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, team_leader_id, manager_id, section_id, department_id,
	compensation_day, compensation_date, remark, requested_balance, consumed_balance,
	allocations, debits_applied, status, team_leader_approved_by, team_leader_approved_at,
	approved_by, approved_at, created_at, updated_at`

func (s *Store) SaveRequest(ctx context.Context, r dayoff.Request) error {
	return saveRequest(ctx, s.pool, r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*dayoff.Request, error) {
	return getRequest(ctx, s.pool, id, "")
}

func (s *Store) ListRequests(ctx context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	return listRequests(ctx, s.pool, filter)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM day_off_requests WHERE id = $1", id)
	return err
}

func saveRequest(ctx context.Context, q querier, r dayoff.Request) error {
	allocations := r.Allocations
	if allocations == nil {
		allocations = []dayoff.Allocation{}
	}

	_, err := q.Exec(ctx, `
		INSERT INTO day_off_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			debits_applied = EXCLUDED.debits_applied,
			status = EXCLUDED.status,
			team_leader_approved_by = EXCLUDED.team_leader_approved_by,
			team_leader_approved_at = EXCLUDED.team_leader_approved_at,
			approved_by = EXCLUDED.approved_by,
			approved_at = EXCLUDED.approved_at,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.EmployeeID, r.TeamLeaderID, r.ManagerID, r.SectionID, r.DepartmentID,
		r.CompensationDay, r.CompensationDate.Time, r.Remark,
		r.RequestedBalance.Round().Value, r.ConsumedBalance.Round().Value,
		allocations, r.DebitsApplied, string(r.Status),
		r.TeamLeaderApprovedBy, r.TeamLeaderApprovedAt, r.ApprovedBy, r.ApprovedAt,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func getRequest(ctx context.Context, q querier, id, lock string) (*dayoff.Request, error) {
	r, err := scanRequest(q.QueryRow(ctx, "SELECT "+requestColumns+" FROM day_off_requests WHERE id = $1"+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(filter.EmployeeID))
	}
	if filter.TeamLeaderID != "" {
		where = append(where, "team_leader_id = "+arg(filter.TeamLeaderID))
	}
	if filter.ManagerID != "" {
		where = append(where, "manager_id = "+arg(filter.ManagerID))
	}
	if filter.DepartmentID != "" {
		where = append(where, "department_id = "+arg(filter.DepartmentID))
	}
	if len(filter.SectionIDs) > 0 {
		where = append(where, "section_id = ANY("+arg(filter.SectionIDs)+")")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if filter.CreatedBefore != nil {
		where = append(where, "created_at < "+arg(*filter.CreatedBefore))
	}

	query := "SELECT " + requestColumns + " FROM day_off_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.Query(ctx, query, args...)
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

func scanRequest(row pgx.Row) (dayoff.Request, error) {
	var r dayoff.Request
	var compDate time.Time
	var status string
	err := row.Scan(&r.ID, &r.EmployeeID, &r.TeamLeaderID, &r.ManagerID, &r.SectionID, &r.DepartmentID,
		&r.CompensationDay, &compDate, &r.Remark, &r.RequestedBalance.Value, &r.ConsumedBalance.Value,
		&r.Allocations, &r.DebitsApplied, &status, &r.TeamLeaderApprovedBy, &r.TeamLeaderApprovedAt,
		&r.ApprovedBy, &r.ApprovedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.CompensationDate = generic.FromTime(compDate)
	r.RequestedBalance = r.RequestedBalance.Round()
	r.ConsumedBalance = r.ConsumedBalance.Round()
	r.Status = dayoff.Status(status)
	return r, nil
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store dayoff.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txStore locks every row it reads until the transaction ends.
type txStore struct {
	tx pgx.Tx
}

const forUpdate = " FOR UPDATE"

func (ts *txStore) SaveCredit(ctx context.Context, c dayoff.Credit) error {
	return saveCredit(ctx, ts.tx, c)
}

func (ts *txStore) GetCredit(ctx context.Context, id string) (*dayoff.Credit, error) {
	return getCredit(ctx, ts.tx, id, forUpdate)
}

func (ts *txStore) ListCredits(ctx context.Context, ownerID string, includeConsumed bool) ([]dayoff.Credit, error) {
	return listCredits(ctx, ts.tx, ownerID, includeConsumed, forUpdate)
}

func (ts *txStore) DeleteCredit(ctx context.Context, id string) error {
	_, err := ts.tx.Exec(ctx, "DELETE FROM credits WHERE id = $1", id)
	return err
}

func (ts *txStore) SaveRequest(ctx context.Context, r dayoff.Request) error {
	return saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*dayoff.Request, error) {
	return getRequest(ctx, ts.tx, id, forUpdate)
}

func (ts *txStore) ListRequests(ctx context.Context, filter dayoff.RequestFilter) ([]dayoff.Request, error) {
	return listRequests(ctx, ts.tx, filter)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id string) error {
	_, err := ts.tx.Exec(ctx, "DELETE FROM day_off_requests WHERE id = $1", id)
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) SaveDepartment(ctx context.Context, d dayoff.Department) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO departments (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, d.ID, d.Name)
	return err
}

func (s *Store) SaveSection(ctx context.Context, sec dayoff.Section) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sections (id, name, department_id, supervisor_id, manager_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			department_id = EXCLUDED.department_id,
			supervisor_id = EXCLUDED.supervisor_id,
			manager_id = EXCLUDED.manager_id
	`, sec.ID, sec.Name, sec.DepartmentID, sec.SupervisorID, sec.ManagerID)
	return err
}

func (s *Store) SaveUser(ctx context.Context, u dayoff.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, department_id, section_id, employee_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			department_id = EXCLUDED.department_id,
			section_id = EXCLUDED.section_id,
			employee_no = EXCLUDED.employee_no
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role.String(), u.DepartmentID, u.SectionID, u.EmployeeNo)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: email %s already registered", generic.ErrInvalidRequest, u.Email)
	}
	return err
}

const userColumns = `id, name, email, password_hash, role, department_id, section_id, employee_no`

func (s *Store) GetUser(ctx context.Context, id string) (*dayoff.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*dayoff.User, error) {
	return s.getUser(ctx, "lower(email) = lower($1)", email)
}

func (s *Store) getUser(ctx context.Context, cond, arg string) (*dayoff.User, error) {
	var u dayoff.User
	var role string
	err := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.DepartmentID, &u.SectionID, &u.EmployeeNo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrUserNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	if u.Role, err = generic.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return &u, nil
}

func (s *Store) ResolveApprovers(ctx context.Context, employeeID string) (dayoff.Approvers, error) {
	u, err := s.GetUser(ctx, employeeID)
	if err != nil {
		return dayoff.Approvers{}, err
	}

	var section *dayoff.Section
	if u.SectionID != "" {
		sections, err := s.querySections(ctx, "id = $1", u.SectionID)
		if err != nil {
			return dayoff.Approvers{}, err
		}
		if len(sections) > 0 {
			section = &sections[0]
		}
	}
	return dayoff.ApproversFor(u, section)
}

func (s *Store) SectionsSupervisedBy(ctx context.Context, userID string) ([]dayoff.Section, error) {
	return s.querySections(ctx, "supervisor_id = $1", userID)
}

func (s *Store) querySections(ctx context.Context, cond, arg string) ([]dayoff.Section, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, department_id, supervisor_id, manager_id FROM sections WHERE "+cond+" ORDER BY id", arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []dayoff.Section
	for rows.Next() {
		var sec dayoff.Section
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.DepartmentID, &sec.SupervisorID, &sec.ManagerID); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE day_off_requests, credits, users, sections, departments")
	return err
}
