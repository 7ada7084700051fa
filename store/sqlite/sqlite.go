/*
Package sqlite provides a SQLite-backed implementation of the record store.

PURPOSE:
  Implements generic.Store (directory, finance, settings, grants) and
  identity.Store (credentials, sessions) on one SQLite database.

KEY TABLES:
  profiles, enterprises:                    Directory
  employees, clients, equipment, expenses:  Finance records
  employee_client_rates, client_costs:      Revenue inputs
  settings:                                 Versioned key/value (exchange rates)
  user_app_permissions:                     One page-access row per user
  user_enterprise_access, user_permissions: Membership and module CRUD grants
  credentials, sessions:                    Identity

DATES:
  Calendar dates (hire date, expense date, rate start/end) are stored as
  "2006-01-02" and read back at local midnight in the store's location.
  Instants (created_at, updated_at, expires_at) are stored as UTC RFC3339.

MONEY:
  Amounts are decimal strings next to a currency code. Codes are stored as
  written so the aggregator can skip rows with an unknown currency.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  ":memory:" databases are pinned to one connection; every pooled
  connection would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/dashboard.db", sqlite.WithLocation(loc))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - identity/identity.go: Credentials and sessions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/identity"
)

const (
	dateLayout = "2006-01-02"

	// Fixed width so stored instants compare correctly as strings.
	instantLayout = "2006-01-02T15:04:05.000000000Z"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn holds every query. Store runs them on the pool, txStore on a
// transaction.
type conn struct {
	q   querier
	loc *time.Location
}

// Store implements generic.Store and identity.Store using SQLite.
type Store struct {
	conn
	db *sql.DB
}

type Option func(*Store)

// WithLocation sets the location calendar dates are read back in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{conn: conn{q: db, loc: time.UTC}, db: db}
	for _, opt := range opts {
		opt(store)
	}
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enterprises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		logo_ref TEXT
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		exit_date TEXT,
		monthly_salary TEXT NOT NULL DEFAULT '0',
		declared_salary TEXT NOT NULL DEFAULT '0',
		recharge TEXT NOT NULL DEFAULT '0',
		monthly_bonus TEXT NOT NULL DEFAULT '0'
	);
	CREATE INDEX IF NOT EXISTS idx_employees_enterprise ON employees(enterprise_id);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL,
		name TEXT NOT NULL,
		payment_day INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_clients_enterprise ON clients(enterprise_id);

	CREATE TABLE IF NOT EXISTS equipment (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL,
		name TEXT NOT NULL,
		assigned_to TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_equipment_enterprise ON equipment(enterprise_id);

	-- enterprise_id is NULL for personal expenses
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT,
		type TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_type_date ON expenses(type, date);

	CREATE TABLE IF NOT EXISTS employee_client_rates (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_rates_client ON employee_client_rates(client_id);

	CREATE TABLE IF NOT EXISTS client_costs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_costs_client ON client_costs(client_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_app_permissions (
		user_id TEXT PRIMARY KEY,
		dashboard INTEGER NOT NULL DEFAULT 0,
		entreprises INTEGER NOT NULL DEFAULT 0,
		personal INTEGER NOT NULL DEFAULT 0,
		users INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS user_enterprise_access (
		user_id TEXT NOT NULL,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, enterprise_id)
	);

	CREATE TABLE IF NOT EXISTS user_permissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id) ON DELETE CASCADE,
		module TEXT NOT NULL,
		can_read INTEGER NOT NULL DEFAULT 0,
		can_create INTEGER NOT NULL DEFAULT 0,
		can_update INTEGER NOT NULL DEFAULT 0,
		can_delete INTEGER NOT NULL DEFAULT 0,
		UNIQUE (user_id, enterprise_id, module)
	);

	CREATE TABLE IF NOT EXISTS credentials (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return fn(tx) })
}

// WithAccountTx writes credentials and profiles in one transaction.
func (s *Store) WithAccountTx(ctx context.Context, fn func(creds identity.Store, profiles generic.DirectoryStore) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return fn(tx, tx) })
}

func (s *Store) inTx(ctx context.Context, fn func(tx *txStore) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: conn{q: sqlTx, loc: s.loc}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	conn
}

// WithTx inside a transaction runs fn inline.
func (ts *txStore) WithTx(_ context.Context, fn func(store generic.Store) error) error {
	return fn(ts)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (c conn) ListEnterprises(ctx context.Context) ([]generic.Enterprise, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name, slug, logo_ref FROM enterprises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enterprises: %w", err)
	}
	defer rows.Close()

	var out []generic.Enterprise
	for rows.Next() {
		var (
			e    generic.Enterprise
			logo sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Slug, &logo); err != nil {
			return nil, fmt.Errorf("failed to scan enterprise: %w", err)
		}
		e.LogoRef = logo.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) SaveEnterprise(ctx context.Context, e generic.Enterprise) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO enterprises (id, name, slug, logo_ref) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, slug = excluded.slug, logo_ref = excluded.logo_ref
	`, e.ID, e.Name, e.Slug, nullString(e.LogoRef))
	if isUniqueConstraintError(err) {
		return generic.NewValidationError("slug", "taken")
	}
	return err
}

const profileColumns = `id, email, first_name, last_name, role, created_at`

func (c conn) GetProfile(ctx context.Context, id generic.UserID) (*generic.Profile, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c conn) ListProfiles(ctx context.Context) ([]generic.Profile, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var out []generic.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c conn) SaveProfile(ctx context.Context, p generic.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO profiles (id, email, first_name, last_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email, first_name = excluded.first_name,
			last_name = excluded.last_name, role = excluded.role
	`, p.ID, p.Email, p.FirstName, p.LastName, p.Role, formatInstant(createdAt))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(r scanner) (generic.Profile, error) {
	var (
		p         generic.Profile
		createdAt string
	)
	if err := r.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan profile: %w", err)
	}
	p.CreatedAt = parseInstant(createdAt)
	return p, nil
}

// =============================================================================
// FINANCE
// =============================================================================

func (c conn) ListEmployees(ctx context.Context, ids []generic.EnterpriseID) ([]generic.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, enterprise_id, first_name, last_name, status, hire_date, exit_date,
		       monthly_salary, declared_salary, recharge, monthly_bonus
		FROM employees WHERE enterprise_id IN (`+in+`) ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []generic.Employee
	for rows.Next() {
		var (
			e                                   generic.Employee
			hire                                string
			exit                                sql.NullString
			salary, declared, recharge, bonus string
		)
		if err := rows.Scan(&e.ID, &e.EnterpriseID, &e.FirstName, &e.LastName, &e.Status,
			&hire, &exit, &salary, &declared, &recharge, &bonus); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		dates := c.dates()
		e.HireDate = dates.parse("hire_date", hire)
		e.ExitDate = dates.parseNull("exit_date", exit)
		if dates.err != nil {
			return nil, fmt.Errorf("employee %s: %w", e.ID, dates.err)
		}
		e.MonthlySalary = parseDecimal(salary)
		e.DeclaredSalary = parseDecimal(declared)
		e.Recharge = parseDecimal(recharge)
		e.MonthlyBonus = parseDecimal(bonus)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) SaveEmployee(ctx context.Context, e generic.Employee) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO employees (id, enterprise_id, first_name, last_name, status, hire_date, exit_date,
		                       monthly_salary, declared_salary, recharge, monthly_bonus)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enterprise_id = excluded.enterprise_id, first_name = excluded.first_name,
			last_name = excluded.last_name, status = excluded.status,
			hire_date = excluded.hire_date, exit_date = excluded.exit_date,
			monthly_salary = excluded.monthly_salary, declared_salary = excluded.declared_salary,
			recharge = excluded.recharge, monthly_bonus = excluded.monthly_bonus
	`, e.ID, e.EnterpriseID, e.FirstName, e.LastName, e.Status, c.formatDate(e.HireDate), c.formatNullDate(e.ExitDate),
		e.MonthlySalary.String(), e.DeclaredSalary.String(), e.Recharge.String(), e.MonthlyBonus.String())
	return err
}

func (c conn) ListClients(ctx context.Context, ids []generic.EnterpriseID) ([]generic.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, enterprise_id, name, payment_day FROM clients
		WHERE enterprise_id IN (`+in+`) ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []generic.Client
	for rows.Next() {
		var (
			cl  generic.Client
			day sql.NullInt64
		)
		if err := rows.Scan(&cl.ID, &cl.EnterpriseID, &cl.Name, &day); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if day.Valid {
			d := int(day.Int64)
			cl.PaymentDay = &d
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

func (c conn) SaveClient(ctx context.Context, cl generic.Client) error {
	var day sql.NullInt64
	if cl.PaymentDay != nil {
		day = sql.NullInt64{Int64: int64(*cl.PaymentDay), Valid: true}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO clients (id, enterprise_id, name, payment_day) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enterprise_id = excluded.enterprise_id, name = excluded.name, payment_day = excluded.payment_day
	`, cl.ID, cl.EnterpriseID, cl.Name, day)
	return err
}

func (c conn) ListEquipment(ctx context.Context, ids []generic.EnterpriseID) ([]generic.Equipment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, enterprise_id, name, assigned_to FROM equipment
		WHERE enterprise_id IN (`+in+`) ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var out []generic.Equipment
	for rows.Next() {
		var (
			e        generic.Equipment
			assigned sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EnterpriseID, &e.Name, &assigned); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		if assigned.Valid {
			id := generic.EmployeeID(assigned.String)
			e.AssignedTo = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) SaveEquipment(ctx context.Context, e generic.Equipment) error {
	var assigned sql.NullString
	if e.AssignedTo != nil {
		assigned = nullString(string(*e.AssignedTo))
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO equipment (id, enterprise_id, name, assigned_to) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enterprise_id = excluded.enterprise_id, name = excluded.name, assigned_to = excluded.assigned_to
	`, e.ID, e.EnterpriseID, e.Name, assigned)
	return err
}

// ListExpenses applies f. A non-nil empty EnterpriseIDs matches nothing.
func (c conn) ListExpenses(ctx context.Context, f generic.ExpenseFilter) ([]generic.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.EnterpriseIDs != nil {
		if len(f.EnterpriseIDs) == 0 {
			return nil, nil
		}
		in, inArgs := inClause(f.EnterpriseIDs)
		where = append(where, "enterprise_id IN ("+in+")")
		args = append(args, inArgs...)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, c.formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, c.formatDate(f.To))
	}

	query := `SELECT id, enterprise_id, type, label, amount, currency, date FROM expenses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []generic.Expense
	for rows.Next() {
		var (
			e                      generic.Expense
			ent                    sql.NullString
			amount, currency, date string
		)
		if err := rows.Scan(&e.ID, &ent, &e.Type, &e.Label, &amount, &currency, &date); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if ent.Valid {
			id := generic.EnterpriseID(ent.String)
			e.EnterpriseID = &id
		}
		e.Amount = parseMoney(amount, currency)
		dates := c.dates()
		e.Date = dates.parse("date", date)
		if dates.err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, dates.err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) SaveExpense(ctx context.Context, e generic.Expense) error {
	var ent sql.NullString
	if e.EnterpriseID != nil {
		ent = nullString(string(*e.EnterpriseID))
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO expenses (id, enterprise_id, type, label, amount, currency, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enterprise_id = excluded.enterprise_id, type = excluded.type, label = excluded.label,
			amount = excluded.amount, currency = excluded.currency, date = excluded.date
	`, e.ID, ent, e.Type, e.Label, e.Amount.Value.String(), e.Amount.Currency, c.formatDate(e.Date))
	return err
}

// ListEmployeeClientRates scopes rates through their client's enterprise.
func (c conn) ListEmployeeClientRates(ctx context.Context, ids []generic.EnterpriseID) ([]generic.EmployeeClientRate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := c.q.QueryContext(ctx, `
		SELECT r.id, r.employee_id, r.client_id, r.amount, r.currency, r.start_date, r.end_date, r.active
		FROM employee_client_rates r
		JOIN clients c ON c.id = r.client_id
		WHERE c.enterprise_id IN (`+in+`)
		ORDER BY r.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query client rates: %w", err)
	}
	defer rows.Close()

	var out []generic.EmployeeClientRate
	for rows.Next() {
		var (
			r                       generic.EmployeeClientRate
			amount, currency, start string
			end                     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.ClientID, &amount, &currency, &start, &end, &r.Active); err != nil {
			return nil, fmt.Errorf("failed to scan client rate: %w", err)
		}
		r.Amount = parseMoney(amount, currency)
		dates := c.dates()
		r.StartDate = dates.parse("start_date", start)
		r.EndDate = dates.parseNull("end_date", end)
		if dates.err != nil {
			return nil, fmt.Errorf("client rate %s: %w", r.ID, dates.err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c conn) SaveEmployeeClientRate(ctx context.Context, r generic.EmployeeClientRate) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO employee_client_rates (id, employee_id, client_id, amount, currency, start_date, end_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id, client_id = excluded.client_id,
			amount = excluded.amount, currency = excluded.currency,
			start_date = excluded.start_date, end_date = excluded.end_date, active = excluded.active
	`, r.ID, r.EmployeeID, r.ClientID, r.Amount.Value.String(), r.Amount.Currency,
		c.formatDate(r.StartDate), c.formatNullDate(r.EndDate), r.Active)
	return err
}

func (c conn) ListClientCosts(ctx context.Context, ids []generic.EnterpriseID) ([]generic.ClientCost, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := c.q.QueryContext(ctx, `
		SELECT k.id, k.client_id, k.label, k.amount, k.currency
		FROM client_costs k
		JOIN clients c ON c.id = k.client_id
		WHERE c.enterprise_id IN (`+in+`)
		ORDER BY k.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query client costs: %w", err)
	}
	defer rows.Close()

	var out []generic.ClientCost
	for rows.Next() {
		var (
			k                generic.ClientCost
			amount, currency string
		)
		if err := rows.Scan(&k.ID, &k.ClientID, &k.Label, &amount, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan client cost: %w", err)
		}
		k.Amount = parseMoney(amount, currency)
		out = append(out, k)
	}
	return out, rows.Err()
}

func (c conn) SaveClientCost(ctx context.Context, k generic.ClientCost) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO client_costs (id, client_id, label, amount, currency) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id, label = excluded.label,
			amount = excluded.amount, currency = excluded.currency
	`, k.ID, k.ClientID, k.Label, k.Amount.Value.String(), k.Amount.Currency)
	return err
}

// =============================================================================
// SETTINGS
// =============================================================================

func (c conn) GetSettings(ctx context.Context, keys []string) ([]generic.Setting, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	in, args := inClause(keys)
	rows, err := c.q.QueryContext(ctx, `
		SELECT key, value, version, updated_at FROM settings WHERE key IN (`+in+`) ORDER BY key
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var out []generic.Setting
	for rows.Next() {
		var (
			st        generic.Setting
			updatedAt string
		)
		if err := rows.Scan(&st.Key, &st.Value, &st.Version, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		st.UpdatedAt = parseInstant(updatedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (c conn) UpsertSetting(ctx context.Context, st generic.Setting) error {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO settings (key, value, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value, version = excluded.version, updated_at = excluded.updated_at
	`, st.Key, st.Value, st.Version, formatInstant(updatedAt))
	return err
}

// =============================================================================
// GRANTS
// =============================================================================

func (c conn) GetAppPermissions(ctx context.Context, userID generic.UserID) (*generic.AppPermissions, error) {
	var p generic.AppPermissions
	err := c.q.QueryRowContext(ctx, `
		SELECT dashboard, entreprises, personal, users FROM user_app_permissions WHERE user_id = ?
	`, userID).Scan(&p.Dashboard, &p.Enterprises, &p.Personal, &p.Users)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app permissions: %w", err)
	}
	return &p, nil
}

func (c conn) UpsertAppPermissions(ctx context.Context, userID generic.UserID, p generic.AppPermissions) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO user_app_permissions (user_id, dashboard, entreprises, personal, users)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			dashboard = excluded.dashboard, entreprises = excluded.entreprises,
			personal = excluded.personal, users = excluded.users
	`, userID, p.Dashboard, p.Enterprises, p.Personal, p.Users)
	return err
}

func (c conn) ListEnterpriseAccess(ctx context.Context, userID generic.UserID) ([]generic.EnterpriseID, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT enterprise_id FROM user_enterprise_access WHERE user_id = ? ORDER BY enterprise_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enterprise access: %w", err)
	}
	defer rows.Close()

	var out []generic.EnterpriseID
	for rows.Next() {
		var id generic.EnterpriseID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enterprise access: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (c conn) DeleteEnterpriseAccess(ctx context.Context, userID generic.UserID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM user_enterprise_access WHERE user_id = ?`, userID)
	return err
}

func (c conn) InsertEnterpriseAccess(ctx context.Context, rows []generic.EnterpriseAccess) error {
	for _, r := range rows {
		if _, err := c.q.ExecContext(ctx, `
			INSERT INTO user_enterprise_access (user_id, enterprise_id) VALUES (?, ?)
		`, r.UserID, r.EnterpriseID); err != nil {
			return fmt.Errorf("failed to insert enterprise access: %w", err)
		}
	}
	return nil
}

func (c conn) ListModulePermissions(ctx context.Context, userID generic.UserID) ([]generic.ModulePermission, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, user_id, enterprise_id, module, can_read, can_create, can_update, can_delete
		FROM user_permissions WHERE user_id = ?
		ORDER BY enterprise_id, module
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query module permissions: %w", err)
	}
	defer rows.Close()

	var out []generic.ModulePermission
	for rows.Next() {
		var p generic.ModulePermission
		if err := rows.Scan(&p.ID, &p.UserID, &p.EnterpriseID, &p.Module,
			&p.CRUD.Read, &p.CRUD.Create, &p.CRUD.Update, &p.CRUD.Delete); err != nil {
			return nil, fmt.Errorf("failed to scan module permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c conn) DeleteModulePermissions(ctx context.Context, userID generic.UserID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = ?`, userID)
	return err
}

func (c conn) InsertModulePermissions(ctx context.Context, rows []generic.ModulePermission) error {
	for _, p := range rows {
		if _, err := c.q.ExecContext(ctx, `
			INSERT INTO user_permissions (id, user_id, enterprise_id, module, can_read, can_create, can_update, can_delete)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.UserID, p.EnterpriseID, p.Module,
			p.CRUD.Read, p.CRUD.Create, p.CRUD.Update, p.CRUD.Delete); err != nil {
			return fmt.Errorf("failed to insert module permission: %w", err)
		}
	}
	return nil
}

// =============================================================================
// IDENTITY
// =============================================================================

func (c conn) CreateCredentials(ctx context.Context, cr identity.Credentials) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO credentials (user_id, email, password_hash) VALUES (?, ?, ?)
	`, cr.UserID, cr.Email, cr.PasswordHash)
	if isUniqueConstraintError(err) {
		return generic.NewValidationError("email", "taken")
	}
	return err
}

func (c conn) GetCredentials(ctx context.Context, email string) (*identity.Credentials, error) {
	var cr identity.Credentials
	err := c.q.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash FROM credentials WHERE email = ?
	`, email).Scan(&cr.UserID, &cr.Email, &cr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &cr, nil
}

func (c conn) DeleteCredentials(ctx context.Context, email string) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM credentials WHERE email = ?`, email)
	return err
}

func (c conn) CreateSession(ctx context.Context, s identity.Session) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)
	`, s.Token, s.UserID, formatInstant(s.CreatedAt), formatInstant(s.ExpiresAt))
	return err
}

func (c conn) GetSession(ctx context.Context, token string) (*identity.Session, error) {
	var (
		s                    identity.Session
		createdAt, expiresAt string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?
	`, token).Scan(&s.Token, &s.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.CreatedAt = parseInstant(createdAt)
	s.ExpiresAt = parseInstant(expiresAt)
	return &s, nil
}

func (c conn) DeleteSession(ctx context.Context, token string) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes every session expired at now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatInstant(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func inClause[T ~string](ids []T) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func (c conn) formatDate(t time.Time) string { return t.In(c.loc).Format(dateLayout) }

func (c conn) formatNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(c.formatDate(*t))
}

// dateParser reads the calendar columns of one row and keeps the first
// failure. A corrupt date fails the read instead of becoming the zero time.
type dateParser struct {
	loc *time.Location
	err error
}

func (c conn) dates() *dateParser { return &dateParser{loc: c.loc} }

func (d *dateParser) parse(column, s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, d.loc)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("corrupt %s %q: %w", column, s, err)
	}
	return t
}

func (d *dateParser) parseNull(column string, s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := d.parse(column, s.String)
	return &t
}

func formatInstant(t time.Time) string { return t.UTC().Format(instantLayout) }

func parseInstant(s string) time.Time {
	t, _ := time.Parse(instantLayout, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseMoney keeps the stored currency code as is, valid or not.
func parseMoney(amount, currency string) generic.Money {
	return generic.Money{Value: parseDecimal(amount), Currency: generic.Currency(strings.ToUpper(currency))}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var (
	_ generic.Store                 = (*Store)(nil)
	_ generic.Store                 = (*txStore)(nil)
	_ identity.Store                = (*Store)(nil)
	_ identity.Store                = (*txStore)(nil)
	_ identity.Accounts             = (*Store)(nil)
	_ identity.ExpiredSessionPurger = (*Store)(nil)
)
