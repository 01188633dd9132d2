/*
Package sqlite provides the SQLite-backed implementation of club.TxStore.

PURPOSE:
  Implements every persistence interface (sports, students, fees, payments,
  users, billing runs) on SQLite. The same SQL applies to PostgreSQL with
  minor dialect changes.

KEY TABLES:
  sports:       Sport catalog with the current monthly rate
  students:     Member registry (document is unique)
  fees:         One row per (student, month, year); UNIQUE constraint
                backs the generator's idempotence
  payments:     One row per recorded payment, receipt is a unique uuid
  users/roles:  Back-office accounts and role links
  billing_runs: Scheduler executions, one completed row per month

MONEY:
  Amounts are stored as TEXT in decimal.Decimal canonical form. All
  comparisons happen in Go; SQL never does arithmetic on money.

CONCURRENCY:
  The fees.amount_paid update is guarded by the previously observed
  value (UPDATE ... WHERE amount_paid = ?). A lost race surfaces as
  club.ErrConflict instead of a silently merged balance.

WAL MODE:
  Opened with WAL and foreign keys on. The pool is capped at one
  connection: SQLite allows a single writer anyway and ":memory:"
  databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/club.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - club/store.go: Interface definitions
  - club/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clubworks/club-backoffice/club"
)

// Store implements club.TxStore on SQLite.
type Store struct {
	db *sqlx.DB
	queries
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{ext: db}}
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

// WithTx executes fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(club.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&queries{ext: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		monthly_fee TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		document TEXT NOT NULL UNIQUE,
		phone TEXT,
		birth_date TEXT,
		start_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		sport_id INTEGER NOT NULL REFERENCES sports(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_sport
		ON students(sport_id);
	CREATE INDEX IF NOT EXISTS idx_students_active
		ON students(is_active);

	-- One fee per student per calendar month; backs generator idempotence
	CREATE TABLE IF NOT EXISTS fees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL REFERENCES students(id),
		sport_id INTEGER NOT NULL REFERENCES sports(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		value TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		UNIQUE(student_id, month, year)
	);

	-- Hot path: sequence checks scan a student's fees by period start
	CREATE INDEX IF NOT EXISTS idx_fees_student_start
		ON fees(student_id, start_date);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt TEXT NOT NULL UNIQUE,
		student_id INTEGER NOT NULL REFERENCES students(id),
		fee_id INTEGER NOT NULL REFERENCES fees(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		method TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_fee
		ON payments(fee_id);
	CREATE INDEX IF NOT EXISTS idx_payments_student
		ON payments(student_id);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		full_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id INTEGER NOT NULL REFERENCES users(id),
		role_id INTEGER NOT NULL REFERENCES roles(id),
		PRIMARY KEY (user_id, role_id)
	);

	CREATE TABLE IF NOT EXISTS billing_runs (
		id TEXT PRIMARY KEY,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL,
		students_processed INTEGER NOT NULL DEFAULT 0,
		fees_created INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_billing_runs_month
		ON billing_runs(year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHARED QUERY LAYER
// =============================================================================
// queries implements club.Store against either the pool or an open
// transaction; WithTx hands callers a transaction-bound instance.

type queries struct {
	ext sqlx.ExtContext
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}

// translateConstraint maps SQLite unique violations onto domain errors.
func translateConstraint(err error) error {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) || sqErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}
	if strings.Contains(err.Error(), "students.document") {
		return club.ErrDuplicateDocument
	}
	return club.ErrConflict
}

// =============================================================================
// SPORTS
// =============================================================================

type sportRow struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	MonthlyFee string `db:"monthly_fee"`
	CreatedAt  string `db:"created_at"`
}

func (r sportRow) toSport() (club.Sport, error) {
	fee, err := parseMoney(r.MonthlyFee)
	if err != nil {
		return club.Sport{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return club.Sport{}, err
	}
	return club.Sport{
		ID:         club.SportID(r.ID),
		Name:       r.Name,
		MonthlyFee: fee,
		CreatedAt:  created,
	}, nil
}

func (q *queries) CreateSport(ctx context.Context, s *club.Sport) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := q.ext.ExecContext(ctx,
		`INSERT INTO sports (name, monthly_fee, created_at) VALUES (?, ?, ?)`,
		s.Name, s.MonthlyFee.String(), formatTime(s.CreatedAt))
	if err != nil {
		return translateConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = club.SportID(id)
	return nil
}

func (q *queries) UpdateSport(ctx context.Context, s *club.Sport) error {
	res, err := q.ext.ExecContext(ctx,
		`UPDATE sports SET name = ?, monthly_fee = ? WHERE id = ?`,
		s.Name, s.MonthlyFee.String(), int64(s.ID))
	if err != nil {
		return translateConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return club.ErrSportNotFound
	}
	return nil
}

func (q *queries) GetSport(ctx context.Context, id club.SportID) (*club.Sport, error) {
	return q.getSportWhere(ctx, `id = ?`, int64(id))
}

func (q *queries) GetSportByName(ctx context.Context, name string) (*club.Sport, error) {
	return q.getSportWhere(ctx, `name = ? COLLATE NOCASE`, name)
}

func (q *queries) getSportWhere(ctx context.Context, where string, arg any) (*club.Sport, error) {
	var row sportRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT id, name, monthly_fee, created_at FROM sports WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sport, err := row.toSport()
	if err != nil {
		return nil, err
	}
	return &sport, nil
}

func (q *queries) ListSports(ctx context.Context) ([]club.Sport, error) {
	var rows []sportRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT id, name, monthly_fee, created_at FROM sports ORDER BY name`)
	if err != nil {
		return nil, err
	}
	sports := make([]club.Sport, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSport()
		if err != nil {
			return nil, err
		}
		sports = append(sports, s)
	}
	return sports, nil
}

// =============================================================================
// STUDENTS
// =============================================================================

type studentRow struct {
	ID        int64          `db:"id"`
	FirstName string         `db:"first_name"`
	LastName  string         `db:"last_name"`
	Document  string         `db:"document"`
	Phone     sql.NullString `db:"phone"`
	BirthDate sql.NullString `db:"birth_date"`
	StartDate string         `db:"start_date"`
	IsActive  bool           `db:"is_active"`
	SportID   int64          `db:"sport_id"`
	CreatedAt string         `db:"created_at"`
}

func (r studentRow) toStudent() (club.Student, error) {
	start, err := parseTime(r.StartDate)
	if err != nil {
		return club.Student{}, err
	}
	birth, err := parseTime(r.BirthDate.String)
	if err != nil {
		return club.Student{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return club.Student{}, err
	}
	return club.Student{
		ID:        club.StudentID(r.ID),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Document:  r.Document,
		Phone:     r.Phone.String,
		BirthDate: birth,
		StartDate: start,
		IsActive:  r.IsActive,
		SportID:   club.SportID(r.SportID),
		CreatedAt: created,
	}, nil
}

const studentColumns = `id, first_name, last_name, document, phone, birth_date, start_date, is_active, sport_id, created_at`

func (q *queries) CreateStudent(ctx context.Context, s *club.Student) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	var birth any
	if !s.BirthDate.IsZero() {
		birth = formatTime(s.BirthDate)
	}
	res, err := q.ext.ExecContext(ctx,
		`INSERT INTO students (first_name, last_name, document, phone, birth_date, start_date, is_active, sport_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.FirstName, s.LastName, s.Document, s.Phone, birth,
		formatTime(s.StartDate), s.IsActive, int64(s.SportID), formatTime(s.CreatedAt))
	if err != nil {
		return translateConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = club.StudentID(id)
	return nil
}

func (q *queries) GetStudent(ctx context.Context, id club.StudentID) (*club.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	student, err := row.toStudent()
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (q *queries) FindStudentsByName(ctx context.Context, term string) ([]club.Student, error) {
	pattern := "%" + strings.ToUpper(term) + "%"
	var rows []studentRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+studentColumns+` FROM students
		 WHERE UPPER(first_name || ' ' || last_name) LIKE ?
		 ORDER BY last_name, first_name`, pattern)
	if err != nil {
		return nil, err
	}
	return rowsToStudents(rows)
}

func (q *queries) ListStudents(ctx context.Context, f club.StudentFilter) ([]club.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if f.Active != nil {
		query += ` WHERE is_active = ?`
		args = append(args, *f.Active)
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, err
	}
	return rowsToStudents(rows)
}

func rowsToStudents(rows []studentRow) ([]club.Student, error) {
	students := make([]club.Student, 0, len(rows))
	for _, r := range rows {
		s, err := r.toStudent()
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, nil
}

func (q *queries) UpdateStudent(ctx context.Context, s *club.Student) error {
	var birth any
	if !s.BirthDate.IsZero() {
		birth = formatTime(s.BirthDate)
	}
	res, err := q.ext.ExecContext(ctx,
		`UPDATE students
		 SET first_name = ?, last_name = ?, document = ?, phone = ?, birth_date = ?,
		     start_date = ?, is_active = ?, sport_id = ?
		 WHERE id = ?`,
		s.FirstName, s.LastName, s.Document, s.Phone, birth,
		formatTime(s.StartDate), s.IsActive, int64(s.SportID), int64(s.ID))
	if err != nil {
		return translateConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return club.ErrStudentNotFound
	}
	return nil
}

// =============================================================================
// FEES
// =============================================================================

type feeRow struct {
	ID         int64  `db:"id"`
	StudentID  int64  `db:"student_id"`
	SportID    int64  `db:"sport_id"`
	StartDate  string `db:"start_date"`
	EndDate    string `db:"end_date"`
	Month      int    `db:"month"`
	Year       int    `db:"year"`
	Value      string `db:"value"`
	AmountPaid string `db:"amount_paid"`
	CreatedAt  string `db:"created_at"`
}

func (r feeRow) toFee() (club.Fee, error) {
	start, err := parseTime(r.StartDate)
	if err != nil {
		return club.Fee{}, err
	}
	end, err := parseTime(r.EndDate)
	if err != nil {
		return club.Fee{}, err
	}
	value, err := parseMoney(r.Value)
	if err != nil {
		return club.Fee{}, err
	}
	paid, err := parseMoney(r.AmountPaid)
	if err != nil {
		return club.Fee{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return club.Fee{}, err
	}
	return club.Fee{
		ID:         club.FeeID(r.ID),
		StudentID:  club.StudentID(r.StudentID),
		SportID:    club.SportID(r.SportID),
		StartDate:  start,
		EndDate:    end,
		Month:      time.Month(r.Month),
		Year:       r.Year,
		Value:      value,
		AmountPaid: paid,
		CreatedAt:  created,
	}, nil
}

const feeColumns = `id, student_id, sport_id, start_date, end_date, month, year, value, amount_paid, created_at`

func (q *queries) CreateFee(ctx context.Context, f *club.Fee) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := q.ext.ExecContext(ctx,
		`INSERT INTO fees (student_id, sport_id, start_date, end_date, month, year, value, amount_paid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(f.StudentID), int64(f.SportID), formatTime(f.StartDate), formatTime(f.EndDate),
		int(f.Month), f.Year, f.Value.String(), f.AmountPaid.String(), formatTime(f.CreatedAt))
	if err != nil {
		return translateConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = club.FeeID(id)
	return nil
}

func (q *queries) GetFee(ctx context.Context, id club.FeeID) (*club.Fee, error) {
	var row feeRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT `+feeColumns+` FROM fees WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fee, err := row.toFee()
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (q *queries) FeeExists(ctx context.Context, studentID club.StudentID, bm club.BillingMonth) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(1) FROM fees WHERE student_id = ? AND month = ? AND year = ?`,
		int64(studentID), int(bm.Month), bm.Year)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *queries) ListStudentFees(ctx context.Context, studentID club.StudentID) ([]club.Fee, error) {
	var rows []feeRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+feeColumns+` FROM fees WHERE student_id = ? ORDER BY start_date`,
		int64(studentID))
	if err != nil {
		return nil, err
	}
	return rowsToFees(rows, nil)
}

// ListUnpaidFeesBefore narrows by date in SQL; the paid/unpaid split
// happens in Go because money lives in TEXT columns.
func (q *queries) ListUnpaidFeesBefore(ctx context.Context, studentID club.StudentID, before time.Time) ([]club.Fee, error) {
	var rows []feeRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+feeColumns+` FROM fees
		 WHERE student_id = ? AND start_date < ?
		 ORDER BY start_date`,
		int64(studentID), formatTime(before))
	if err != nil {
		return nil, err
	}
	return rowsToFees(rows, func(f club.Fee) bool { return !f.IsPaid() })
}

func (q *queries) ListFees(ctx context.Context, filter club.FeeFilter) ([]club.Fee, error) {
	query := `SELECT ` + feeColumns + ` FROM fees`
	var conds []string
	var args []any
	if filter.StudentID != nil {
		conds = append(conds, `student_id = ?`)
		args = append(args, int64(*filter.StudentID))
	}
	if filter.Month != nil {
		conds = append(conds, `month = ?`)
		args = append(args, int(*filter.Month))
	}
	if filter.Year != nil {
		conds = append(conds, `year = ?`)
		args = append(args, *filter.Year)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY start_date`

	var rows []feeRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, err
	}
	return rowsToFees(rows, nil)
}

func rowsToFees(rows []feeRow, keep func(club.Fee) bool) ([]club.Fee, error) {
	fees := make([]club.Fee, 0, len(rows))
	for _, r := range rows {
		f, err := r.toFee()
		if err != nil {
			return nil, err
		}
		if keep != nil && !keep(f) {
			continue
		}
		fees = append(fees, f)
	}
	return fees, nil
}

// UpdateFeeAmountPaid advances the balance only if nobody else moved it
// since observed was read.
func (q *queries) UpdateFeeAmountPaid(ctx context.Context, id club.FeeID, observed, newPaid decimal.Decimal) error {
	res, err := q.ext.ExecContext(ctx,
		`UPDATE fees SET amount_paid = ? WHERE id = ? AND amount_paid = ?`,
		newPaid.String(), int64(id), observed.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	exists, err := q.feeExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return club.ErrFeeNotFound
	}
	return club.ErrConflict
}

func (q *queries) feeExistsByID(ctx context.Context, id club.FeeID) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(1) FROM fees WHERE id = ?`, int64(id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

type paymentRow struct {
	ID          int64          `db:"id"`
	Receipt     string         `db:"receipt"`
	StudentID   int64          `db:"student_id"`
	FeeID       int64          `db:"fee_id"`
	Amount      string         `db:"amount"`
	PaymentDate string         `db:"payment_date"`
	Method      sql.NullString `db:"method"`
	CreatedAt   string         `db:"created_at"`
}

func (r paymentRow) toPayment() (club.Payment, error) {
	amount, err := parseMoney(r.Amount)
	if err != nil {
		return club.Payment{}, err
	}
	when, err := parseTime(r.PaymentDate)
	if err != nil {
		return club.Payment{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return club.Payment{}, err
	}
	return club.Payment{
		ID:          club.PaymentID(r.ID),
		Receipt:     r.Receipt,
		StudentID:   club.StudentID(r.StudentID),
		FeeID:       club.FeeID(r.FeeID),
		Amount:      amount,
		PaymentDate: when,
		Method:      r.Method.String,
		CreatedAt:   created,
	}, nil
}

const paymentColumns = `id, receipt, student_id, fee_id, amount, payment_date, method, created_at`

func (q *queries) CreatePayment(ctx context.Context, p *club.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := q.ext.ExecContext(ctx,
		`INSERT INTO payments (receipt, student_id, fee_id, amount, payment_date, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Receipt, int64(p.StudentID), int64(p.FeeID), p.Amount.String(),
		formatTime(p.PaymentDate), p.Method, formatTime(p.CreatedAt))
	if err != nil {
		return translateConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = club.PaymentID(id)
	return nil
}

func (q *queries) ListFeePayments(ctx context.Context, feeID club.FeeID) ([]club.Payment, error) {
	return q.listPaymentsWhere(ctx, `fee_id = ?`, int64(feeID))
}

func (q *queries) ListStudentPayments(ctx context.Context, studentID club.StudentID) ([]club.Payment, error) {
	return q.listPaymentsWhere(ctx, `student_id = ?`, int64(studentID))
}

func (q *queries) listPaymentsWhere(ctx context.Context, where string, arg any) ([]club.Payment, error) {
	var rows []paymentRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+paymentColumns+` FROM payments WHERE `+where+` ORDER BY payment_date, id`, arg)
	if err != nil {
		return nil, err
	}
	payments := make([]club.Payment, 0, len(rows))
	for _, r := range rows {
		p, err := r.toPayment()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// =============================================================================
// USERS & ROLES
// =============================================================================

type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	FullName     string `db:"full_name"`
	PasswordHash string `db:"password_hash"`
	IsActive     bool   `db:"is_active"`
	CreatedAt    string `db:"created_at"`
}

func (q *queries) CreateUser(ctx context.Context, u *club.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := q.ext.ExecContext(ctx,
		`INSERT INTO users (email, full_name, password_hash, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.FullName, u.PasswordHash, u.IsActive, formatTime(u.CreatedAt))
	if err != nil {
		return translateConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = club.UserID(id)

	for _, role := range u.Roles {
		if err := q.EnsureRole(ctx, role); err != nil {
			return err
		}
		_, err := q.ext.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role_id)
			 SELECT ?, id FROM roles WHERE name = ?`, id, role)
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*club.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT id, email, full_name, password_hash, is_active, created_at
		 FROM users WHERE email = ? COLLATE NOCASE`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, err
	}

	var roles []string
	err = sqlx.SelectContext(ctx, q.ext, &roles,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? ORDER BY r.name`, row.ID)
	if err != nil {
		return nil, err
	}

	return &club.User{
		ID:           club.UserID(row.ID),
		Email:        row.Email,
		FullName:     row.FullName,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
		Roles:        roles,
		CreatedAt:    created,
	}, nil
}

func (q *queries) EnsureRole(ctx context.Context, name string) error {
	_, err := q.ext.ExecContext(ctx,
		`INSERT OR IGNORE INTO roles (name) VALUES (?)`, name)
	return err
}

// =============================================================================
// BILLING RUNS
// =============================================================================

type billingRunRow struct {
	ID                string         `db:"id"`
	Month             int            `db:"month"`
	Year              int            `db:"year"`
	Status            string         `db:"status"`
	StudentsProcessed int            `db:"students_processed"`
	FeesCreated       int            `db:"fees_created"`
	Error             sql.NullString `db:"error"`
	StartedAt         string         `db:"started_at"`
	CompletedAt       sql.NullString `db:"completed_at"`
}

func (q *queries) CreateBillingRun(ctx context.Context, r *club.BillingRun) error {
	var completed any
	if !r.CompletedAt.IsZero() {
		completed = formatTime(r.CompletedAt)
	}
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO billing_runs (id, month, year, status, students_processed, fees_created, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, int(r.Month), r.Year, r.Status, r.StudentsProcessed, r.FeesCreated,
		r.Error, formatTime(r.StartedAt), completed)
	return err
}

func (q *queries) HasCompletedRun(ctx context.Context, bm club.BillingMonth) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(1) FROM billing_runs WHERE year = ? AND month = ? AND status = ?`,
		bm.Year, int(bm.Month), club.RunStatusCompleted)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *queries) ListBillingRuns(ctx context.Context, limit int) ([]club.BillingRun, error) {
	query := `SELECT id, month, year, status, students_processed, fees_created, error, started_at, completed_at
		 FROM billing_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []billingRunRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, err
	}

	runs := make([]club.BillingRun, 0, len(rows))
	for _, r := range rows {
		started, err := parseTime(r.StartedAt)
		if err != nil {
			return nil, err
		}
		completed, err := parseTime(r.CompletedAt.String)
		if err != nil {
			return nil, err
		}
		runs = append(runs, club.BillingRun{
			ID:                r.ID,
			Month:             time.Month(r.Month),
			Year:              r.Year,
			Status:            r.Status,
			StudentsProcessed: r.StudentsProcessed,
			FeesCreated:       r.FeesCreated,
			Error:             r.Error.String,
			StartedAt:         started,
			CompletedAt:       completed,
		})
	}
	return runs, nil
}
