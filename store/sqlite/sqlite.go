/*
Package sqlite provides a SQLite-backed reference implementation of the
accounting engine contract.

PURPOSE:
  Implements engine.Session on top of a company data file stored as a
  SQLite database. It is used by the server when no vendor engine is
  wired in, and by the tests as a real engine with real persistence.

INTERFACES IMPLEMENTED:
  engine.Session:        Open/close a data file, hand out handles
  engine.Ledger[R]:      Customers, vendors, employees, inventory, projects, accounts
  engine.InvoiceJournal: Sales and purchase invoices
  engine.GeneralJournal: Journal entries
  engine.Database:       Raw SQL with explicit transactions

KEY TABLES:
  users:            Login names with bcrypt password hashes
  company_settings: Single row, holds the account number length
  accounts:         Chart of accounts
  customers/vendors/employees/inventory/projects: Master records
  invoices:         Posted sales and purchase invoices (status posted/reversed)
  invoice_lines:    Detail lines of an invoice
  invoice_taxes:    Tax amounts per line (line_no > 0) or per document (line_no = 0)
  journal_entries:  Journal entries (status posted/adjusted, last_year flag)
  journal_lines:    Debit/credit lines of an entry

CORRECTIONS:
  A posted journal entry is never edited. Adjusting it marks it "adjusted"
  and posts a replacement. A voided invoice is kept with status "reversed".

LOCKING:
  Multi-user sessions open the file in WAL mode. Single-user sessions take
  an exclusive lock for as long as the session is open.

AUTHENTICATION:
  A data file with no users accepts any login. Otherwise the password must
  match the stored bcrypt hash.

USAGE:
  err := sqlite.Create(ctx, "./company.db", sqlite.Company{Name: "Acme"},
      sqlite.User{Name: "admin", Password: "secret"})

  session := sqlite.New()
  err = session.Open(ctx, engine.OpenOptions{Path: "./company.db", Username: "admin", Password: "secret"})
  defer session.Close()

SEE ALSO:
  - engine/engine.go: The contract implemented here
  - ledgers.go, invoices.go, journal.go: Handle implementations
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// Session implements engine.Session.
type Session struct {
	mu      sync.Mutex
	db      *sql.DB
	opts    engine.OpenOptions
	handles map[string]bool
}

// New creates a closed session.
func New() *Session {
	return &Session{handles: make(map[string]bool)}
}

// Company seeds a new data file.
type Company struct {
	Name                string
	AccountNumberLength int
	Accounts            []engine.Account
}

// User is a login to seed into a data file.
type User struct {
	Name     string
	Password string
}

// Create initializes a company data file at path. It fails if the file
// already exists.
func Create(ctx context.Context, path string, company Company, users ...User) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("data file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate data file: %w", err)
	}

	length := company.AccountNumberLength
	if length <= 0 {
		length = patch.DefaultAccountLength
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO company_settings (id, company_name, account_number_length) VALUES (1, ?, ?)`,
		company.Name, length,
	); err != nil {
		return fmt.Errorf("failed to save company settings: %w", err)
	}
	for _, a := range company.Accounts {
		a := a
		if err := accountTable.insert(ctx, sqlTx, &a); err != nil {
			return fmt.Errorf("failed to seed account %d: %w", a.Number, err)
		}
	}
	for _, u := range users {
		if err := addUser(ctx, sqlTx, u); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func addUser(ctx context.Context, db execer, u User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		u.Name, string(hash),
	)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.Name, err)
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS company_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		company_name TEXT NOT NULL DEFAULT '',
		account_number_length INTEGER NOT NULL DEFAULT 4
	);

	CREATE TABLE IF NOT EXISTS accounts (
		number INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		name_alt TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS customers (
		name TEXT PRIMARY KEY,
		contact TEXT NOT NULL DEFAULT '',
		street1 TEXT NOT NULL DEFAULT '',
		street2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		phone1 TEXT NOT NULL DEFAULT '',
		phone2 TEXT NOT NULL DEFAULT '',
		fax TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		currency_code TEXT NOT NULL DEFAULT '',
		tax_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS vendors (
		name TEXT PRIMARY KEY,
		contact TEXT NOT NULL DEFAULT '',
		street1 TEXT NOT NULL DEFAULT '',
		street2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		phone1 TEXT NOT NULL DEFAULT '',
		phone2 TEXT NOT NULL DEFAULT '',
		fax TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		currency_code TEXT NOT NULL DEFAULT '',
		tax_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS employees (
		name TEXT PRIMARY KEY,
		street1 TEXT NOT NULL DEFAULT '',
		street2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		phone1 TEXT NOT NULL DEFAULT '',
		phone2 TEXT NOT NULL DEFAULT '',
		sin TEXT NOT NULL DEFAULT '',
		birth_date TEXT,
		hire_date TEXT,
		tax_table TEXT NOT NULL DEFAULT '',
		pay_periods INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS inventory (
		part_code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		name_alt TEXT NOT NULL DEFAULT '',
		is_service INTEGER NOT NULL DEFAULT 0,
		is_activity INTEGER NOT NULL DEFAULT 0,
		stocking_unit TEXT NOT NULL DEFAULT '',
		stocking_unit_alt TEXT NOT NULL DEFAULT '',
		regular_price TEXT NOT NULL DEFAULT '0',
		preferred_price TEXT NOT NULL DEFAULT '0',
		asset_account TEXT NOT NULL DEFAULT '',
		expense_account TEXT NOT NULL DEFAULT '',
		revenue_account TEXT NOT NULL DEFAULT '',
		variance_account TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		name_alt TEXT NOT NULL DEFAULT '',
		start_date TEXT
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		journal TEXT NOT NULL,
		party TEXT NOT NULL,
		number TEXT NOT NULL,
		date TEXT,
		paid_by TEXT NOT NULL DEFAULT '',
		cheque_number TEXT NOT NULL DEFAULT '',
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'posted',
		UNIQUE (journal, party, number)
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		item_number TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '0',
		price TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL DEFAULT '0',
		account TEXT NOT NULL DEFAULT '',
		tax_code TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (invoice_id, line_no)
	);

	-- line_no 0 holds document-level taxes
	CREATE TABLE IF NOT EXISTS invoice_taxes (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		authority TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (invoice_id, line_no, authority)
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_year INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		date TEXT,
		status TEXT NOT NULL DEFAULT 'posted',
		replaces INTEGER REFERENCES journal_entries(id)
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_year ON journal_entries(last_year, id);

	CREATE TABLE IF NOT EXISTS journal_lines (
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		account TEXT NOT NULL,
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entry_id, line_no)
	);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// Open connects to an existing data file and checks the login.
func (s *Session) Open(ctx context.Context, opts engine.OpenOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return fmt.Errorf("%w: session already open", engine.ErrSessionOpen)
	}
	if opts.Path == "" {
		return fmt.Errorf("%w: no data file configured", engine.ErrSessionOpen)
	}
	if _, err := os.Stat(opts.Path); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrSessionOpen, err)
	}

	dsn := opts.Path + "?_foreign_keys=on&_journal_mode=WAL"
	if !opts.MultiUser {
		dsn = opts.Path + "?_foreign_keys=on&_locking_mode=EXCLUSIVE"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrSessionOpen, err)
	}
	// Handles share one connection so an exclusive lock stays with the session.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", engine.ErrSessionOpen, err)
	}
	if err := authenticate(ctx, db, opts.Username, opts.Password); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", engine.ErrSessionOpen, err)
	}

	s.db = db
	s.opts = opts
	s.handles = make(map[string]bool)
	return nil
}

var errBadLogin = errors.New("invalid username or password")

func authenticate(ctx context.Context, db *sql.DB, username, password string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	var hash string
	err := db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE username = ?", username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return errBadLogin
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return errBadLogin
	}
	return nil
}

// Close releases the data file. Safe to call on a closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.handles = make(map[string]bool)
	return err
}

// IsOpen reports whether a data file is open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// OpenHandles lists the ledgers and journals currently open, sorted.
func (s *Session) OpenHandles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.handles))
	for name, open := range s.handles {
		if open {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// AddUser creates or replaces a login on the open data file.
func (s *Session) AddUser(ctx context.Context, u User) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return addUser(ctx, db, u)
}

func (s *Session) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, engine.ErrSessionClosed
	}
	return s.db, nil
}

func (s *Session) openHandle(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return engine.ErrSessionClosed
	}
	s.handles[name] = true
	return nil
}

func (s *Session) closeHandle(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, name)
	return nil
}

// =============================================================================
// HANDLES
// =============================================================================

func openLedger[R any](s *Session, t table[R]) (engine.Ledger[R], error) {
	if err := s.openHandle(t.name); err != nil {
		return nil, err
	}
	return &ledger[R]{s: s, t: t}, nil
}

func (s *Session) OpenCustomerLedger() (engine.Ledger[engine.Party], error) {
	return openLedger(s, customerTable)
}

func (s *Session) CloseCustomerLedger() error { return s.closeHandle(customerTable.name) }

func (s *Session) OpenVendorLedger() (engine.Ledger[engine.Party], error) {
	return openLedger(s, vendorTable)
}

func (s *Session) CloseVendorLedger() error { return s.closeHandle(vendorTable.name) }

func (s *Session) OpenEmployeeLedger() (engine.Ledger[engine.Employee], error) {
	return openLedger(s, employeeTable)
}

func (s *Session) CloseEmployeeLedger() error { return s.closeHandle(employeeTable.name) }

func (s *Session) OpenInventoryLedger() (engine.Ledger[engine.Inventory], error) {
	return openLedger(s, inventoryTable)
}

func (s *Session) CloseInventoryLedger() error { return s.closeHandle(inventoryTable.name) }

func (s *Session) OpenProjectLedger() (engine.Ledger[engine.Project], error) {
	return openLedger(s, projectTable)
}

func (s *Session) CloseProjectLedger() error { return s.closeHandle(projectTable.name) }

func (s *Session) OpenAccountLedger() (engine.Ledger[engine.Account], error) {
	return openLedger(s, accountTable)
}

func (s *Session) CloseAccountLedger() error { return s.closeHandle(accountTable.name) }

func (s *Session) OpenSalesJournal() (engine.InvoiceJournal, error) {
	if err := s.openHandle(journalSales); err != nil {
		return nil, err
	}
	return newInvoiceJournal(s, journalSales, customerTable.name), nil
}

func (s *Session) CloseSalesJournal() error { return s.closeHandle(journalSales) }

func (s *Session) OpenPurchasesJournal() (engine.InvoiceJournal, error) {
	if err := s.openHandle(journalPurchases); err != nil {
		return nil, err
	}
	return newInvoiceJournal(s, journalPurchases, vendorTable.name), nil
}

func (s *Session) ClosePurchasesJournal() error { return s.closeHandle(journalPurchases) }

func (s *Session) OpenGeneralJournal() (engine.GeneralJournal, error) {
	if err := s.openHandle(journalGeneral); err != nil {
		return nil, err
	}
	return &generalJournal{s: s}, nil
}

func (s *Session) CloseGeneralJournal() error { return s.closeHandle(journalGeneral) }

// =============================================================================
// RAW SQL (engine.Database)
// =============================================================================

// Database returns the raw SQL facility. Calls fail with ErrSessionClosed
// when no data file is open.
func (s *Session) Database() engine.Database {
	return database{s: s}
}

type database struct {
	s *Session
}

func (d database) Begin(ctx context.Context) (engine.Tx, error) {
	db, err := d.s.conn()
	if err != nil {
		return nil, err
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx{sqlTx}, nil
}

func (d database) ScalarQuery(ctx context.Context, query string) (any, error) {
	db, err := d.s.conn()
	if err != nil {
		return nil, err
	}
	var v any
	if err := db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return nil, err
	}
	return v, nil
}

type tx struct {
	sqlTx *sql.Tx
}

func (t tx) Exec(ctx context.Context, statement string) (int64, error) {
	res, err := t.sqlTx.ExecContext(ctx, statement)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t tx) Commit() error   { return t.sqlTx.Commit() }
func (t tx) Rollback() error { return t.sqlTx.Rollback() }

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
