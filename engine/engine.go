/*
Package engine defines the contract between the batch poster and the
accounting engine that owns the company data file.

PURPOSE:
  The poster never touches storage directly. Every read and write goes
  through a Session and the ledger/journal handles it hands out. Different
  implementations can back this contract: the SQLite reference engine in
  store/sqlite, or an adapter around a vendor SDK.

KEY INTERFACES:
  Session:        One open connection to one data file
  Ledger[R]:      Master records (customer, vendor, employee, ...)
  InvoiceJournal: Sales and purchase invoices with detail lines
  GeneralJournal: Journal entries with debit/credit lines
  TaxSummary:     Per-line or per-document tax amounts keyed by authority
  Database:       Raw SQL facility (transactions + scalar queries)

HANDLE LIFECYCLE:
  Handles are opened right before use and closed by the same caller on
  every exit path. Close methods must tolerate being called when the
  matching Open failed or was never called.

LINE NUMBERS:
  Journal lines are 1-indexed. Line(n) creates the line (and any gap before
  it) when n is past the current count.

SEE ALSO:
  - records.go: Record types exchanged through the handles
  - errors.go: Sentinel errors
  - store/sqlite: Reference implementation
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION
// =============================================================================

// OpenOptions carries everything needed to open a data file.
type OpenOptions struct {
	Path      string
	Username  string
	Password  string
	MultiUser bool

	AppName    string
	AppID      string
	AppVersion int
}

// Session is a single stateful connection to one company data file.
// It is not safe for concurrent use; callers serialize access.
type Session interface {
	// Open connects to the data file. Returns an error wrapping
	// ErrSessionOpen when the file cannot be opened or the login is refused.
	Open(ctx context.Context, opts OpenOptions) error

	// Close releases the data file. Safe to call on a closed session.
	Close() error

	OpenCustomerLedger() (Ledger[Party], error)
	CloseCustomerLedger() error

	OpenVendorLedger() (Ledger[Party], error)
	CloseVendorLedger() error

	OpenEmployeeLedger() (Ledger[Employee], error)
	CloseEmployeeLedger() error

	OpenInventoryLedger() (Ledger[Inventory], error)
	CloseInventoryLedger() error

	OpenProjectLedger() (Ledger[Project], error)
	CloseProjectLedger() error

	OpenAccountLedger() (Ledger[Account], error)
	CloseAccountLedger() error

	OpenSalesJournal() (InvoiceJournal, error)
	CloseSalesJournal() error

	OpenPurchasesJournal() (InvoiceJournal, error)
	ClosePurchasesJournal() error

	OpenGeneralJournal() (GeneralJournal, error)
	CloseGeneralJournal() error

	// Database returns the raw SQL facility of the open data file.
	Database() Database
}

// =============================================================================
// LEDGERS
// =============================================================================

// Ledger is a record store for one kind of master record.
// The handle holds exactly one current record at a time.
type Ledger[R any] interface {
	// Record returns the current in-memory record. Mutations are persisted
	// only by Save.
	Record() *R

	// InitializeNew resets the handle to a blank new record.
	InitializeNew()

	// Load makes the record identified by key current.
	// Returns false when no such record exists.
	Load(ctx context.Context, key string) (bool, error)

	// Save persists the current record, inserting or updating.
	// Returns false when the engine refuses the record.
	Save(ctx context.Context) (bool, error)
}

// =============================================================================
// JOURNALS
// =============================================================================

// LineSet is the part of a journal that exposes its ordered line collection.
type LineSet interface {
	// InAdjustMode reports whether an existing document was loaded for adjustment.
	InAdjustMode() bool

	// LineCount returns the number of lines currently on the document.
	LineCount() int

	// RemoveLine deletes line n (1-indexed) and shifts later lines up.
	RemoveLine(n int) (bool, error)
}

// InvoiceJournal posts sales or purchase invoices.
type InvoiceJournal interface {
	LineSet

	// LoadForAdjust loads a posted invoice so it can be modified and reposted.
	LoadForAdjust(ctx context.Context, party, invoiceNumber string) (bool, error)

	// LoadForLookup loads a posted invoice read-only (lookup or void).
	LoadForLookup(ctx context.Context, party, invoiceNumber string) (bool, error)

	Header() *InvoiceHeader

	// SelectParty sets the customer (sales) or vendor (purchases) by name.
	SelectParty(ctx context.Context, name string) error

	// PartyName returns the selected customer or vendor name.
	PartyName() string

	SelectPaidByType(paidBy string) error

	// Line returns line n (1-indexed), creating it when needed.
	Line(n int) *InvoiceLine

	LineTaxSummary(n int) TaxSummary
	TotalTaxSummary() TaxSummary

	SubTotal() decimal.Decimal
	Total() decimal.Decimal

	Post(ctx context.Context) (bool, error)

	// Reverse voids the loaded invoice.
	Reverse(ctx context.Context) (bool, error)
}

// GeneralJournal posts journal entries.
type GeneralJournal interface {
	LineSet

	// LoadForAdjust loads a posted entry so it can be replaced by a new one.
	LoadForAdjust(ctx context.Context, id int) (bool, error)

	// LoadForLookup loads an entry from the current or the previous fiscal year.
	LoadForLookup(ctx context.Context, id int, lastYear bool) (bool, error)

	Header() *JournalHeader

	// Line returns line n (1-indexed), creating it when needed.
	Line(n int) *JournalLine

	Post(ctx context.Context) (bool, error)

	// LastEntryNumber returns the highest entry number for the fiscal year.
	LastEntryNumber(ctx context.Context, lastYear bool) (int, error)
}

// TaxSummary is a staged view of tax amounts keyed by authority name.
// Changes become visible on the journal only after Save.
type TaxSummary interface {
	Count() int

	// Name and Amount read row n (1-indexed).
	Name(row int) string
	Amount(row int) decimal.Decimal

	// SetByName sets (never adds to) the amount for an authority.
	SetByName(authority string, amount decimal.Decimal) error

	Save() error
	Cancel()
}

// =============================================================================
// RAW SQL
// =============================================================================

// Database is the raw SQL facility of the data file.
type Database interface {
	Begin(ctx context.Context) (Tx, error)

	// ScalarQuery runs a query returning a single value.
	ScalarQuery(ctx context.Context, query string) (any, error)
}

// Tx is an open raw SQL transaction.
type Tx interface {
	// Exec runs a data-modification statement and returns rows affected.
	Exec(ctx context.Context, statement string) (int64, error)
	Commit() error
	Rollback() error
}
