package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/sage-poster/engine"
)

// Journal names, also used as handle names.
const (
	journalSales     = "sales"
	journalPurchases = "purchases"
	journalGeneral   = "general"
)

type docMode int

const (
	modeNew docMode = iota
	modeAdjust
	modeLookup
)

var errReadOnly = errors.New("document was loaded read-only")

var paidByTypes = []string{"Pay Later", "Cash", "Cheque", "Credit Card", "Direct Deposit"}

// invoiceJournal implements engine.InvoiceJournal for one journal.
type invoiceJournal struct {
	s          *Session
	journal    string
	partyTable string

	mode     docMode
	id       string
	status   string
	party    string
	header   engine.InvoiceHeader
	lines    []*engine.InvoiceLine
	lineTax  []*taxes
	totalTax taxes
}

var _ engine.InvoiceJournal = (*invoiceJournal)(nil)

func newInvoiceJournal(s *Session, journal, partyTable string) *invoiceJournal {
	return &invoiceJournal{s: s, journal: journal, partyTable: partyTable}
}

func (j *invoiceJournal) reset() {
	*j = invoiceJournal{s: j.s, journal: j.journal, partyTable: j.partyTable}
}

func (j *invoiceJournal) InAdjustMode() bool { return j.mode == modeAdjust }
func (j *invoiceJournal) LineCount() int     { return len(j.lines) }

func (j *invoiceJournal) RemoveLine(n int) (bool, error) {
	if j.mode == modeLookup {
		return false, errReadOnly
	}
	if n < 1 || n > len(j.lines) {
		return false, nil
	}
	j.lines = append(j.lines[:n-1], j.lines[n:]...)
	j.lineTax = append(j.lineTax[:n-1], j.lineTax[n:]...)
	return true, nil
}

func (j *invoiceJournal) Header() *engine.InvoiceHeader { return &j.header }
func (j *invoiceJournal) PartyName() string             { return j.party }

func (j *invoiceJournal) SelectParty(ctx context.Context, name string) error {
	db, err := j.s.conn()
	if err != nil {
		return err
	}
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", j.partyTable)
	if err := db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", engine.ErrUnknownParty, name)
	}
	j.party = name
	return nil
}

func (j *invoiceJournal) SelectPaidByType(paidBy string) error {
	for _, t := range paidByTypes {
		if strings.EqualFold(t, strings.TrimSpace(paidBy)) {
			j.header.PaidByType = t
			return nil
		}
	}
	return &engine.ValidationError{Field: "paid_by_type", Message: fmt.Sprintf("unknown payment method %q", paidBy)}
}

func (j *invoiceJournal) Line(n int) *engine.InvoiceLine {
	if n < 1 {
		n = 1
	}
	for len(j.lines) < n {
		j.lines = append(j.lines, &engine.InvoiceLine{})
		j.lineTax = append(j.lineTax, &taxes{})
	}
	return j.lines[n-1]
}

func (j *invoiceJournal) LineTaxSummary(n int) engine.TaxSummary {
	j.Line(n)
	if n < 1 {
		n = 1
	}
	return newTaxSummary(j.lineTax[n-1])
}

func (j *invoiceJournal) TotalTaxSummary() engine.TaxSummary {
	return newTaxSummary(&j.totalTax)
}

func lineAmount(l *engine.InvoiceLine) decimal.Decimal {
	if !l.Amount.IsZero() {
		return l.Amount
	}
	return l.Quantity.Mul(l.Price)
}

func (j *invoiceJournal) SubTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range j.lines {
		sum = sum.Add(lineAmount(l))
	}
	return sum
}

// Total adds the document-level taxes when any were set, otherwise the sum
// of the line taxes.
func (j *invoiceJournal) Total() decimal.Decimal {
	tax := j.totalTax.total()
	if len(j.totalTax) == 0 {
		for _, t := range j.lineTax {
			tax = tax.Add(t.total())
		}
	}
	return j.SubTotal().Add(tax)
}

// =============================================================================
// LOADING
// =============================================================================

func (j *invoiceJournal) LoadForAdjust(ctx context.Context, party, invoiceNumber string) (bool, error) {
	return j.load(ctx, party, invoiceNumber, modeAdjust)
}

func (j *invoiceJournal) LoadForLookup(ctx context.Context, party, invoiceNumber string) (bool, error) {
	return j.load(ctx, party, invoiceNumber, modeLookup)
}

func (j *invoiceJournal) load(ctx context.Context, party, number string, mode docMode) (bool, error) {
	db, err := j.s.conn()
	if err != nil {
		return false, err
	}
	j.reset()

	var id, status string
	var header engine.InvoiceHeader
	err = db.QueryRowContext(ctx, `
		SELECT id, number, date, paid_by, cheque_number, status
		FROM invoices
		WHERE journal = ? AND party = ? AND number = ?`,
		j.journal, party, number,
	).Scan(&id, &header.InvoiceNumber, date{&header.Date}, &header.PaidByType, &header.ChequeNumber, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load invoice: %w", err)
	}
	if mode == modeAdjust && status != statusPosted {
		return false, nil
	}

	lines, err := loadInvoiceLines(ctx, db, id)
	if err != nil {
		return false, err
	}
	lineTax, totalTax, err := loadInvoiceTaxes(ctx, db, id, len(lines))
	if err != nil {
		return false, err
	}

	j.mode, j.id, j.status, j.party, j.header = mode, id, status, party, header
	j.lines, j.lineTax, j.totalTax = lines, lineTax, totalTax
	return true, nil
}

func loadInvoiceLines(ctx context.Context, db *sql.DB, id string) ([]*engine.InvoiceLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT item_number, description, quantity, price, amount, account, tax_code
		FROM invoice_lines WHERE invoice_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []*engine.InvoiceLine
	for rows.Next() {
		l := &engine.InvoiceLine{}
		if err := rows.Scan(&l.ItemNumber, &l.Description, &l.Quantity, &l.Price, &l.Amount, &l.Account, &l.TaxCode); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadInvoiceTaxes(ctx context.Context, db *sql.DB, id string, lineCount int) ([]*taxes, taxes, error) {
	lineTax := make([]*taxes, lineCount)
	for i := range lineTax {
		lineTax[i] = &taxes{}
	}
	var total taxes

	rows, err := db.QueryContext(ctx, `
		SELECT line_no, authority, amount
		FROM invoice_taxes WHERE invoice_id = ? ORDER BY line_no, seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query invoice taxes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lineNo int
		var row taxRow
		if err := rows.Scan(&lineNo, &row.Authority, &row.Amount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan invoice tax: %w", err)
		}
		switch {
		case lineNo == 0:
			total = append(total, row)
		case lineNo <= lineCount:
			*lineTax[lineNo-1] = append(*lineTax[lineNo-1], row)
		}
	}
	return lineTax, total, rows.Err()
}

// =============================================================================
// POSTING
// =============================================================================

const (
	statusPosted   = "posted"
	statusReversed = "reversed"
	statusAdjusted = "adjusted"
)

// Post saves the invoice. An invoice without a party, a number or any line
// is refused (false, nil). Unknown line accounts are errors.
func (j *invoiceJournal) Post(ctx context.Context) (bool, error) {
	if j.mode == modeLookup {
		return false, errReadOnly
	}
	if j.party == "" || strings.TrimSpace(j.header.InvoiceNumber) == "" || len(j.lines) == 0 {
		return false, nil
	}

	db, err := j.s.conn()
	if err != nil {
		return false, err
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, l := range j.lines {
		if err := requireAccount(ctx, sqlTx, l.Account); err != nil {
			return false, err
		}
	}

	invoiceDate := j.header.Date
	if invoiceDate == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		invoiceDate = &today
	}
	subtotal, total := j.SubTotal().String(), j.Total().String()

	id := j.id
	if j.mode == modeNew {
		id = uuid.NewString()
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO invoices (id, journal, party, number, date, paid_by, cheque_number, subtotal, total, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, j.journal, j.party, j.header.InvoiceNumber, date{&invoiceDate}, j.header.PaidByType,
			j.header.ChequeNumber, subtotal, total, statusPosted,
		)
	} else {
		_, err = sqlTx.ExecContext(ctx, `
			UPDATE invoices SET party = ?, number = ?, date = ?, paid_by = ?, cheque_number = ?, subtotal = ?, total = ?
			WHERE id = ?`,
			j.party, j.header.InvoiceNumber, date{&invoiceDate}, j.header.PaidByType,
			j.header.ChequeNumber, subtotal, total, id,
		)
		if err == nil {
			_, err = sqlTx.ExecContext(ctx, "DELETE FROM invoice_lines WHERE invoice_id = ?", id)
		}
		if err == nil {
			_, err = sqlTx.ExecContext(ctx, "DELETE FROM invoice_taxes WHERE invoice_id = ?", id)
		}
	}
	if isUniqueConstraintError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save invoice: %w", err)
	}

	for i, l := range j.lines {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, item_number, description, quantity, price, amount, account, tax_code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i+1, l.ItemNumber, l.Description, l.Quantity.String(), l.Price.String(),
			lineAmount(l).String(), l.Account, l.TaxCode,
		)
		if err != nil {
			return false, fmt.Errorf("failed to save invoice line %d: %w", i+1, err)
		}
		if err := saveTaxes(ctx, sqlTx, id, i+1, *j.lineTax[i]); err != nil {
			return false, err
		}
	}
	if err := saveTaxes(ctx, sqlTx, id, 0, j.totalTax); err != nil {
		return false, err
	}

	if err := sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit invoice: %w", err)
	}

	j.id, j.status, j.header.Date = id, statusPosted, invoiceDate
	if j.mode == modeNew {
		j.mode = modeAdjust
	}
	return true, nil
}

func saveTaxes(ctx context.Context, db execer, id string, lineNo int, rows taxes) error {
	for seq, r := range rows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO invoice_taxes (invoice_id, line_no, seq, authority, amount) VALUES (?, ?, ?, ?, ?)`,
			id, lineNo, seq, r.Authority, r.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save tax %s: %w", r.Authority, err)
		}
	}
	return nil
}

// requireAccount fails with ErrUnknownAccount when a non-blank account is
// not in the chart of accounts.
func requireAccount(ctx context.Context, db querier, account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE number = ?", account).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", engine.ErrUnknownAccount, account)
	}
	return nil
}

// Reverse voids the loaded invoice.
func (j *invoiceJournal) Reverse(ctx context.Context) (bool, error) {
	if j.id == "" {
		return false, engine.ErrNotLoaded
	}
	if j.status == statusReversed {
		return false, engine.ErrAlreadyReversed
	}
	db, err := j.s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		"UPDATE invoices SET status = ? WHERE id = ? AND status = ?",
		statusReversed, j.id, statusPosted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reverse invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	j.status = statusReversed
	return true, nil
}
