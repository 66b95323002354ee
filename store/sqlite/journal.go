package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sage-poster/engine"
)

// generalJournal implements engine.GeneralJournal.
type generalJournal struct {
	s *Session

	mode     docMode
	id       int
	lastYear bool
	header   engine.JournalHeader
	lines    []*engine.JournalLine
}

var _ engine.GeneralJournal = (*generalJournal)(nil)

func (g *generalJournal) InAdjustMode() bool { return g.mode == modeAdjust }
func (g *generalJournal) LineCount() int     { return len(g.lines) }

func (g *generalJournal) RemoveLine(n int) (bool, error) {
	if g.mode == modeLookup {
		return false, errReadOnly
	}
	if n < 1 || n > len(g.lines) {
		return false, nil
	}
	g.lines = append(g.lines[:n-1], g.lines[n:]...)
	return true, nil
}

func (g *generalJournal) Header() *engine.JournalHeader { return &g.header }

func (g *generalJournal) Line(n int) *engine.JournalLine {
	if n < 1 {
		n = 1
	}
	for len(g.lines) < n {
		g.lines = append(g.lines, &engine.JournalLine{})
	}
	return g.lines[n-1]
}

// =============================================================================
// LOADING
// =============================================================================

// LoadForAdjust loads a posted entry of the current fiscal year.
func (g *generalJournal) LoadForAdjust(ctx context.Context, id int) (bool, error) {
	return g.load(ctx, id, false, modeAdjust)
}

func (g *generalJournal) LoadForLookup(ctx context.Context, id int, lastYear bool) (bool, error) {
	return g.load(ctx, id, lastYear, modeLookup)
}

func (g *generalJournal) load(ctx context.Context, id int, lastYear bool, mode docMode) (bool, error) {
	db, err := g.s.conn()
	if err != nil {
		return false, err
	}
	*g = generalJournal{s: g.s}

	var status string
	var header engine.JournalHeader
	err = db.QueryRowContext(ctx, `
		SELECT source, comment, date, status FROM journal_entries
		WHERE id = ? AND last_year = ?`,
		id, lastYear,
	).Scan(&header.Source, &header.Comment, date{&header.Date}, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if mode == modeAdjust && status != statusPosted {
		return false, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT account, debit, credit, comment FROM journal_lines
		WHERE entry_id = ? ORDER BY line_no`, id)
	if err != nil {
		return false, fmt.Errorf("failed to query journal lines: %w", err)
	}
	defer rows.Close()

	var lines []*engine.JournalLine
	for rows.Next() {
		l := &engine.JournalLine{}
		if err := rows.Scan(&l.Account, &l.Debit, &l.Credit, &l.Comment); err != nil {
			return false, fmt.Errorf("failed to scan journal line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	g.mode, g.id, g.lastYear, g.header, g.lines = mode, id, lastYear, header, lines
	return true, nil
}

// =============================================================================
// POSTING
// =============================================================================

// placeholder reports a line that carries nothing: no account, no amounts.
func placeholder(l *engine.JournalLine) bool {
	return strings.TrimSpace(l.Account) == "" && l.Debit.IsZero() && l.Credit.IsZero()
}

// Post records the entry. Adjusting posts a replacement and marks the
// original "adjusted". The entry needs two or more lines whose debits and
// credits balance; placeholder lines are dropped.
func (g *generalJournal) Post(ctx context.Context) (bool, error) {
	if g.mode == modeLookup {
		return false, errReadOnly
	}

	var lines []*engine.JournalLine
	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range g.lines {
		if placeholder(l) {
			continue
		}
		if strings.TrimSpace(l.Account) == "" {
			return false, &engine.ValidationError{Field: "ledger_account", Message: "line has amounts but no account"}
		}
		debits, credits = debits.Add(l.Debit), credits.Add(l.Credit)
		lines = append(lines, l)
	}
	if len(lines) < 2 {
		return false, nil
	}
	if !debits.Equal(credits) || debits.IsZero() {
		return false, fmt.Errorf("%w: debits %s, credits %s", engine.ErrUnbalanced, debits, credits)
	}

	db, err := g.s.conn()
	if err != nil {
		return false, err
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, l := range lines {
		if err := requireAccount(ctx, sqlTx, l.Account); err != nil {
			return false, err
		}
	}

	entryDate := g.header.Date
	if entryDate == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		entryDate = &today
	}

	var replaces sql.NullInt64
	if g.mode == modeAdjust {
		replaces = sql.NullInt64{Int64: int64(g.id), Valid: true}
		if _, err := sqlTx.ExecContext(ctx,
			"UPDATE journal_entries SET status = ? WHERE id = ?", statusAdjusted, g.id,
		); err != nil {
			return false, fmt.Errorf("failed to mark entry adjusted: %w", err)
		}
	}

	res, err := sqlTx.ExecContext(ctx, `
		INSERT INTO journal_entries (last_year, source, comment, date, status, replaces)
		VALUES (0, ?, ?, ?, ?, ?)`,
		g.header.Source, g.header.Comment, date{&entryDate}, statusPosted, replaces,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}

	for i, l := range lines {
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO journal_lines (entry_id, line_no, account, debit, credit, comment)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i+1, l.Account, l.Debit.String(), l.Credit.String(), l.Comment,
		); err != nil {
			return false, fmt.Errorf("failed to save journal line %d: %w", i+1, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit journal entry: %w", err)
	}

	g.mode, g.id, g.lines = modeAdjust, int(id), lines
	return true, nil
}

func (g *generalJournal) LastEntryNumber(ctx context.Context, lastYear bool) (int, error) {
	db, err := g.s.conn()
	if err != nil {
		return 0, err
	}
	var id int
	err = db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) FROM journal_entries WHERE last_year = ?", lastYear,
	).Scan(&id)
	return id, err
}
