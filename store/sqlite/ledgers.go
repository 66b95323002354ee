package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/sage-poster/engine"
)

// =============================================================================
// TABLE DESCRIPTORS
// =============================================================================

// table maps one record type onto one table. columns and fields line up:
// fields returns pointers into the record, used both as scan destinations
// and as statement arguments.
type table[R any] struct {
	name    string
	key     string
	columns []string
	fields  func(*R) []any
	keyOf   func(*R) string
	valid   func(*R) bool
}

func (t table[R]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(t.columns, ", "), t.name, t.key)
}

func (t table[R]) insert(ctx context.Context, db execer, r *R) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), placeholders)
	_, err := db.ExecContext(ctx, query, t.fields(r)...)
	return err
}

func (t table[R]) update(ctx context.Context, db execer, key string, r *R) error {
	sets := make([]string, len(t.columns))
	for i, c := range t.columns {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.name, strings.Join(sets, ", "), t.key)
	_, err := db.ExecContext(ctx, query, append(t.fields(r), key)...)
	return err
}

var partyColumns = []string{
	"name", "contact", "street1", "street2", "city", "province", "postal_code", "country",
	"phone1", "phone2", "fax", "email", "website", "currency_code", "tax_id",
}

func partyFields(r *engine.Party) []any {
	return []any{
		&r.Name, &r.Contact, &r.Street1, &r.Street2, &r.City, &r.Province, &r.PostalCode, &r.Country,
		&r.Phone1, &r.Phone2, &r.Fax, &r.Email, &r.Website, &r.CurrencyCode, &r.TaxID,
	}
}

func named(name string) bool {
	return strings.TrimSpace(name) != ""
}

var (
	customerTable = table[engine.Party]{
		name:    "customers",
		key:     "name",
		columns: partyColumns,
		fields:  partyFields,
		keyOf:   func(r *engine.Party) string { return r.Name },
		valid:   func(r *engine.Party) bool { return named(r.Name) },
	}

	vendorTable = table[engine.Party]{
		name:    "vendors",
		key:     "name",
		columns: partyColumns,
		fields:  partyFields,
		keyOf:   func(r *engine.Party) string { return r.Name },
		valid:   func(r *engine.Party) bool { return named(r.Name) },
	}

	employeeTable = table[engine.Employee]{
		name: "employees",
		key:  "name",
		columns: []string{
			"name", "street1", "street2", "city", "province", "postal_code", "phone1", "phone2",
			"sin", "birth_date", "hire_date", "tax_table", "pay_periods",
		},
		fields: func(r *engine.Employee) []any {
			return []any{
				&r.Name, &r.Street1, &r.Street2, &r.City, &r.Province, &r.PostalCode, &r.Phone1, &r.Phone2,
				&r.SIN, date{&r.BirthDate}, date{&r.HireDate}, &r.TaxTable, &r.PayPeriods,
			}
		},
		keyOf: func(r *engine.Employee) string { return r.Name },
		valid: func(r *engine.Employee) bool { return named(r.Name) },
	}

	inventoryTable = table[engine.Inventory]{
		name: "inventory",
		key:  "part_code",
		columns: []string{
			"part_code", "name", "name_alt", "is_service", "is_activity", "stocking_unit", "stocking_unit_alt",
			"regular_price", "preferred_price", "asset_account", "expense_account", "revenue_account", "variance_account",
		},
		fields: func(r *engine.Inventory) []any {
			return []any{
				&r.PartCode, &r.Name, &r.NameAlt, &r.IsService, &r.IsActivity, &r.StockingUnit, &r.StockingUnitAlt,
				&r.RegularPrice, &r.PreferredPrice, &r.AssetAccount, &r.ExpenseAccount, &r.RevenueAccount, &r.VarianceAccount,
			}
		},
		keyOf: func(r *engine.Inventory) string { return r.PartCode },
		valid: func(r *engine.Inventory) bool { return named(r.PartCode) },
	}

	projectTable = table[engine.Project]{
		name:    "projects",
		key:     "name",
		columns: []string{"name", "name_alt", "start_date"},
		fields: func(r *engine.Project) []any {
			return []any{&r.Name, &r.NameAlt, date{&r.StartDate}}
		},
		keyOf: func(r *engine.Project) string { return r.Name },
		valid: func(r *engine.Project) bool { return named(r.Name) },
	}

	accountTable = table[engine.Account]{
		name:    "accounts",
		key:     "number",
		columns: []string{"number", "name", "name_alt", "type", "class"},
		fields: func(r *engine.Account) []any {
			return []any{&r.Number, &r.Name, &r.NameAlt, &r.Type, &r.Class}
		},
		keyOf: func(r *engine.Account) string { return strconv.Itoa(r.Number) },
		valid: func(r *engine.Account) bool { return r.Number > 0 && named(r.Name) },
	}
)

// =============================================================================
// LEDGER HANDLE
// =============================================================================

// ledger implements engine.Ledger over a table descriptor.
type ledger[R any] struct {
	s   *Session
	t   table[R]
	rec R

	// loadedKey is the key the current record was loaded with; empty for a
	// new record. Saving a loaded record updates that row even when the
	// key field itself was changed.
	loadedKey string
}

func (l *ledger[R]) Record() *R {
	return &l.rec
}

func (l *ledger[R]) InitializeNew() {
	var zero R
	l.rec = zero
	l.loadedKey = ""
}

func (l *ledger[R]) Load(ctx context.Context, key string) (bool, error) {
	db, err := l.s.conn()
	if err != nil {
		return false, err
	}

	var rec R
	err = db.QueryRowContext(ctx, l.t.selectSQL(), key).Scan(l.t.fields(&rec)...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s %q: %w", l.t.name, key, err)
	}

	l.rec = rec
	l.loadedKey = key
	return true, nil
}

// Save returns false without error when the record is incomplete or its key
// collides with another row.
func (l *ledger[R]) Save(ctx context.Context) (bool, error) {
	db, err := l.s.conn()
	if err != nil {
		return false, err
	}
	if !l.t.valid(&l.rec) {
		return false, nil
	}

	if l.loadedKey == "" {
		err = l.t.insert(ctx, db, &l.rec)
	} else {
		err = l.t.update(ctx, db, l.loadedKey, &l.rec)
	}
	if isUniqueConstraintError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save %s: %w", l.t.name, err)
	}

	l.loadedKey = l.t.keyOf(&l.rec)
	return true, nil
}

// =============================================================================
// DATE COLUMNS
// =============================================================================

// date stores an optional date as TEXT in engine.DateLayout, NULL when unset.
type date struct {
	p **time.Time
}

func (d date) Value() (driver.Value, error) {
	if *d.p == nil {
		return nil, nil
	}
	return (*d.p).Format(engine.DateLayout), nil
}

func (d date) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*d.p = nil
		return nil
	case time.Time:
		*d.p = &v
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
	if s == "" {
		*d.p = nil
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	*d.p = &t
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(engine.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
