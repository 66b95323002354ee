package poster_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/poster"
	"github.com/warp/sage-poster/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	t       *testing.T
	path    string
	session *sqlite.Session
	poster  *poster.Poster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.db")
	require.NoError(t, sqlite.Create(context.Background(), path, sqlite.Company{
		Name:                "Test Co",
		AccountNumberLength: 4,
		Accounts: []engine.Account{
			{Number: 1060, Name: "Cash"},
			{Number: 1200, Name: "Accounts Receivable"},
			{Number: 4020, Name: "Sales"},
			{Number: 5100, Name: "Purchases"},
		},
	}))

	session := sqlite.New()
	return &fixture{
		t:       t,
		path:    path,
		session: session,
		poster:  poster.New(session, poster.Options{DataFile: path}),
	}
}

// run decodes a JSON batch and runs it.
func (f *fixture) run(batch string) *poster.BatchResponse {
	f.t.Helper()
	var req poster.BatchRequest
	require.NoError(f.t, json.Unmarshal([]byte(batch), &req))
	resp, err := f.poster.Run(context.Background(), poster.Credentials{MultiUser: true}, req)
	require.NoError(f.t, err)
	return resp
}

// one runs a batch expected to produce exactly one result.
func (f *fixture) one(batch string) *poster.Result {
	f.t.Helper()
	resp := f.run(batch)
	require.Len(f.t, resp.Responses, 1)
	return resp.Responses[0]
}

func val(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// =============================================================================
// ROUTING
// =============================================================================

func TestRun_UnroutableActionsProduceNoResult(t *testing.T) {
	f := newFixture(t)

	// GIVEN: Five items, four of which cannot be routed
	resp := f.run(`{"requests": [
		{"action": "create_customer", "body": {"name": "Acme"}},
		{"action": "frobnicate_customer", "body": {"name": "B"}},
		{"action": "Create_Customer", "body": {"name": "C"}},
		{"action": "void_customer", "body": {"find_name": "Acme"}},
		{"action": "", "body": {"name": "D"}},
		{"action": "create_vendor"}
	]}`)

	// THEN: Only the routable item has a result
	assert.Equal(t, 1, resp.TotalRequests)
	require.Len(t, resp.Responses, 1)
	assert.Equal(t, "Acme", val(resp.Responses[0].Name))
	assert.Equal(t, "0m 0s", resp.JobDuration)
}

// =============================================================================
// FIELD PATCHING
// =============================================================================

func TestRun_BlankFieldsNeverOverwrite(t *testing.T) {
	f := newFixture(t)

	// GIVEN: A customer with city "X"
	res := f.one(`{"requests": [{"action": "create_customer", "body": {"name": "Acme", "city": "X", "phone1": "555"}}]}`)
	require.True(t, res.OK())

	// WHEN: Adjusting with city blank and phone omitted
	res = f.one(`{"requests": [{"action": "adjust_customer", "body": {"find_name": "Acme", "city": "  ", "email": "a@acme.test"}}]}`)
	require.True(t, res.OK(), res.Messages)

	// THEN: City and phone are unchanged, email was set
	res = f.one(`{"requests": [{"action": "lookup_customer", "body": {"find_name": "Acme"}}]}`)
	assert.Equal(t, "X", val(res.City))
	assert.Equal(t, "555", val(res.Phone1))
	assert.Equal(t, "a@acme.test", val(res.Email))
}

func TestRun_AdjustIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.one(`{"requests": [{"action": "create_employee", "body": {"name": "Jane", "city": "Ottawa"}}]}`)

	adjust := `{"requests": [{"action": "adjust_employee", "body": {
		"find_name": "Jane", "street1": "1 Main St", "hire_date": "2021-06-01", "pay_periods": "26"}}]}`
	lookup := `{"requests": [{"action": "lookup_employee", "body": {"find_name": "Jane"}}]}`

	f.one(adjust)
	once := f.one(lookup)
	f.one(adjust)
	twice := f.one(lookup)

	assert.Equal(t, once.Record, twice.Record)
	assert.Equal(t, "2021-06-01", val(twice.HireDate))
	assert.Equal(t, "26", val(twice.PayPeriods))
}

func TestRun_InvalidNumberIsIgnoredWithoutMessage(t *testing.T) {
	f := newFixture(t)
	f.one(`{"requests": [{"action": "create_inventory", "body": {"part_code": "W-1", "price_regular": "5"}}]}`)

	// WHEN: Adjusting the price with garbage
	res := f.one(`{"requests": [{"action": "adjust_inventory", "body": {"find_part_code": "W-1", "price_regular": "abc"}}]}`)

	// THEN: The save succeeds silently and the price is unchanged
	assert.True(t, res.OK())
	assert.Nil(t, res.Messages)
	assert.Equal(t, poster.KindNone, res.Kind())

	res = f.one(`{"requests": [{"action": "lookup_inventory", "body": {"find_part_code": "W-1"}}]}`)
	assert.Equal(t, "5", val(res.PriceRegular))
}

func TestRun_AccountReferencesAreNormalized(t *testing.T) {
	f := newFixture(t)
	res := f.one(`{"requests": [{"action": "create_inventory", "body": {"part_code": "W-2", "account_asset": "12", "account_revenue": "4020"}}]}`)
	require.True(t, res.OK())
	assert.Equal(t, "1200", val(res.AccountAsset))
	assert.Equal(t, "4020", val(res.AccountRevenue))
}

func TestRun_VendorTaxIDOnlyForVendors(t *testing.T) {
	f := newFixture(t)
	resp := f.run(`{"requests": [
		{"action": "create_vendor", "body": {"name": "Supplier", "tax_id": "123456789"}},
		{"action": "create_customer", "body": {"name": "Buyer", "tax_id": "987654321"}}
	]}`)
	require.Len(t, resp.Responses, 2)
	assert.Equal(t, "123456789", val(resp.Responses[0].TaxID))
	assert.Nil(t, resp.Responses[1].TaxID)
}

// =============================================================================
// INVOICES
// =============================================================================

const threeLineInvoice = `{"requests": [
	{"action": "create_customer", "body": {"name": "Acme"}},
	{"action": "create_sales_invoice", "body": {
		"cusven_name": "Acme", "invoice_number": "INV-1", "invoice_date": "2025-03-10", "paid_by_type": "Pay Later",
		"detail_lines": [
			{"item_description": "one", "quantity": "1", "price": "10", "line_amount": "10", "ledger_account": "4020"},
			{"item_description": "two", "quantity": "2", "price": "10", "line_amount": "20", "ledger_account": "4020"},
			{"item_description": "three", "quantity": "3", "price": "10", "line_amount": "30", "ledger_account": "4020"}
		]}}
]}`

func TestRun_CreateInvoiceEchoesPartyAndNumber(t *testing.T) {
	f := newFixture(t)
	resp := f.run(threeLineInvoice)
	require.Len(t, resp.Responses, 2)

	res := resp.Responses[1]
	require.True(t, res.OK(), res.Messages)
	assert.Equal(t, "Acme", val(res.CusVenName))
	assert.Equal(t, "INV-1", val(res.InvoiceNumber))
}

func TestRun_AdjustReplacesDetailLines(t *testing.T) {
	f := newFixture(t)
	f.run(threeLineInvoice)

	// WHEN: Adjusting the 3-line invoice with a single line
	res := f.one(`{"requests": [{"action": "adjust_sales_invoice", "body": {
		"find_cusven_name": "Acme", "find_invoice_number": "INV-1",
		"detail_lines": [{"item_number": "", "item_description": "only", "quantity": "4", "price": "2.5",
			"line_amount": "10", "ledger_account": "4020", "tax_code": "G"}]}}]}`)
	require.True(t, res.OK(), res.Messages)

	// THEN: The invoice has exactly that line
	res = f.one(`{"requests": [{"action": "lookup_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-1"}}]}`)
	require.Len(t, res.DetailLines, 1)
	line := res.DetailLines[0]
	assert.Equal(t, "only", val(line.ItemDescription))
	assert.Equal(t, "4", val(line.Quantity))
	assert.Equal(t, "2.5", val(line.Price))
	assert.Equal(t, "10", val(line.LineAmount))
	assert.Equal(t, "4020", val(line.LedgerAccount))
	assert.Equal(t, "G", val(line.TaxCode))
	assert.Equal(t, "10", val(res.SubTotal))
	assert.Equal(t, "2025-03-10", val(res.InvoiceDate))
}

func TestRun_AdjustWithoutAmountDerivesItFromQuantityAndPrice(t *testing.T) {
	f := newFixture(t)
	f.run(threeLineInvoice)

	// WHEN: Replacing the lines with one line that has no line_amount
	res := f.one(`{"requests": [{"action": "adjust_sales_invoice", "body": {
		"find_cusven_name": "Acme", "find_invoice_number": "INV-1",
		"detail_lines": [{"item_description": "only", "quantity": "4", "price": "2.5", "ledger_account": "4020"}]}}]}`)
	require.True(t, res.OK(), res.Messages)

	// THEN: The surviving line's old amount is replaced by quantity x price
	res = f.one(`{"requests": [{"action": "lookup_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-1"}}]}`)
	require.Len(t, res.DetailLines, 1)
	line := res.DetailLines[0]
	assert.Equal(t, "only", val(line.ItemDescription))
	assert.Equal(t, "4", val(line.Quantity))
	assert.Equal(t, "2.5", val(line.Price))
	assert.Equal(t, "10", val(line.LineAmount))
	assert.Equal(t, "10", val(res.SubTotal))
}

func TestRun_AdjustWithoutLinesKeepsLines(t *testing.T) {
	f := newFixture(t)
	f.run(threeLineInvoice)

	res := f.one(`{"requests": [{"action": "adjust_sales_invoice", "body": {
		"find_cusven_name": "Acme", "find_invoice_number": "INV-1", "cheque_number": "42"}}]}`)
	require.True(t, res.OK(), res.Messages)

	res = f.one(`{"requests": [{"action": "lookup_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-1"}}]}`)
	assert.Len(t, res.DetailLines, 3)
	assert.Equal(t, "42", val(res.ChequeNumber))
}

func TestRun_TaxAuthoritySetTwiceKeepsLastValue(t *testing.T) {
	f := newFixture(t)
	resp := f.run(`{"requests": [
		{"action": "create_customer", "body": {"name": "Acme"}},
		{"action": "create_sales_invoice", "body": {
			"cusven_name": "Acme", "invoice_number": "INV-2",
			"detail_lines": [{"line_amount": "100", "ledger_account": "4020",
				"tax_lines": [{"tax_authority": "GST", "tax_amount": "5"}, {"tax_authority": "GST", "tax_amount": "7"}]}],
			"tax_lines": [{"tax_authority": "GST", "tax_amount": "1"}, {"tax_authority": "GST", "tax_amount": "2"}]}},
		{"action": "lookup_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-2"}}
	]}`)
	require.Len(t, resp.Responses, 3)
	require.True(t, resp.Responses[1].OK(), resp.Responses[1].Messages)

	res := resp.Responses[2]
	require.Len(t, res.DetailLines, 1)
	require.Len(t, res.DetailLines[0].TaxLines, 1)
	assert.Equal(t, "7", val(res.DetailLines[0].TaxLines[0].TaxAmount))
	require.Len(t, res.TaxLines, 1)
	assert.Equal(t, "2", val(res.TaxLines[0].TaxAmount))
	assert.Equal(t, "102", val(res.Total))
}

func TestRun_VoidInvoice(t *testing.T) {
	f := newFixture(t)
	f.run(threeLineInvoice)

	resp := f.run(`{"requests": [
		{"action": "void_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-1"}},
		{"action": "void_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-404"}},
		{"action": "void_sales_invoice", "body": {"find_cusven_name": "Acme", "find_invoice_number": "INV-1"}}
	]}`)
	require.Len(t, resp.Responses, 3)

	assert.True(t, resp.Responses[0].OK())

	assert.Equal(t, poster.KindLookupMiss, resp.Responses[1].Kind())
	assert.Equal(t, []string{"Void invoice INV-404 for Acme FAILED"}, resp.Responses[1].Messages)

	assert.Equal(t, poster.KindEngine, resp.Responses[2].Kind())
	assert.True(t, errors.Is(resp.Responses[2].Err, engine.ErrAlreadyReversed))
}

func TestRun_RefusedSaveIsNotAnError(t *testing.T) {
	f := newFixture(t)

	// GIVEN: Items the engine declines without raising
	resp := f.run(`{"requests": [
		{"action": "create_customer", "body": {"city": "Calgary"}},
		{"action": "create_customer", "body": {"name": "Acme"}},
		{"action": "create_sales_invoice", "body": {"cusven_name": "Acme", "invoice_number": "INV-9"}}
	]}`)
	require.Len(t, resp.Responses, 3)

	// THEN: They are not-ok with no message and no failure kind
	for _, i := range []int{0, 2} {
		res := resp.Responses[i]
		require.NotNil(t, res.PostOK, "item %d", i)
		assert.False(t, *res.PostOK, "item %d", i)
		assert.Nil(t, res.Messages, "item %d", i)
		assert.Equal(t, poster.KindNone, res.Kind(), "item %d", i)
		assert.False(t, res.OK(), "item %d", i)
	}
	assert.True(t, resp.Responses[1].OK())
}

func TestRun_UnknownPartyFailsThePost(t *testing.T) {
	f := newFixture(t)
	res := f.one(`{"requests": [{"action": "create_purchase_invoice", "body": {
		"cusven_name": "Ghost", "invoice_number": "P-1", "detail_lines": [{"line_amount": "5", "ledger_account": "5100"}]}}]}`)

	assert.False(t, res.OK())
	assert.Equal(t, poster.KindEngine, res.Kind())
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "Post FAILED: ")
}

// =============================================================================
// GENERAL JOURNAL
// =============================================================================

func TestRun_GeneralJournalLifecycle(t *testing.T) {
	f := newFixture(t)

	// GIVEN: A posted entry
	res := f.one(`{"requests": [{"action": "create_general_journal", "body": {
		"source": "JE-1", "comment": "opening", "journal_date": "2025-01-31",
		"detail_lines": [
			{"ledger_account": "1060", "debit_amount": "100", "credit_amount": "0"},
			{"ledger_account": "4020", "debit_amount": "0", "credit_amount": "100"}
		]}}]}`)
	require.True(t, res.OK(), res.Messages)
	assert.Equal(t, "1", val(res.JournalID))

	// WHEN: Adjusting it
	res = f.one(`{"requests": [{"action": "adjust_general_journal", "body": {
		"find_journal_id": "1",
		"detail_lines": [
			{"ledger_account": "1060", "debit_amount": "250", "credit_amount": "0"},
			{"ledger_account": "4020", "debit_amount": "0", "credit_amount": "250"}
		]}}]}`)
	require.True(t, res.OK(), res.Messages)
	assert.Equal(t, "2", val(res.JournalID))

	// THEN: The replacement can be looked up; lookup needs the year flag
	resp := f.run(`{"requests": [
		{"action": "lookup_general_journal", "body": {"find_journal_id": "2", "find_journal_is_last_year": false}},
		{"action": "lookup_general_journal", "body": {"find_journal_id": "2"}}
	]}`)
	require.Len(t, resp.Responses, 2)

	entry := resp.Responses[0]
	require.True(t, entry.OK(), entry.Messages)
	assert.Equal(t, "JE-1", val(entry.Source))
	assert.Equal(t, "2025-01-31", val(entry.JournalDate))
	require.Len(t, entry.DetailLines, 2)
	assert.Equal(t, "250", val(entry.DetailLines[0].DebitAmount))

	assert.Equal(t, poster.KindLookupMiss, resp.Responses[1].Kind())
	assert.Equal(t, []string{"Lookup general journal 2 FAILED"}, resp.Responses[1].Messages)
}

func TestRun_UnbalancedJournalFails(t *testing.T) {
	f := newFixture(t)
	res := f.one(`{"requests": [{"action": "create_general_journal", "body": {
		"detail_lines": [
			{"ledger_account": "1060", "debit_amount": "100"},
			{"ledger_account": "4020", "credit_amount": "90"}
		]}}]}`)

	assert.Equal(t, poster.KindEngine, res.Kind())
	assert.True(t, errors.Is(res.Err, engine.ErrUnbalanced))
	assert.Nil(t, res.JournalID)
}

// =============================================================================
// RAW SQL
// =============================================================================

func countAccounts(t *testing.T, f *fixture) int64 {
	t.Helper()
	s := sqlite.New()
	require.NoError(t, s.Open(context.Background(), engine.OpenOptions{Path: f.path, MultiUser: true}))
	defer s.Close()
	v, err := s.Database().ScalarQuery(context.Background(), "SELECT COUNT(*) FROM accounts")
	require.NoError(t, err)
	n, ok := v.(int64)
	require.True(t, ok)
	return n
}

func TestRun_SQLNonQuery(t *testing.T) {
	f := newFixture(t)
	before := countAccounts(t, f)

	resp := f.run(`{"requests": [
		{"action": "create_sql_non_query", "body": {"sql_non_query": "UPDATE accounts SET name_alt = 'x' WHERE number >= 4000"}},
		{"action": "create_sql_non_query", "body": {"sql_non_query": "INSERT INTO accounts (number, name) VALUES (9000, 'Suspense'); INSERT INTO no_such_table VALUES (1)"}},
		{"action": "create_sql_non_query", "body": {"sql_non_query": " "}}
	]}`)
	require.Len(t, resp.Responses, 3)

	ok := resp.Responses[0]
	require.NotNil(t, ok.RowsAffected)
	assert.Equal(t, int64(2), *ok.RowsAffected)
	assert.Nil(t, ok.Messages)

	// THEN: The failing statement left no rows behind and reports no count
	bad := resp.Responses[1]
	assert.Equal(t, poster.KindQueryFailed, bad.Kind())
	assert.Nil(t, bad.RowsAffected)
	require.Len(t, bad.Messages, 1)
	assert.Contains(t, bad.Messages[0], "Query FAILED: ")
	assert.Equal(t, before, countAccounts(t, f))

	assert.Equal(t, poster.KindQueryFailed, resp.Responses[2].Kind())
}

// =============================================================================
// ISOLATION AND SESSION
// =============================================================================

func TestRun_FailingItemDoesNotStopTheBatch(t *testing.T) {
	f := newFixture(t)

	router := poster.NewRouter()
	router.Handle(poster.Action{Verb: poster.VerbCreate, Entity: poster.EntityProject},
		func(ctx context.Context, sc *poster.Scope, body *poster.Payload) (*poster.Result, error) {
			panic("boom")
		})
	router.Handle(poster.Action{Verb: poster.VerbLookup, Entity: poster.EntityProject},
		func(ctx context.Context, sc *poster.Scope, body *poster.Payload) (*poster.Result, error) {
			return nil, errors.New("engine went away")
		})
	f.poster = poster.New(f.session, poster.Options{DataFile: f.path, Router: router})

	resp := f.run(`{"requests": [
		{"action": "create_customer", "body": {"name": "A"}},
		{"action": "create_project", "body": {"name": "P"}},
		{"action": "lookup_project", "body": {"find_name": "P"}},
		{"action": "create_customer", "body": {"name": "C"}}
	]}`)

	require.Len(t, resp.Responses, 4)
	assert.True(t, resp.Responses[0].OK())
	assert.True(t, resp.Responses[3].OK())

	assert.Equal(t, poster.KindInternal, resp.Responses[1].Kind())
	assert.Equal(t, []string{"Create FAILED: boom"}, resp.Responses[1].Messages)

	assert.Equal(t, poster.KindEngine, resp.Responses[2].Kind())
	assert.Equal(t, []string{"Lookup FAILED: engine went away"}, resp.Responses[2].Messages)
}

// noVendorRights refuses the vendor ledger, as a user without access would.
type noVendorRights struct {
	*sqlite.Session
}

func (noVendorRights) OpenVendorLedger() (engine.Ledger[engine.Party], error) {
	return nil, engine.ErrNoAccess
}

func TestRun_UnavailableLedgerIsReportedPerItem(t *testing.T) {
	f := newFixture(t)
	f.poster = poster.New(noVendorRights{f.session}, poster.Options{DataFile: f.path})

	resp := f.run(`{"requests": [
		{"action": "create_vendor", "body": {"name": "V"}},
		{"action": "create_customer", "body": {"name": "C"}}
	]}`)

	require.Len(t, resp.Responses, 2)
	assert.Equal(t, poster.KindResourceUnavailable, resp.Responses[0].Kind())
	assert.Equal(t,
		[]string{"Error opening ledger. Verify you have sufficient rights and a company file is open."},
		resp.Responses[0].Messages)
	assert.True(t, resp.Responses[1].OK())
}

func TestRun_LookupMissMessage(t *testing.T) {
	f := newFixture(t)
	res := f.one(`{"requests": [{"action": "adjust_customer", "body": {"find_name": "Ghost", "city": "Nowhere"}}]}`)

	assert.Equal(t, poster.KindLookupMiss, res.Kind())
	assert.Equal(t, []string{"Adjust customer Ghost FAILED"}, res.Messages)
	assert.Nil(t, res.PostOK)
}

func TestRun_SessionFailureIsBatchLevel(t *testing.T) {
	session := sqlite.New()
	p := poster.New(session, poster.Options{DataFile: filepath.Join(t.TempDir(), "missing.db")})

	resp, err := p.Run(context.Background(), poster.Credentials{}, poster.BatchRequest{
		Requests: []poster.Operation{{Action: "create_customer", Body: &poster.Payload{}}},
	})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, poster.ErrSessionOpen)
	assert.ErrorIs(t, err, engine.ErrSessionOpen)
}

func TestRun_SessionAndHandlesClosedAfterBatch(t *testing.T) {
	f := newFixture(t)
	f.run(threeLineInvoice)

	assert.False(t, f.session.IsOpen())
	assert.Empty(t, f.session.OpenHandles())
}

func TestResult_MessagesOmittedWhenEmpty(t *testing.T) {
	f := newFixture(t)
	res := f.one(`{"requests": [{"action": "create_project", "body": {"name": "P", "start_date": "2025-02-01"}}]}`)

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "messages")
	assert.Equal(t, true, fields["post_ok"])
	assert.Equal(t, "2025-02-01", fields["start_date"])
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 0s", poster.FormatDuration(400*time.Millisecond))
	assert.Equal(t, "1m 5s", poster.FormatDuration(65*time.Second))
	assert.Equal(t, "61m 1s", poster.FormatDuration(time.Hour+time.Minute+time.Second))
}
