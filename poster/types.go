/*
Package poster implements the batch poster: it routes each item of a batch
to a typed handler, patches engine records from loosely-typed payloads,
and isolates per-item failures.

KEY CONCEPTS IN THIS FILE (types.go):
  - Operation: One batch item, an action name plus its payload
  - Payload:   Optional scalar fields for every supported entity
  - Record:    The entity attributes, shared by payloads and results
  - Result:    Echoed record + status + messages for one processed item

WIRE FORMAT:
  Every field is optional. Strings stay strings on the wire (amounts,
  dates and counts included) and are parsed only when applied to a
  record. A Result omits "messages" entirely when there is nothing to
  report.

SEE ALSO:
  - poster.go: Batch orchestration
  - router.go: Action routing table
  - fields.go: Field descriptor tables per entity
*/
package poster

// =============================================================================
// REQUEST TYPES
// =============================================================================

// BatchRequest is the inbound batch.
type BatchRequest struct {
	Requests []Operation `json:"requests"`
}

// Operation is one item of a batch.
type Operation struct {
	Action string   `json:"action"`
	Body   *Payload `json:"body"`
}

// Payload is the body of an operation. Only the fields relevant to the
// action are meaningful.
type Payload struct {
	Keys
	Record

	SQLNonQuery *string `json:"sql_non_query,omitempty"`
}

// Keys identify the existing record targeted by lookup, adjust and void.
type Keys struct {
	FindName            *string `json:"find_name,omitempty"`
	FindCusVenName      *string `json:"find_cusven_name,omitempty"`
	FindInvoiceNumber   *string `json:"find_invoice_number,omitempty"`
	FindJournalID       *string `json:"find_journal_id,omitempty"`
	FindJournalLastYear *bool   `json:"find_journal_is_last_year,omitempty"`
	FindPartCode        *string `json:"find_part_code,omitempty"`
	FindAccountNumber   *string `json:"find_account_number,omitempty"`
}

// Record holds entity attributes. Payloads carry it as input; results
// carry it as the echo of the record after the operation.
type Record struct {
	// Invoices
	CusVenName    *string `json:"cusven_name,omitempty"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
	InvoiceDate   *string `json:"invoice_date,omitempty"`
	PaidByType    *string `json:"paid_by_type,omitempty"`
	ChequeNumber  *string `json:"cheque_number,omitempty"`
	SubTotal      *string `json:"sub_total,omitempty"`
	Total         *string `json:"total,omitempty"`

	// General journal
	JournalDate *string `json:"journal_date,omitempty"`
	JournalID   *string `json:"journal_id,omitempty"`
	Source      *string `json:"source,omitempty"`
	Comment     *string `json:"comment,omitempty"`

	DetailLines []DetailLine    `json:"detail_lines,omitempty"`
	TaxLines    []TaxDetailLine `json:"tax_lines,omitempty"`

	// Customers, vendors, employees
	Name         *string `json:"name,omitempty"`
	Contact      *string `json:"contact_name,omitempty"`
	Street1      *string `json:"street1,omitempty"`
	Street2      *string `json:"street2,omitempty"`
	City         *string `json:"city,omitempty"`
	Province     *string `json:"province,omitempty"`
	Country      *string `json:"country,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Phone1       *string `json:"phone1,omitempty"`
	Phone2       *string `json:"phone2,omitempty"`
	Fax          *string `json:"fax,omitempty"`
	Email        *string `json:"email,omitempty"`
	Website      *string `json:"website,omitempty"`
	CurrencyCode *string `json:"currency_code,omitempty"`
	TaxID        *string `json:"tax_id,omitempty"`

	// Inventory
	PartCode        *string `json:"part_code,omitempty"`
	NameAlt         *string `json:"name_alt,omitempty"`
	IsService       *bool   `json:"is_service,omitempty"`
	IsActivity      *bool   `json:"is_activity,omitempty"`
	StockingUnit    *string `json:"stocking_unit,omitempty"`
	StockingUnitAlt *string `json:"stocking_unit_alt,omitempty"`
	PriceRegular    *string `json:"price_regular,omitempty"`
	PricePreferred  *string `json:"price_preferred,omitempty"`
	AccountAsset    *string `json:"account_asset,omitempty"`
	AccountRevenue  *string `json:"account_revenue,omitempty"`
	AccountExpense  *string `json:"account_expense,omitempty"`
	AccountVariance *string `json:"account_variance,omitempty"`

	// Employees
	SIN              *string `json:"sin,omitempty"`
	BirthDate        *string `json:"birth_date,omitempty"`
	HireDate         *string `json:"hire_date,omitempty"`
	TaxTableProvince *string `json:"tax_table_province,omitempty"`
	PayPeriods       *string `json:"pay_periods,omitempty"`

	// Projects
	StartDate *string `json:"start_date,omitempty"`

	// Chart of accounts
	AccountNumber *string `json:"account_number,omitempty"`
	AccountClass  *string `json:"account_class,omitempty"`
	AccountType   *string `json:"account_type,omitempty"`
}

// DetailLine is one line of an invoice or journal entry.
type DetailLine struct {
	ItemNumber      *string         `json:"item_number,omitempty"`
	ItemDescription *string         `json:"item_description,omitempty"`
	Quantity        *string         `json:"quantity,omitempty"`
	Price           *string         `json:"price,omitempty"`
	TaxCode         *string         `json:"tax_code,omitempty"`
	LineAmount      *string         `json:"line_amount,omitempty"`
	LedgerAccount   *string         `json:"ledger_account,omitempty"`
	TaxLines        []TaxDetailLine `json:"tax_lines,omitempty"`
	DebitAmount     *string         `json:"debit_amount,omitempty"`
	CreditAmount    *string         `json:"credit_amount,omitempty"`
	Comment         *string         `json:"comment,omitempty"`
}

// TaxDetailLine sets the tax amount of one authority.
type TaxDetailLine struct {
	TaxAuthority *string `json:"tax_authority,omitempty"`
	TaxAmount    *string `json:"tax_amount,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BatchResponse is the outbound batch envelope.
type BatchResponse struct {
	JobDuration   string    `json:"job_duration"`
	TotalRequests int       `json:"total_requests"`
	Responses     []*Result `json:"responses"`
}

// Status reports what the engine did with the item.
type Status struct {
	PostOK       *bool  `json:"post_ok,omitempty"`
	RowsAffected *int64 `json:"rows_affected,omitempty"`
}

// Result is the outcome of one routed operation.
type Result struct {
	Record
	Status

	Messages []string `json:"messages,omitempty"`

	// Err is set when the item failed. Not serialized; callers that need
	// the failure kind read it here instead of parsing messages.
	Err *ItemError `json:"-"`
}

// Kind returns the failure kind, or KindNone for a successful item.
func (r *Result) Kind() Kind {
	if r == nil || r.Err == nil {
		return KindNone
	}
	return r.Err.Kind
}

// OK reports whether the engine accepted the item.
func (r *Result) OK() bool {
	return r != nil && r.Err == nil && (r.PostOK == nil || *r.PostOK)
}

func (r *Result) compact() {
	if len(r.Messages) == 0 {
		r.Messages = nil
	}
}

func failed(e *ItemError) *Result {
	return &Result{Messages: []string{e.Message}, Err: e}
}

func posted(ok bool) *Result {
	return &Result{Status: Status{PostOK: &ok}}
}

func str(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
