/*
handlers_test.go - HTTP tests for the poster endpoints

Tests for:
- Batch execution over HTTP (JSON and XLSX)
- Request validation and session failures
- Action discovery and templates
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/poster"
	"github.com/warp/sage-poster/report"
	"github.com/warp/sage-poster/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, maxBody int64) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.db")
	require.NoError(t, sqlite.Create(context.Background(), path, sqlite.Company{
		Name:                "Test Co",
		AccountNumberLength: 4,
		Accounts:            []engine.Account{{Number: 1060, Name: "Cash"}},
	}))
	p := poster.New(sqlite.New(), poster.Options{DataFile: path})
	return NewRouter(NewHandler(p, maxBody), []string{"*"})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const createCustomer = `{"requests": [{"action": "create_customer", "body": {"name": "Acme", "city": "Calgary"}}]}`

// =============================================================================
// BATCH
// =============================================================================

func TestRunBatch_Success(t *testing.T) {
	// GIVEN: A server over a fresh data file
	srv := newTestServer(t, 0)

	// WHEN: Posting a one-item batch
	rec := do(t, srv, http.MethodPost, "/api/poster?username=admin&password=x&multiuser=true", createCustomer)

	// THEN: The batch response lists the created customer
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp poster.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalRequests)
	assert.Regexp(t, `^\d+m \d+s$`, resp.JobDuration)
	require.Len(t, resp.Responses, 1)
	require.NotNil(t, resp.Responses[0].PostOK)
	assert.True(t, *resp.Responses[0].PostOK)
	assert.Equal(t, "Acme", *resp.Responses[0].Name)
	assert.NotContains(t, rec.Body.String(), `"messages"`)
}

func TestRunBatch_ItemFailureIsStill200(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/poster",
		`{"requests": [{"action": "lookup_customer", "body": {"find_name": "Nobody"}}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp poster.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Responses, 1)
	assert.Equal(t, []string{"Lookup customer Nobody FAILED"}, resp.Responses[0].Messages)
}

func TestRunBatch_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/poster", `{"requests": [`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, rec).Code)
}

func TestRunBatch_InvalidMultiuserFlag(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/poster?multiuser=maybe", createCustomer)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid multiuser flag", decodeError(t, rec).Error)
}

func TestRunBatch_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, 16)

	rec := do(t, srv, http.MethodPost, "/api/poster", createCustomer)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRunBatch_SessionFailure(t *testing.T) {
	// GIVEN: A poster pointed at a data file that does not exist
	p := poster.New(sqlite.New(), poster.Options{DataFile: filepath.Join(t.TempDir(), "missing.db")})
	srv := NewRouter(NewHandler(p, 0), []string{"*"})

	// WHEN: Posting a batch
	rec := do(t, srv, http.MethodPost, "/api/poster", createCustomer)

	// THEN: The whole request fails with the connect message
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Failed to connect", resp.Error)
	assert.Equal(t, CodeSessionOpen, resp.Code)
}

func TestRunBatch_XLSX(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/poster?format=xlsx", createCustomer)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[1][5])
}

func TestRunBatch_InvalidFormat(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/poster?format=csv", createCustomer)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// DISCOVERY
// =============================================================================

func TestListActions(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/poster/actions", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Actions, 30)
	assert.Contains(t, resp.Actions, "void_sales_invoice")
	assert.Contains(t, resp.Actions, "create_sql_non_query")
}

func TestGetTemplate(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/poster/templates/create_vendor", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var op poster.Operation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &op))
	assert.Equal(t, "create_vendor", op.Action)
	require.NotNil(t, op.Body)
	require.NotNil(t, op.Body.TaxID)
	assert.Equal(t, "", *op.Body.TaxID)
}

func TestGetTemplate_UnknownAction(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/poster/templates/void_customer", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
