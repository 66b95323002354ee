/*
handlers.go - HTTP API handlers for the batch poster

PURPOSE:
  Exposes the batch poster over HTTP. Handles request parsing and JSON
  serialization, and delegates the batch itself to poster.Poster.

ENDPOINTS:
  POST /api/poster?username=..&password=..&multiuser=true|false[&format=xlsx]
       Body: {"requests": [{"action": "...", "body": {...}}]}
       200: BatchResponse (or an XLSX workbook when format=xlsx)
       400: malformed JSON, bad query flags, or the data file failed to open

  GET  /api/poster/actions
       200: {"actions": ["create_account", ...]}

  GET  /api/poster/templates/{action}
       200: {"action": "...", "body": {...}} with recommended fields blank
       404: action does not route

  GET  /api/health
       200: {"status": "ok"}

ERROR HANDLING:
  Item failures are not HTTP errors: they are reported inside the batch
  response with a 200. Only a failure to open the data file fails the
  whole request.

SEE ALSO:
  - dto.go: Non-batch request/response types
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/sage-poster/logging"
	"github.com/warp/sage-poster/poster"
	"github.com/warp/sage-poster/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultMaxBodyBytes caps a batch body when the handler is built without
// an explicit limit.
const DefaultMaxBodyBytes int64 = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	Poster       *poster.Poster
	MaxBodyBytes int64
}

// NewHandler creates a handler around a poster. maxBodyBytes <= 0 selects
// DefaultMaxBodyBytes.
func NewHandler(p *poster.Poster, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{Poster: p, MaxBodyBytes: maxBodyBytes}
}

// =============================================================================
// BATCH
// =============================================================================

// RunBatch runs one batch against the configured data file.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	q := r.URL.Query()

	creds := poster.Credentials{
		Username: q.Get("username"),
		Password: q.Get("password"),
	}
	if v := q.Get("multiuser"); v != "" {
		multi, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid multiuser flag", err)
			return
		}
		creds.MultiUser = multi
	}

	format := q.Get("format")
	if format != "" && format != "json" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid format", "expected json or xlsx")
		return
	}

	var batch poster.BatchRequest
	body := http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "Request body too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body", err)
		return
	}

	resp, err := h.Poster.Run(r.Context(), creds, batch)
	if err != nil {
		if errors.Is(err, poster.ErrSessionOpen) {
			logger.Warn("batch rejected", "error", err)
			writeError(w, http.StatusBadRequest, CodeSessionOpen, "Failed to connect", err)
			return
		}
		logger.Error("batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Batch failed", err)
		return
	}

	if format == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="batch-results.xlsx"`)
		w.WriteHeader(http.StatusOK)
		if err := report.Write(w, resp); err != nil {
			logger.Error("failed to write report", "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// DISCOVERY
// =============================================================================

// ListActions returns every routable action name.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions := h.Poster.Router().Actions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	writeJSON(w, http.StatusOK, ActionsResponse{Actions: names})
}

// GetTemplate returns a blank request for one action.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	op, ok := h.Poster.Router().Template(name)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Unknown action", name)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an ErrorResponse. details may be an error, a string,
// or nil.
func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := ErrorResponse{Error: message, Code: code}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}
