package api

// The batch request and response bodies are poster.BatchRequest and
// poster.BatchResponse; their JSON shape is the public wire format. The
// types below cover the remaining endpoints.

// ActionsResponse lists the routable action names.
type ActionsResponse struct {
	Actions []string `json:"actions"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeSessionOpen    = "session_open_failed"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)
