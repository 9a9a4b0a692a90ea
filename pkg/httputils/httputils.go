package httputils

import (
	"encoding/json"
	"net/http"

	"github.com/IgorGrieder/llm-edge-gateway/internal/constants"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader = "X-Correlation-Id"
	ErrorCodeHeader     = "X-Error-Code"
	ResultCodeHeader    = "X-Result-Code"
)

// GetCorrelationID extracts the correlation ID from the request header
// If not present, generates a new UUID v4
func GetCorrelationID(r *http.Request) string {
	correlationID := r.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return correlationID
}

// WriteAPIError writes the error message as plain text. The code travels in
// a header so the body stays readable when the client shows it verbatim.
func WriteAPIError(w http.ResponseWriter, r *http.Request, apiErr constants.APIError) {
	w.Header().Set(CorrelationIDHeader, GetCorrelationID(r))
	w.Header().Set(ErrorCodeHeader, apiErr.Code)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(apiErr.Status)
	_, _ = w.Write([]byte(apiErr.Message))
}

// WriteAPISuccess writes data as a bare JSON document.
func WriteAPISuccess(w http.ResponseWriter, r *http.Request, apiSuccess constants.APISuccess, data any) {
	w.Header().Set(CorrelationIDHeader, GetCorrelationID(r))
	w.Header().Set(ResultCodeHeader, apiSuccess.Code)
	RespondJSON(w, apiSuccess.Status, data)
}

// WriteRawJSON writes an already-encoded JSON document unchanged.
func WriteRawJSON(w http.ResponseWriter, r *http.Request, apiSuccess constants.APISuccess, raw []byte) {
	w.Header().Set(CorrelationIDHeader, GetCorrelationID(r))
	w.Header().Set(ResultCodeHeader, apiSuccess.Code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiSuccess.Status)
	_, _ = w.Write(raw)
}

func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode json response", zap.Error(err))
	}
}
