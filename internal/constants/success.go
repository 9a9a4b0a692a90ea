package constants

import "net/http"

// APISuccess represents a standardized API success response with code and HTTP status.
type APISuccess struct {
	Code   string
	Status int
}

// Link-related success responses
var (
	SuccessLinkCreated = APISuccess{
		Code:   CodeLinkCreated,
		Status: http.StatusOK,
	}
	SuccessLinkFound = APISuccess{
		Code:   CodeLinkFound,
		Status: http.StatusOK,
	}
)
