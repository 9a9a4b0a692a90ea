package constants

// Machine-readable codes, sent in the X-Error-Code / X-Result-Code headers.
// Response bodies stay short human-readable text for the chat client.
const (
	// Common error codes
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBodyTooLarge     = "BODY_TOO_LARGE"

	// Gateway-specific codes
	CodeQuotaExhausted      = "QUOTA_EXHAUSTED"
	CodeUpstreamFailure     = "UPSTREAM_FAILURE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeLinkNotFound        = "LINK_NOT_FOUND"

	// Success codes
	CodeLinkCreated = "LINK_CREATED"
	CodeLinkFound   = "LINK_FOUND"
)
