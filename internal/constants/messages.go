package constants

// Human-readable messages. The chat client shows these verbatim.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgNotFound           = "Not found"
	MsgMethodNotAllowed   = "POST only"
	MsgBodyTooLarge       = "Request body too large"

	// Gateway-specific messages
	MsgQuotaExhausted      = "Site quota exhausted for today"
	MsgUpstreamFailure     = "Upstream model call failed"
	MsgUpstreamUnavailable = "Upstream temporarily unavailable"
)
