package handlers

// Error messages shared by the handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgInvalidID          = "Invalid ID"
	ErrMsgUnauthorized       = "User not authenticated"
	ErrMsgInternal           = "Internal server error"
	ErrMsgMissingRefresh     = "Missing refresh token"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"

	// maxBodyBytes caps JSON request bodies
	maxBodyBytes = 1 << 20
)
