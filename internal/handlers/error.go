package handlers

// ErrorResponse is the JSON error body every API route returns on failure.
// The message is safe to show to game clients.
type ErrorResponse struct {
	Message string `json:"message"`
}
