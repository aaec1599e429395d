package http

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

const errInternal = "internal server error"
