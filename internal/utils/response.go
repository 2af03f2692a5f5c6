package utils

import "time"

// RequestIDHeader carries the id that ties a response to its log lines.
const RequestIDHeader = "X-Request-ID"

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorResponse builds a failed envelope. kind is the ledger error kind name,
// e.g. "SeatTaken", which clients switch on.
func ErrorResponse(message, kind string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     kind,
		Timestamp: time.Now().UTC(),
	}
}

func (r APIResponse) WithRequestID(id string) APIResponse {
	r.RequestID = id
	return r
}
