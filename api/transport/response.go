package transport

import "encoding/json"

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
	Code    string     `json:"code,omitempty"`
	Meta    *ErrorMeta `json:"meta,omitempty"`
}

// ErrorMeta carries the context a dashboard needs to render a specific message.
type ErrorMeta struct {
	AccountID string `json:"account_id,omitempty"`
	Operation string `json:"operation,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// NewError returns an error envelope with optional metadata.
func NewError(code, message string, meta *ErrorMeta) Envelope {
	return Envelope{
		Success: false,
		Code:    code,
		Error:   message,
		Meta:    meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
