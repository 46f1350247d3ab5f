package response

import "procurement/pkg/pagination"

// Response is the JSON envelope of every API reply
type Response struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    interface{}      `json:"data,omitempty"`
	Errors  interface{}      `json:"errors,omitempty"`
	Meta    *pagination.Meta `json:"meta,omitempty"`
}

// Success wraps data in a successful envelope
func Success(message string, data interface{}) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// Paginated wraps a page of results together with its paging metadata
func Paginated(data interface{}, meta pagination.Meta) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    &meta,
	}
}

// Error returns a failed envelope. errs carries field-level details when there are any.
func Error(message string, errs interface{}) Response {
	return Response{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}
