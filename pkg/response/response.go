package response

// Response represents a standard API response format
type Response struct {
	Status     string            `json:"status"`      // "success" or "error"
	StatusCode int               `json:"status_code"` // HTTP status code
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"` // per-field validation messages
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// Validation returns an error response listing the fields that failed.
func Validation(statusCode int, fields map[string]string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      "Error de validación",
		Fields:     fields,
	}
}

// Page wraps a page of items with its paging metadata.
func Page(items interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	}
}
