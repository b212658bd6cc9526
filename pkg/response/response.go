package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// PageMeta describes the slice of a paginated collection
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// PagedData wraps a collection with its pagination metadata
type PagedData struct {
	Items interface{} `json:"items"`
	Meta  PageMeta    `json:"meta"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paginated returns a success response carrying a page of items plus metadata
func Paginated(statusCode int, items interface{}, page, limit int, total int64) Response {
	return Success(statusCode, PagedData{
		Items: items,
		Meta:  PageMeta{Page: page, Limit: limit, Total: total},
	})
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
