package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vibesql/connector/internal/database"
)

// StatementRequest carries one SQL statement and its named parameters
type StatementRequest struct {
	SQL    string                 `json:"sql"`
	Params map[string]interface{} `json:"params,omitempty"`
	Multi  bool                   `json:"multi,omitempty"`
}

// BatchRequest carries ;-separated statements with one parameter set each
type BatchRequest struct {
	SQL         string                   `json:"sql"`
	Params      []map[string]interface{} `json:"params,omitempty"`
	Transaction bool                     `json:"transaction,omitempty"`
}

// RowsRequest carries column values for the table endpoints. Values is used
// for a single row, Rows for a bulk insert.
type RowsRequest struct {
	Values map[string]interface{}   `json:"values,omitempty"`
	Rows   []map[string]interface{} `json:"rows,omitempty"`
}

// Response is the envelope of every reply (success or error)
type Response struct {
	Success       bool         `json:"success"`
	Data          interface{}  `json:"data,omitempty"`
	RowCount      int64        `json:"rowCount,omitempty"`
	RowsAffected  int64        `json:"rowsAffected,omitempty"`
	LastInsertID  int64        `json:"lastInsertId,omitempty"`
	Executed      int          `json:"executed,omitempty"`
	ExecutionTime float64      `json:"executionTime,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail represents error information in the response
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// NewErrorResponse creates an error response from an Error
func NewErrorResponse(err *database.Error) *Response {
	if err == nil {
		return &Response{
			Success: false,
			Error: &ErrorDetail{
				Code:    database.ErrorCodeInternalError,
				Message: "Unknown error occurred",
			},
		}
	}

	return &Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    err.Code,
			Message: err.Message,
			Detail:  err.Detail,
		},
	}
}

// WriteJSON writes a Response as JSON to the HTTP response writer
func WriteJSON(w http.ResponseWriter, statusCode int, response *Response) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	return encoder.Encode(response)
}

// WriteSuccess writes response with 200 OK status
func WriteSuccess(w http.ResponseWriter, response *Response) error {
	response.Success = true
	response.Error = nil
	return WriteJSON(w, http.StatusOK, response)
}

// WriteError writes an error response with appropriate HTTP status code
func WriteError(w http.ResponseWriter, err *database.Error) error {
	response := NewErrorResponse(err)
	// response.Error is never nil, err may be
	statusCode := GetHTTPStatusCode(response.Error.Code)
	return WriteJSON(w, statusCode, response)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
