package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibesql/connector/internal/connector"
	"github.com/vibesql/connector/internal/database"
)

const (
	// MaxRequestSize bounds request bodies, bulk inserts included
	MaxRequestSize = 1 << 20

	// RequestIDHeader carries the id used to correlate log lines
	RequestIDHeader = "X-Request-ID"
)

// Handler serves the connector endpoints. Requests share one Connector and
// are serialized on it.
type Handler struct {
	mu   sync.Mutex
	conn *connector.Connector
}

func NewHandler(conn *connector.Connector) *Handler {
	return &Handler{
		conn: conn,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/select", h.HandleSelect)
	mux.HandleFunc("POST /v1/count", h.HandleCount)
	mux.HandleFunc("POST /v1/value", h.HandleValue)
	mux.HandleFunc("POST /v1/modify", h.HandleModify)
	mux.HandleFunc("POST /v1/batch", h.HandleBatch)
	mux.HandleFunc("POST /v1/tables/{table}/rows", h.HandleInsert)
	mux.HandleFunc("PUT /v1/tables/{table}/rows/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /v1/tables/{table}/rows/{id}", h.HandleDelete)
}

// HandleSelect returns the rows of a statement. With multi unset a single
// row is returned as an object rather than a list.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if !h.decodeStatement(w, r, &req) {
		return
	}

	h.mu.Lock()
	result, err := h.conn.Prepare(req.SQL, req.Params).Select(r.Context())
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Select failed", err)
		return
	}

	h.succeed(w, r, &Response{
		Data:          result.Shape(req.Multi),
		RowCount:      int64(result.RowCount),
		ExecutionTime: millis(result.ExecutionTime),
	})
	log.Printf("[INFO] [%s] Select succeeded: %d rows in %.2fms", requestID(r), result.RowCount, millis(result.ExecutionTime))
}

// HandleCount returns how many rows a statement matches or affects.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if !h.decodeStatement(w, r, &req) {
		return
	}

	start := time.Now()
	h.mu.Lock()
	n, err := h.conn.Prepare(req.SQL, req.Params).RowCount(r.Context())
	// RowCount keeps the connection open
	h.release(requestID(r))
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Count failed", err)
		return
	}

	h.succeed(w, r, &Response{
		Data:          n,
		RowCount:      n,
		ExecutionTime: millis(time.Since(start)),
	})
}

// HandleValue returns the first column of the first row, or null.
func (h *Handler) HandleValue(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if !h.decodeStatement(w, r, &req) {
		return
	}

	start := time.Now()
	h.mu.Lock()
	val, err := h.conn.Prepare(req.SQL, req.Params).Query(r.Context())
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Query failed", err)
		return
	}

	resp := &Response{ExecutionTime: millis(time.Since(start))}
	if val.Valid {
		resp.Data = val.String
	}
	h.succeed(w, r, resp)
}

// HandleModify executes a statement that does not return rows.
func (h *Handler) HandleModify(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if !h.decodeStatement(w, r, &req) {
		return
	}

	h.mu.Lock()
	res, err := h.conn.Prepare(req.SQL, req.Params).Modify(r.Context())
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Modify failed", err)
		return
	}

	h.writeExecResult(w, r, res)
	log.Printf("[INFO] [%s] Modify succeeded: %d rows affected", requestID(r), res.RowsAffected)
}

// HandleBatch executes ;-separated statements in order, optionally inside a
// transaction that is rolled back when any statement fails.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.checkSQL(w, r, req.SQL) {
		return
	}

	params := make([]connector.Params, len(req.Params))
	for i, p := range req.Params {
		params[i] = p
	}

	start := time.Now()
	h.mu.Lock()
	executed, err := h.runBatch(r.Context(), requestID(r), req, params)
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Batch failed", err)
		return
	}

	h.succeed(w, r, &Response{
		Executed:      executed,
		ExecutionTime: millis(time.Since(start)),
	})
	log.Printf("[INFO] [%s] Batch succeeded: %d statements", requestID(r), executed)
}

// runBatch must be called with h.mu held.
func (h *Handler) runBatch(ctx context.Context, id string, req BatchRequest, params []connector.Params) (int, error) {
	if !req.Transaction {
		return h.conn.PrepareBatch(req.SQL, params...).MultiModify(ctx)
	}

	if _, err := h.conn.BeginTransaction(ctx); err != nil {
		return 0, err
	}
	defer h.release(id)

	executed, err := h.conn.PrepareBatch(req.SQL, params...).MultiModify(ctx)
	if err != nil {
		if rbErr := h.conn.Rollback(); rbErr != nil {
			return 0, errors.Join(err, rbErr)
		}
		return 0, err
	}
	return executed, h.conn.Commit()
}

// HandleInsert inserts one row from values, or several from rows.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if !h.decode(w, r, &req) {
		return
	}
	table := r.PathValue("table")

	var (
		res *connector.ExecResult
		err error
	)
	h.mu.Lock()
	switch {
	case len(req.Rows) > 0:
		rows := make([]connector.Params, len(req.Rows))
		for i, row := range req.Rows {
			rows[i] = row
		}
		res, err = h.conn.BulkInsert(r.Context(), table, rows)
	case len(req.Values) > 0:
		res, err = h.conn.QuickInsert(r.Context(), table, req.Values)
	default:
		err = NewMissingFieldError("values")
	}
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Insert failed", err)
		return
	}

	h.writeExecResult(w, r, res)
	log.Printf("[INFO] [%s] Inserted %d rows into %s", requestID(r), res.RowsAffected, table)
}

// HandleUpdate sets values on the row whose primary key is id.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req RowsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Values) == 0 {
		h.fail(w, r, "Update failed", NewMissingFieldError("values"))
		return
	}

	h.mu.Lock()
	res, err := h.conn.QuickUpdate(r.Context(), r.PathValue("table"), id, req.Values)
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Update failed", err)
		return
	}

	h.writeExecResult(w, r, res)
}

// HandleDelete removes the row whose primary key is id.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	res, err := h.conn.Delete(r.Context(), r.PathValue("table"), id)
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, "Delete failed", err)
		return
	}

	h.writeExecResult(w, r, res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, "Request body too large", database.NewError(ErrorCodeQueryTooLarge, "Request too large", err.Error()))
			return false
		}
		h.fail(w, r, "Failed to read request body", NewInternalError("Failed to read request body: "+err.Error()))
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		h.fail(w, r, "Invalid JSON", NewInvalidRequestError(err.Error()))
		return false
	}
	return true
}

func (h *Handler) decodeStatement(w http.ResponseWriter, r *http.Request, req *StatementRequest) bool {
	return h.decode(w, r, req) && h.checkSQL(w, r, req.SQL)
}

// checkSQL applies the validation and safety rules to caller supplied SQL.
func (h *Handler) checkSQL(w http.ResponseWriter, r *http.Request, sql string) bool {
	if sql == "" {
		h.fail(w, r, "Missing required field: sql", NewMissingFieldError("sql"))
		return false
	}

	log.Printf("[INFO] [%s] Executing statement: %.100s", requestID(r), sql)

	if err := connector.ValidateQuery(sql); err != nil {
		h.fail(w, r, "Query validation failed", err)
		return false
	}
	if err := connector.CheckSafety(sql); err != nil {
		h.fail(w, r, "Query safety check failed", err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.fail(w, r, "Invalid row id", NewInvalidIDError(raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeExecResult(w http.ResponseWriter, r *http.Request, res *connector.ExecResult) {
	h.succeed(w, r, &Response{
		RowsAffected:  res.RowsAffected,
		LastInsertID:  res.LastInsertID,
		ExecutionTime: millis(res.ExecutionTime),
	})
}

// release must be called with h.mu held.
func (h *Handler) release(id string) {
	logRelease(id, h.conn.Destroy())
}

func logRelease(id string, err error) {
	if err != nil {
		log.Printf("[ERROR] [%s] Failed to release connection: %v", id, err)
	}
}

func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, resp *Response) {
	if err := WriteSuccess(w, resp); err != nil {
		log.Printf("[ERROR] [%s] Failed to write response: %v", requestID(r), err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	connErr := asError(err)
	WriteError(w, connErr)
	log.Printf("[ERROR] [%s] %s: %v", requestID(r), msg, connErr)
}

// withRequestID makes sure every request carries an id, generating one when
// the client did not send it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return "-"
}
