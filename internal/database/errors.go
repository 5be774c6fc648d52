package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Connector error codes
const (
	ErrorCodeInvalidSQL           = "INVALID_SQL"
	ErrorCodeInvalidInput         = "INVALID_INPUT"
	ErrorCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrorCodeUnsafeQuery          = "UNSAFE_QUERY"
	ErrorCodeQueryTimeout         = "QUERY_TIMEOUT"
	ErrorCodeQueryTooLarge        = "QUERY_TOO_LARGE"
	ErrorCodeResultTooLarge       = "RESULT_TOO_LARGE"
	ErrorCodeTableNotFound        = "TABLE_NOT_FOUND"
	ErrorCodePrimaryKeyNotFound   = "PRIMARY_KEY_NOT_FOUND"
	ErrorCodeConstraintViolation  = "CONSTRAINT_VIOLATION"
	ErrorCodeTransaction          = "TRANSACTION_ERROR"
	ErrorCodeInternalError        = "INTERNAL_ERROR"
	ErrorCodeDatabaseUnavailable  = "DATABASE_UNAVAILABLE"
)

// HTTP status codes for connector errors
const (
	HTTPStatusInvalidSQL           = 400
	HTTPStatusInvalidInput         = 400
	HTTPStatusMissingRequiredField = 400
	HTTPStatusUnsafeQuery          = 400
	HTTPStatusQueryTimeout         = 408
	HTTPStatusQueryTooLarge        = 413
	HTTPStatusResultTooLarge       = 413
	HTTPStatusTableNotFound        = 404
	HTTPStatusPrimaryKeyNotFound   = 422
	HTTPStatusConstraintViolation  = 409
	HTTPStatusTransaction          = 409
	HTTPStatusInternalError        = 500
	HTTPStatusDatabaseUnavailable  = 503
)

// Error is the error type returned by every connector operation
type Error struct {
	Code    string
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new connector error
func NewError(code, message, detail string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

// NewTableNotFoundError reports a table missing from the current schema.
func NewTableNotFoundError(table string) *Error {
	return NewError(
		ErrorCodeTableNotFound,
		fmt.Sprintf("Table '%s' does not exist in this database.", table),
		"",
	)
}

// SQLSTATE to connector error code mapping
var sqlStateToCode = map[string]string{
	// Syntax errors → INVALID_SQL
	"42601": ErrorCodeInvalidSQL, // syntax_error
	"42703": ErrorCodeInvalidSQL, // undefined_column
	"42P01": ErrorCodeInvalidSQL, // undefined_table
	"42P02": ErrorCodeInvalidSQL, // undefined_parameter
	"42883": ErrorCodeInvalidSQL, // undefined_function
	"42804": ErrorCodeInvalidSQL, // datatype_mismatch

	// Integrity → CONSTRAINT_VIOLATION
	"23000": ErrorCodeConstraintViolation, // integrity_constraint_violation
	"23502": ErrorCodeConstraintViolation, // not_null_violation
	"23503": ErrorCodeConstraintViolation, // foreign_key_violation
	"23505": ErrorCodeConstraintViolation, // unique_violation
	"23514": ErrorCodeConstraintViolation, // check_violation

	// Transaction state → TRANSACTION_ERROR
	"25000": ErrorCodeTransaction, // invalid_transaction_state
	"25P02": ErrorCodeTransaction, // in_failed_sql_transaction
	"40001": ErrorCodeTransaction, // serialization_failure
	"40P01": ErrorCodeTransaction, // deadlock_detected

	// Query cancellation → QUERY_TIMEOUT
	"57014": ErrorCodeQueryTimeout, // query_canceled

	// Resource limits → DATABASE_UNAVAILABLE
	"53000": ErrorCodeDatabaseUnavailable, // insufficient_resources
	"53100": ErrorCodeDatabaseUnavailable, // disk_full
	"53200": ErrorCodeDatabaseUnavailable, // out_of_memory
	"53300": ErrorCodeDatabaseUnavailable, // too_many_connections
	"53400": ErrorCodeDatabaseUnavailable, // configuration_limit_exceeded

	// Connection errors → DATABASE_UNAVAILABLE
	"08000": ErrorCodeDatabaseUnavailable, // connection_exception
	"08003": ErrorCodeDatabaseUnavailable, // connection_does_not_exist
	"08006": ErrorCodeDatabaseUnavailable, // connection_failure
	"08001": ErrorCodeDatabaseUnavailable, // sqlclient_unable_to_establish_sqlconnection
	"08004": ErrorCodeDatabaseUnavailable, // sqlserver_rejected_establishment_of_sqlconnection
	"28P01": ErrorCodeDatabaseUnavailable, // invalid_password
	"3D000": ErrorCodeDatabaseUnavailable, // invalid_catalog_name

	// Program limits → QUERY_TOO_LARGE
	"54000": ErrorCodeQueryTooLarge, // program_limit_exceeded
	"54001": ErrorCodeQueryTooLarge, // statement_too_complex
}

// MySQL server error number to connector error code mapping
var mysqlNumberToCode = map[uint16]string{
	1049: ErrorCodeDatabaseUnavailable, // ER_BAD_DB_ERROR
	1054: ErrorCodeInvalidSQL,          // ER_BAD_FIELD_ERROR
	1064: ErrorCodeInvalidSQL,          // ER_PARSE_ERROR
	1146: ErrorCodeInvalidSQL,          // ER_NO_SUCH_TABLE
	1149: ErrorCodeInvalidSQL,          // ER_SYNTAX_ERROR
	1305: ErrorCodeInvalidSQL,          // ER_SP_DOES_NOT_EXIST

	1048: ErrorCodeConstraintViolation, // ER_BAD_NULL_ERROR
	1062: ErrorCodeConstraintViolation, // ER_DUP_ENTRY
	1451: ErrorCodeConstraintViolation, // ER_ROW_IS_REFERENCED_2
	1452: ErrorCodeConstraintViolation, // ER_NO_REFERENCED_ROW_2
	3819: ErrorCodeConstraintViolation, // ER_CHECK_CONSTRAINT_VIOLATED

	1205: ErrorCodeTransaction, // ER_LOCK_WAIT_TIMEOUT
	1213: ErrorCodeTransaction, // ER_LOCK_DEADLOCK

	1317: ErrorCodeQueryTimeout, // ER_QUERY_INTERRUPTED
	3024: ErrorCodeQueryTimeout, // ER_QUERY_TIMEOUT

	1040: ErrorCodeDatabaseUnavailable, // ER_CON_COUNT_ERROR
	1044: ErrorCodeDatabaseUnavailable, // ER_DBACCESS_DENIED_ERROR
	1045: ErrorCodeDatabaseUnavailable, // ER_ACCESS_DENIED_ERROR
	1203: ErrorCodeDatabaseUnavailable, // ER_TOO_MANY_USER_CONNECTIONS

	1153: ErrorCodeQueryTooLarge, // ER_NET_PACKET_TOO_LARGE
}

// SQLite primary result code to connector error code mapping
var sqliteResultToCode = map[int]string{
	sqlite3.SQLITE_ERROR:      ErrorCodeInvalidSQL,
	sqlite3.SQLITE_CONSTRAINT: ErrorCodeConstraintViolation,
	sqlite3.SQLITE_BUSY:       ErrorCodeDatabaseUnavailable,
	sqlite3.SQLITE_LOCKED:     ErrorCodeDatabaseUnavailable,
	sqlite3.SQLITE_READONLY:   ErrorCodeDatabaseUnavailable,
	sqlite3.SQLITE_CANTOPEN:   ErrorCodeDatabaseUnavailable,
	sqlite3.SQLITE_NOTADB:     ErrorCodeDatabaseUnavailable,
	sqlite3.SQLITE_INTERRUPT:  ErrorCodeQueryTimeout,
	sqlite3.SQLITE_TOOBIG:     ErrorCodeQueryTooLarge,
}

// TranslateError translates a driver error to a connector error
func TranslateError(err error) *Error {
	if err == nil {
		return nil
	}

	// Check if it's already a connector error
	var connErr *Error
	if errors.As(err, &connErr) {
		return connErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(
			ErrorCodeQueryTimeout,
			"Query execution timeout",
			"Query exceeded the maximum execution time",
		)
	}

	if errors.Is(err, context.Canceled) {
		return NewError(
			ErrorCodeQueryTimeout,
			"Query execution canceled",
			"Query was canceled before completion",
		)
	}

	if errors.Is(err, sql.ErrTxDone) {
		return NewError(
			ErrorCodeTransaction,
			"Transaction already finished",
			err.Error(),
		)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return NewError(
			ErrorCodeDatabaseUnavailable,
			"Database is unavailable",
			err.Error(),
		)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return translatePQError(pqErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return translateMySQLError(myErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return translateSQLiteError(liteErr)
	}

	// Unknown error type → INTERNAL_ERROR
	return NewError(
		ErrorCodeInternalError,
		"An internal error occurred",
		err.Error(),
	)
}

// translatePQError translates a pq.Error to a connector error
func translatePQError(pqErr *pq.Error) *Error {
	code, found := sqlStateToCode[string(pqErr.Code)]
	if !found {
		code = ErrorCodeInternalError
	}

	return NewError(code, buildErrorMessage(code, pqErr.Message), buildPQErrorDetail(pqErr))
}

// translateMySQLError translates a mysql.MySQLError to a connector error
func translateMySQLError(myErr *mysql.MySQLError) *Error {
	code, found := mysqlNumberToCode[myErr.Number]
	if !found {
		code = ErrorCodeInternalError
	}

	detail := fmt.Sprintf("MySQL error %d: %s", myErr.Number, myErr.Message)
	if myErr.SQLState != [5]byte{} {
		detail += fmt.Sprintf(" | SQLSTATE: %s", string(myErr.SQLState[:]))
	}

	return NewError(code, buildErrorMessage(code, myErr.Message), detail)
}

// translateSQLiteError translates a sqlite.Error to a connector error
func translateSQLiteError(liteErr *sqlite.Error) *Error {
	// Extended result codes carry the primary code in the low byte.
	code, found := sqliteResultToCode[liteErr.Code()&0xff]
	if !found {
		code = ErrorCodeInternalError
	}

	return NewError(code, buildErrorMessage(code, liteErr.Error()), fmt.Sprintf("SQLite error: %s", liteErr.Error()))
}

// buildErrorMessage creates a user-friendly error message
func buildErrorMessage(code string, driverMessage string) string {
	switch code {
	case ErrorCodeInvalidSQL:
		return "Invalid SQL syntax"
	case ErrorCodeQueryTimeout:
		return "Query execution timeout"
	case ErrorCodeDatabaseUnavailable:
		return "Database is unavailable"
	case ErrorCodeQueryTooLarge:
		return "Query too large"
	case ErrorCodeConstraintViolation:
		return "Constraint violation"
	case ErrorCodeTransaction:
		return "Transaction failed"
	default:
		if driverMessage != "" {
			return driverMessage
		}
		return "An error occurred"
	}
}

// buildPQErrorDetail creates detailed error information
func buildPQErrorDetail(pqErr *pq.Error) string {
	detail := fmt.Sprintf("PostgreSQL error: %s", pqErr.Message)

	if pqErr.Detail != "" {
		detail += fmt.Sprintf(" | Detail: %s", pqErr.Detail)
	}

	if pqErr.Hint != "" {
		detail += fmt.Sprintf(" | Hint: %s", pqErr.Hint)
	}

	if pqErr.Position != "" {
		detail += fmt.Sprintf(" | Position: %s", pqErr.Position)
	}

	return detail
}

// GetHTTPStatusCode returns the HTTP status code for a connector error code
func GetHTTPStatusCode(errorCode string) int {
	switch errorCode {
	case ErrorCodeInvalidSQL:
		return HTTPStatusInvalidSQL
	case ErrorCodeInvalidInput:
		return HTTPStatusInvalidInput
	case ErrorCodeMissingRequiredField:
		return HTTPStatusMissingRequiredField
	case ErrorCodeUnsafeQuery:
		return HTTPStatusUnsafeQuery
	case ErrorCodeQueryTimeout:
		return HTTPStatusQueryTimeout
	case ErrorCodeQueryTooLarge:
		return HTTPStatusQueryTooLarge
	case ErrorCodeResultTooLarge:
		return HTTPStatusResultTooLarge
	case ErrorCodeTableNotFound:
		return HTTPStatusTableNotFound
	case ErrorCodePrimaryKeyNotFound:
		return HTTPStatusPrimaryKeyNotFound
	case ErrorCodeConstraintViolation:
		return HTTPStatusConstraintViolation
	case ErrorCodeTransaction:
		return HTTPStatusTransaction
	case ErrorCodeInternalError:
		return HTTPStatusInternalError
	case ErrorCodeDatabaseUnavailable:
		return HTTPStatusDatabaseUnavailable
	default:
		return HTTPStatusInternalError
	}
}
