package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeProfileNotFound is raised when a named profile is absent from the configuration
	ErrorTypeProfileNotFound ErrorType = "profile_not_found"
	// ErrorTypeNoConnectionsFound is raised when the resolved connection set is empty
	ErrorTypeNoConnectionsFound ErrorType = "no_connections_found"
	// ErrorTypeUnresolvedConnection is raised when requested identifiers are not in the registry
	ErrorTypeUnresolvedConnection ErrorType = "unresolved_connection"
	// ErrorTypeNullConnection is raised when a dump is requested without a connection
	ErrorTypeNullConnection ErrorType = "null_connection"
	// ErrorTypeUnsupportedConnectionType is raised when no strategy handles the connection kind
	ErrorTypeUnsupportedConnectionType ErrorType = "unsupported_connection_type"
	// ErrorTypeConnectionUnreachable is raised when the connectivity probe fails
	ErrorTypeConnectionUnreachable ErrorType = "connection_unreachable"
	// ErrorTypeDirectoryCreationFailed is raised when the backup directory cannot be created
	ErrorTypeDirectoryCreationFailed ErrorType = "directory_creation_failed"
	// ErrorTypeBackupDeletionFailed is raised when a faulty backup file cannot be removed
	ErrorTypeBackupDeletionFailed ErrorType = "backup_deletion_failed"
	// ErrorTypeNoStrategiesRegistered is raised when the dispatcher has no strategies at all
	ErrorTypeNoStrategiesRegistered ErrorType = "no_strategies_registered"
	// ErrorTypeCommandFailed represents a dump command that could not be started
	ErrorTypeCommandFailed ErrorType = "command_failed"
	// ErrorTypeDumpFailed represents one or more failed dumps at the end of a run
	ErrorTypeDumpFailed ErrorType = "dump_failed"
	// ErrorTypeConfiguration represents invalid static configuration
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// Sentinels for errors.Is comparisons. Matching is done on the error type only.
var (
	ErrProfileNotFound           = &AppError{Type: ErrorTypeProfileNotFound}
	ErrNoConnectionsFound        = &AppError{Type: ErrorTypeNoConnectionsFound}
	ErrUnresolvedConnection      = &AppError{Type: ErrorTypeUnresolvedConnection}
	ErrNullConnection            = &AppError{Type: ErrorTypeNullConnection}
	ErrUnsupportedConnectionType = &AppError{Type: ErrorTypeUnsupportedConnectionType}
	ErrConnectionUnreachable     = &AppError{Type: ErrorTypeConnectionUnreachable}
	ErrDirectoryCreationFailed   = &AppError{Type: ErrorTypeDirectoryCreationFailed}
	ErrBackupDeletionFailed      = &AppError{Type: ErrorTypeBackupDeletionFailed}
	ErrNoStrategiesRegistered    = &AppError{Type: ErrorTypeNoStrategiesRegistered}
	ErrCommandFailed             = &AppError{Type: ErrorTypeCommandFailed}
	ErrDumpFailed                = &AppError{Type: ErrorTypeDumpFailed}
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the message shown to the operator
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// ContextKeys returns the context keys in sorted order
func (e *AppError) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new application error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *AppError {
	return NewAppError(errorType, fmt.Sprintf(format, args...), nil)
}

// ErrorClassifier maps driver, network and filesystem errors onto error types
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if mysqlErr := ec.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}

	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}

	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

func (ec *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1044, 1045:
			return NewAppError(ErrorTypePermission,
				"Database access denied - check username and password", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1049:
			return NewAppError(ErrorTypeConfiguration,
				"Database does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2003:
			return NewAppError(ErrorTypeConnection,
				"Cannot connect to MySQL server - server may be down or unreachable", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2006:
			return NewAppError(ErrorTypeConnection,
				"MySQL server has gone away", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		default:
			return NewAppError(ErrorTypeConnection,
				fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err).
				WithContext("mysql_error_code", mysqlErr.Number)
		}
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return NewAppError(ErrorTypeConnection, "Database connection is closed", err)
	}

	return nil
}

func (ec *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewAppError(ErrorTypeTimeout, "Network operation timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewAppError(ErrorTypeConnection, "Failed to establish network connection", err)
		case "read", "write":
			return NewAppError(ErrorTypeConnection, "Network I/O error", err)
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewAppError(ErrorTypeConnection,
			fmt.Sprintf("Cannot resolve host %s", dnsErr.Name), err)
	}

	return nil
}

func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(ErrorTypeTimeout, "Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	return nil
}

func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch {
		case errors.Is(pathErr.Err, syscall.EACCES), errors.Is(pathErr.Err, syscall.EPERM):
			return NewAppError(ErrorTypePermission,
				fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
		case errors.Is(pathErr.Err, syscall.ENOSPC):
			return NewAppError(ErrorTypeUnknown, "No space left on device", err)
		case errors.Is(pathErr.Err, syscall.ENOENT):
			return NewAppError(ErrorTypeConfiguration,
				fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
		}
	}
	return nil
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}

	return err.Error()
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return NewAppError(appErr.Type, message, err)
	}

	classified := NewErrorClassifier().ClassifyError(err)
	return NewAppError(classified.Type, message, err)
}
