package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ConnectionError represents a transport failure or abnormal close.
// Retriable unless the retry budget is exhausted.
type ConnectionError struct {
	Op        string // operation that failed (e.g. "dial", "read")
	Err       error  // underlying error
	Retriable bool
}

func (e *ConnectionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) IsRetriable() bool {
	return e.Retriable
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a retriable connection error
func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err, Retriable: true}
}

// ParseError represents a malformed inbound payload. Non-fatal: the
// connection stays up and the previous snapshot remains authoritative.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) IsRetriable() bool {
	return false
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	// ErrReconnectExhausted is returned once the reconnect budget is spent.
	// Terminal for the feed: a new Connect call is required to resume.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrDegenerateBook marks a snapshot missing a best level on either side.
	// Handled by skipping recomputation, never by raising across the
	// snapshot-processing boundary.
	ErrDegenerateBook = errors.New("degenerate book: missing best ask or bid")

	// ErrInvalidParameters is returned when simulation parameters fail validation
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
