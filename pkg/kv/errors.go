package kv

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a storage error for recovery logic.
type ErrorKind string

const (
	// KindMissingKey indicates a read addressed a key or cell with no
	// corresponding row. Recoverable; callers are expected to handle it.
	KindMissingKey ErrorKind = "missing-key"

	// KindMalformedRow indicates a row's stored value could not be
	// decoded by the table's codec. Fatal to the operation.
	KindMalformedRow ErrorKind = "malformed-row"

	// KindConnection indicates no database connection could be
	// established or validated.
	KindConnection ErrorKind = "connection"

	// KindConfig indicates invalid startup parameters. Fatal at startup.
	KindConfig ErrorKind = "config"
)

// StoreError is a classified storage error with table/key context.
type StoreError struct {
	Kind  ErrorKind
	Op    string
	Table string
	Key   string
	Err   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	if e.Table != "" {
		msg += fmt.Sprintf(" table=%s", e.Table)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" key=%s", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two StoreErrors match when
// their kinds match.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, op, table, key string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Table: table, Key: key, Err: err}
}

func missingKey(op, table, key string) *StoreError {
	return newError(KindMissingKey, op, table, key, nil)
}

func malformedRow(op, table, key string, err error) *StoreError {
	return newError(KindMalformedRow, op, table, key, err)
}

func connectionError(op string, err error) *StoreError {
	return newError(KindConnection, op, "", "", err)
}

func configError(op string, err error) *StoreError {
	return newError(KindConfig, op, "", "", err)
}

func kindOf(err error, kind ErrorKind) bool {
	var e *StoreError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsMissingKey reports whether err is classified as a missing-key error.
func IsMissingKey(err error) bool { return kindOf(err, KindMissingKey) }

// IsMalformedRow reports whether err is classified as a malformed-row error.
func IsMalformedRow(err error) bool { return kindOf(err, KindMalformedRow) }

// IsConnection reports whether err is classified as a connection error.
func IsConnection(err error) bool { return kindOf(err, KindConnection) }

// IsConfig reports whether err is classified as a configuration error.
func IsConfig(err error) bool { return kindOf(err, KindConfig) }
