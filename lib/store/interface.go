package store

import (
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the coordination store: a key-value primitive with TTLs, atomic
// create-if-absent and atomic counters. All TTLs are in seconds, 0 means no expiry.
//
// Network backed implementations report every transport or protocol failure as an
// error matching ErrBackendUnavailable, never as a missing key.
type IStore interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// PutIfAbsent stores the value only if the key does not exist. The check and the write are one atomic step.
	// stored is true iff the key did not exist and now holds value.
	PutIfAbsent(key string, value []byte, ttlSeconds uint64) (stored bool, err error)
	// Put inserts or replaces a key-value pair.
	Put(key string, value []byte, ttlSeconds uint64) (err error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Increment atomically adds one to the counter under key and returns the new value.
	// A missing key is created with value 1. A ttlSeconds > 0 resets the expiry of the counter.
	Increment(key string, ttlSeconds uint64) (value int64, err error)
	// Decrement atomically subtracts one from the counter under key and returns the new value.
	// A missing key returns 0 and is not created. Reaching 0 deletes the key.
	Decrement(key string) (value int64, err error)
	// Clear removes every key of this store.
	Clear() (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrBackendUnavailable) works
// for errors created by NewError.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Unavailable wraps a transport or protocol failure of a network backend.
func Unavailable(format string, args ...interface{}) *Error {
	return NewError(RetCBackendUnavailable, fmt.Sprintf(format, args...))
}

var (
	// ErrBackendUnavailable matches errors of backends that could not be reached or responded abnormally
	ErrBackendUnavailable = NewError(RetCBackendUnavailable, "backend unavailable")
	// ErrBackendUnknown matches errors the backend reported while it was reachable
	ErrBackendUnknown = NewError(RetCInternalError, "backend error")
	// ErrUnsupported matches operations the backend can't perform
	ErrUnsupported = NewError(RetCUnsupportedOperation, "unsupported operation")
	// ErrInvalidOperation matches operations that are invalid for the stored value (e.g. incrementing text)
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCBackendUnavailable                  // 4: The backend could not be reached.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCBackendUnavailable:
		return "BackendUnavailable"
	default:
		return "Unknown"
	}
}
