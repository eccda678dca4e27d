package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple     Implementation = "maple"
	ImplEtcd      Implementation = "etcd"
	ImplMemcached Implementation = "memcached"
)

// ErrNotANumber is returned by AddInt if the stored value is not a decimal integer
var ErrNotANumber = errors.New("value is not a decimal integer")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut            Feature = 1 << iota // Support for Put operations
	FeaturePutIfAbsent                        // Support for PutIfAbsent operations
	FeatureGet                                // Support for Get operations
	FeatureDelete                             // Support for Delete operations
	FeatureCounter                            // Support for AddInt operations
	FeatureClear                              // Support for Clear operations
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
	FeatureGarbageCollect                     // Support for background removal of expired entries
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeaturePutIfAbsent:
		return "PutIfAbsent"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureCounter:
		return "Counter"
	case FeatureClear:
		return "Clear"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations with
// TTL and counter support. All TTLs are expressed in units of the write index
// and are relative to the index of the operation; ttl=0 means no expiry.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or replaces the entry for key. The previous TTL is discarded.
	Put(key string, value []byte, writeIndex uint64, ttl uint64)

	// PutIfAbsent inserts the entry only if no live entry exists for key.
	// The check and the insert are one atomic step. Returns true if the entry was stored.
	PutIfAbsent(key string, value []byte, writeIndex uint64, ttl uint64) (stored bool)

	// Delete removes the entry for key. Deleting a missing key is a no-op.
	Delete(key string, writeIndex uint64)

	// AddInt atomically adds delta to the decimal integer stored under key and returns the new value.
	//   - a missing key is created with value delta if delta > 0, otherwise 0 is returned and nothing is created
	//   - a result <= 0 deletes the key and 0 is returned
	//   - ttl > 0 resets the expiry to writeIndex+ttl, ttl = 0 keeps the current expiry
	// If the stored value is not a decimal integer ErrNotANumber is returned and the entry is left unchanged.
	AddInt(key string, delta int64, writeIndex uint64, ttl uint64) (value int64, err error)

	// Clear removes every entry.
	Clear(writeIndex uint64)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key as seen at readIndex.
	// The boolean return value indicates whether a live value for the key was found.
	Get(key string, readIndex uint64) (value []byte, loaded bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close stops background work. The database must not be used afterward.
	Close() (err error)
}
