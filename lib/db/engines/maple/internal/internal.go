package internal

import (
	"sync"

	"github.com/ValentinKolb/dCoord/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry stores a value with its expiry metadata
type Entry struct {
	Value    []byte // stored data
	ExpireAt uint64 // index at which the entry becomes absent (0 = never)
	Index    uint64 // index of the last write
}

// Expired reports whether the entry is logically absent at idx
func (e Entry) Expired(idx uint64) bool {
	return e.ExpireAt != 0 && idx >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard is a partition of the key space with its own expiry queue.
// Data is safe for concurrent use. Expiry must only be touched while holding Mu.
type Shard struct {
	Data   *xsync.MapOf[string, Entry]
	Mu     sync.Mutex
	Expiry *util.MapHeap[string]
}

// NewShard creates an empty shard
func NewShard() *Shard {
	return &Shard{
		Data:   xsync.NewMapOf[string, Entry](),
		Expiry: util.NewMapHeap[string](),
	}
}

// Schedule records (or drops, for expireAt=0) the expiry of key
func (s *Shard) Schedule(key string, expireAt uint64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if expireAt == 0 {
		s.Expiry.RemoveByKey(key)
		return
	}
	s.Expiry.AddItem(key, expireAt)
}

// GetShard returns the shard responsible for key
func GetShard(key string, seed uint64, shards []*Shard) *Shard {
	return shards[util.HashString(key, seed)%uint64(len(shards))]
}
