package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dCoord/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum          = "MAPLEDB\x00"          // File format identifier
	mapleVersion      = 4                      // Snapshot format version
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements db.KVDB on top of sharded concurrent maps
type mapleImpl struct {
	seed      uint64            // Seed for shard selection
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp

	// garbage collection
	gcInterval time.Duration
	stopCh     chan struct{}
	gcDone     chan struct{}
	closeOnce  sync.Once
}

// DBOptions configures the engine during initialization
type DBOptions struct {
	NumShards  int           // Number of shards (0 = number of CPUs)
	GCInterval time.Duration // Time between GC runs (0 = default)
}

// DefaultOptions returns the default options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
	}
}

// NewMapleDB creates a new engine with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	conf := DefaultOptions()
	if opts != nil {
		if opts.NumShards > 0 {
			conf.NumShards = opts.NumShards
		}
		if opts.GCInterval > 0 {
			conf.GCInterval = opts.GCInterval
		}
	}

	shards := make([]*internal.Shard, conf.NumShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	maple := &mapleImpl{
		seed:       util.GenerateSeed(),
		shards:     shards,
		gcInterval: conf.GCInterval,
		stopCh:     make(chan struct{}),
		gcDone:     make(chan struct{}),
	}

	go maple.garbageCollector()

	return maple
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

func (maple *mapleImpl) Put(key string, value []byte, writeIndex uint64, ttl uint64) {
	idx := maple.advance(writeIndex)
	entry := newEntry(value, idx, ttl)
	maple.mutate(key, idx, func(_ internal.Entry, _ bool) (internal.Entry, bool) {
		return entry, true
	})
}

func (maple *mapleImpl) PutIfAbsent(key string, value []byte, writeIndex uint64, ttl uint64) bool {
	idx := maple.advance(writeIndex)
	entry := newEntry(value, idx, ttl)

	var stored bool
	maple.mutate(key, idx, func(old internal.Entry, live bool) (internal.Entry, bool) {
		if live {
			return old, true
		}
		stored = true
		return entry, true
	})
	return stored
}

func (maple *mapleImpl) Delete(key string, writeIndex uint64) {
	idx := maple.advance(writeIndex)
	maple.mutate(key, idx, func(old internal.Entry, _ bool) (internal.Entry, bool) {
		return old, false
	})
}

func (maple *mapleImpl) AddInt(key string, delta int64, writeIndex uint64, ttl uint64) (int64, error) {
	idx := maple.advance(writeIndex)

	var (
		result int64
		err    error
	)
	maple.mutate(key, idx, func(old internal.Entry, live bool) (internal.Entry, bool) {
		// case missing: only a positive delta creates the counter
		if !live {
			if delta <= 0 {
				return old, false
			}
			result = delta
			return newEntry(strconv.AppendInt(nil, delta, 10), idx, ttl), true
		}

		curr, parseErr := strconv.ParseInt(string(old.Value), 10, 64)
		if parseErr != nil {
			err = db.ErrNotANumber
			return old, true
		}

		// counters never hold values <= 0
		if result = curr + delta; result <= 0 {
			result = 0
			return old, false
		}

		entry := internal.Entry{
			Value:    strconv.AppendInt(nil, result, 10),
			ExpireAt: old.ExpireAt,
			Index:    idx,
		}
		if ttl > 0 {
			entry.ExpireAt = idx + ttl
		}
		return entry, true
	})

	return result, err
}

func (maple *mapleImpl) Clear(writeIndex uint64) {
	maple.advance(writeIndex)
	for _, shard := range maple.shards {
		shard.Mu.Lock()
		shard.Data.Clear()
		shard.Expiry.Reset()
		shard.Mu.Unlock()
	}
}

// mutate atomically replaces the entry for key with the result of fn.
// fn sees the current entry and whether it is live at idx (expired entries are passed as zero values).
// It returns the entry to store, or keep=false to remove the key.
func (maple *mapleImpl) mutate(key string, idx uint64, fn func(old internal.Entry, live bool) (entry internal.Entry, keep bool)) {
	shard := internal.GetShard(key, maple.seed, maple.shards)

	var (
		kept     bool
		existed  bool
		expireAt uint64
	)

	shard.Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		live := loaded && !old.Expired(idx)
		if !live {
			old = internal.Entry{}
		}

		entry, keep := fn(old, live)
		if !keep {
			existed = loaded
			return internal.Entry{}, true
		}

		kept = true
		expireAt = entry.ExpireAt
		return entry, false
	})

	// the expiry queue is only a hint for the gc, so it is updated outside of Compute
	if kept {
		shard.Schedule(key, expireAt)
	} else if existed {
		shard.Schedule(key, 0)
	}
}

// newEntry copies value into a new entry written at idx
func newEntry(value []byte, idx uint64, ttl uint64) internal.Entry {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	entry := internal.Entry{Value: valueCopy, Index: idx}
	if ttl > 0 {
		entry.ExpireAt = idx + ttl
	}
	return entry
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key. Expired entries found on the way are removed.
// The returned value is a copy of the stored data and therefore safe to use and modify.
func (maple *mapleImpl) Get(key string, readIndex uint64) ([]byte, bool) {
	// reads don't move the write index, replicas must only advance it through the log
	curr := maple.currIndex.Load()
	idx := max(readIndex, curr)
	shard := internal.GetShard(key, maple.seed, maple.shards)

	entry, ok := shard.Data.Load(key)
	if !ok {
		return nil, false
	}

	if entry.Expired(idx) {
		if entry.Expired(curr) {
			// lazy eviction, the entry may have been rewritten in the meantime
			shard.Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				return e, !loaded || e.Expired(curr)
			})
		}
		return nil, false
	}

	data := make([]byte, len(entry.Value))
	copy(data, entry.Value)
	return data, true
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// garbageCollector periodically removes expired entries until Close is called
func (maple *mapleImpl) garbageCollector() {
	defer close(maple.gcDone)

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-maple.stopCh:
			return
		case <-ticker.C:
			maple.collect()
		}
	}
}

// collect removes all entries that are expired at the current write index and
// returns how many were removed
func (maple *mapleImpl) collect() int {
	/*
		Note: The index is read once per cycle so a busy writer can't keep
		the loop below running forever.
	*/
	writeIndex := maple.currIndex.Load()
	removed := 0

	for _, shard := range maple.shards {
		shard.Mu.Lock()
		for {
			item, exists := shard.Expiry.Peek()
			if !exists || item.Priority > writeIndex {
				break
			}
			key := item.Key
			shard.Expiry.RemoveByKey(key)

			var reschedule uint64
			shard.Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				if !loaded {
					return e, true
				}
				if e.Expired(writeIndex) {
					removed++
					return e, true
				}
				// the entry was refreshed after it was queued
				reschedule = e.ExpireAt
				return e, false
			})

			if reschedule != 0 {
				shard.Expiry.AddItem(key, reschedule)
			}
		}
		shard.Mu.Unlock()
	}

	return removed
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists all live entries and the write index to the writer.
// Concurrent writes are allowed, the snapshot is fuzzy with respect to them.
//
// Format (little endian):
//
//	magic | version u8 | writeIdx u64 | count u64 | count * (keyLen u32 | key | expireAt u64 | index u64 | valueLen u32 | value)
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024)

	type savedEntry struct {
		key   string
		entry internal.Entry
	}

	writeIndex := maple.currIndex.Load()
	var entries []savedEntry
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			if !entry.Expired(writeIndex) {
				entries = append(entries, savedEntry{key, entry})
			}
			return true
		})
	}

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	for _, v := range []interface{}{uint8(mapleVersion), writeIndex, uint64(len(entries))} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, item := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.ExpireAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the content of the database with a snapshot written by Save.
//
// Thread-safety: Load must not run concurrently with other operations.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var writeIndex, count uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIndex); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// drop the current state
	for _, shard := range maple.shards {
		shard.Mu.Lock()
		shard.Data.Clear()
		shard.Expiry.Reset()
		shard.Mu.Unlock()
	}

	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.ExpireAt); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &entry.Index); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		entry.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(br, entry.Value); err != nil {
			return err
		}

		shard := internal.GetShard(string(key), maple.seed, maple.shards)
		shard.Data.Store(string(key), entry)
		shard.Schedule(string(key), entry.ExpireAt)
	}

	maple.currIndex.Store(writeIndex)
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

const supportedFeatures = db.FeaturePut | db.FeaturePutIfAbsent | db.FeatureGet | db.FeatureDelete |
	db.FeatureCounter | db.FeatureClear | db.FeatureSave | db.FeatureLoad | db.FeatureGarbageCollect

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	writeIndex := maple.currIndex.Load()

	var keys, sizeBytes, expiredBacklog, queued int
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			if entry.Expired(writeIndex) {
				expiredBacklog++
				return true
			}
			keys++
			sizeBytes += len(key) + len(entry.Value) + 16 // 8 bytes each for expireAt and index
			return true
		})
		shard.Mu.Lock()
		queued += shard.Expiry.Len()
		shard.Mu.Unlock()
	}

	meta := &struct {
		CurrentWriteIndex uint64 `json:"current_write_index"`
		ShardCount        int    `json:"shard_count"`
		ExpiryQueue       int    `json:"expiry_queue"`
		ExpiredBacklog    int    `json:"expired_backlog"`
	}{
		CurrentWriteIndex: writeIndex,
		ShardCount:        len(maple.shards),
		ExpiryQueue:       queued,
		ExpiredBacklog:    expiredBacklog,
	}

	var features []db.Feature
	for f := db.FeaturePut; f <= db.FeatureGarbageCollect; f <<= 1 {
		if supportedFeatures&f != 0 {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		Keys:              keys,
		SizeBytes:         sizeBytes,
		DbType:            db.ImplMaple,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

func (maple *mapleImpl) SetWriteIdx(index uint64) {
	for {
		current := maple.currIndex.Load()
		if index <= current || maple.currIndex.CompareAndSwap(current, index) {
			return
		}
	}
}

func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}

// advance moves the write index to at least index and returns the index to use for the operation
func (maple *mapleImpl) advance(index uint64) uint64 {
	maple.SetWriteIdx(index)
	return maple.currIndex.Load()
}

func (maple *mapleImpl) Close() error {
	maple.closeOnce.Do(func() {
		close(maple.stopCh)
		<-maple.gcDone
	})
	return nil
}
