// Package internal holds the log entry format of dstore. Only dstore imports it.
//
// A Command is one write in the RAFT log:
//
//	type (1) | timestamp ms (8) | ttl ms (8) | key length (4) | key | value
//
// Integers are big endian. The value is only present for Put and PutIfAbsent.
// The timestamp is the clock of the proposing node and becomes the write index of
// the replicated database, so expiry is part of the log and identical on every replica.
//
// A Query is a read (Get, GetDBInfo). Queries are handed to the local state machine
// as values and never serialized.
package internal
