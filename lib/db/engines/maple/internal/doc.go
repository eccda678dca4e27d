// Package internal holds the entry and shard types of the maple engine.
package internal
