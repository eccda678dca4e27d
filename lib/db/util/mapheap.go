// Package util
//
// This file provides the expiry queue used by the engine's garbage collector.
//
// MapHeap is a binary min-heap ordered by priority (the expiry index) combined
// with a map from key to heap position. The map makes it possible to update or
// drop the scheduled expiry of a single key in O(log n) when the key is
// overwritten, deleted or refreshed.
//
// MapHeap is not thread-safe. The maple engine guards each shard's heap with a mutex.
//
// Example usage:
//
//	q := NewMapHeap[string]()
//	q.AddItem("a", 100)
//	q.AddItem("b", 50)
//
//	for {
//		it, ok := q.Peek()
//		if !ok || it.Priority > now {
//			break
//		}
//		q.RemoveByKey(it.Key)
//		// expire it.Key
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is a scheduled key with its priority
type Item[K comparable] struct {
	Key      K
	Priority uint64
	index    int // position in the heap, maintained by the heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap by priority with key based access
type MapHeap[K comparable] struct {
	items    []*Item[K]
	itemsMap map[K]*Item[K]
}

// NewMapHeap creates an empty heap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

func (h *MapHeap[K]) Len() int { return len(h.items) }

func (h *MapHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *MapHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *MapHeap[K]) Push(x interface{}) {
	it := x.(*Item[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.Key] = it
}

func (h *MapHeap[K]) Pop() interface{} {
	n := len(h.items)
	it := h.items[n-1]
	h.items[n-1] = nil
	it.index = -1
	h.items = h.items[:n-1]
	delete(h.itemsMap, it.Key)
	return it
}

// --------------------------------------------------------------------------
// Key based access
// --------------------------------------------------------------------------

// AddItem schedules key with priority, replacing the priority if the key is already queued
func (h *MapHeap[K]) AddItem(key K, priority uint64) {
	if it, exists := h.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &Item[K]{Key: key, Priority: priority})
}

// RemoveByKey drops key from the heap and returns its priority
func (h *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	it, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (h *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Contains checks if a key is queued
func (h *MapHeap[K]) Contains(key K) bool {
	_, exists := h.itemsMap[key]
	return exists
}

// Reset drops all items
func (h *MapHeap[K]) Reset() {
	h.items = make([]*Item[K], 0)
	h.itemsMap = make(map[K]*Item[K])
}
