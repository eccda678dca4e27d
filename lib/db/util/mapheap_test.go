package util

import (
	"container/heap"
	"testing"
)

func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if _, ok := mh.Peek(); ok {
		t.Error("Peek() on an empty heap should return false")
	}
}

func TestAddItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}
	for _, k := range []string{"a", "b", "c"} {
		if !mh.Contains(k) {
			t.Errorf("Heap should contain key %s", k)
		}
	}

	it, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}
	if it.Key != "c" || it.Priority != 50 {
		t.Errorf("Expected min item to be (c,50), got %s", it)
	}
}

func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.AddItem("a", 100)
	mh.AddItem("b", 200)

	// moving b in front of a
	mh.AddItem("b", 10)
	if mh.Len() != 2 {
		t.Errorf("Updating must not add a new item, length is %d", mh.Len())
	}
	it, _ := mh.Peek()
	if it.Key != "b" {
		t.Errorf("Expected b to be the min item after update, got %s", it)
	}

	// and back again
	mh.AddItem("b", 1000)
	it, _ = mh.Peek()
	if it.Key != "a" {
		t.Errorf("Expected a to be the min item after second update, got %s", it)
	}
}

func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 50)

	prio, ok := mh.RemoveByKey("c")
	if !ok || prio != 50 {
		t.Errorf("RemoveByKey(c) = (%d,%v), expected (50,true)", prio, ok)
	}
	if mh.Contains("c") {
		t.Error("c should be removed")
	}
	if _, ok := mh.RemoveByKey("missing"); ok {
		t.Error("RemoveByKey on a missing key should return false")
	}
	it, _ := mh.Peek()
	if it.Key != "a" {
		t.Errorf("Expected a to be the min item, got %s", it)
	}
}

func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[int]()
	priorities := []uint64{42, 7, 99, 1, 23, 56, 3}
	for i, p := range priorities {
		mh.AddItem(i, p)
	}

	var last uint64
	for mh.Len() > 0 {
		it := heap.Pop(mh).(*Item[int])
		if it.Priority < last {
			t.Fatalf("Pop order violated: %d after %d", it.Priority, last)
		}
		last = it.Priority
		if mh.Contains(it.Key) {
			t.Errorf("Popped key %d is still in the map", it.Key)
		}
	}
}

func TestReset(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.AddItem("a", 1)
	mh.AddItem("b", 2)
	mh.Reset()

	if mh.Len() != 0 || mh.Contains("a") {
		t.Error("Reset should drop every item")
	}
	mh.AddItem("a", 3)
	if it, _ := mh.Peek(); it.Priority != 3 {
		t.Errorf("Heap unusable after Reset, got %s", it)
	}
}
