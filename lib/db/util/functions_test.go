package util

import "testing"

func TestHashString(t *testing.T) {
	if HashString("node-1", 0) != HashString("node-1", 0) {
		t.Error("HashString must be deterministic")
	}
	if HashString("node-1", 0) == HashString("node-2", 0) {
		t.Error("different inputs should hash differently")
	}
	if HashString("node-1", 0) == HashString("node-1", 1) {
		t.Error("the seed must influence the hash")
	}
}
