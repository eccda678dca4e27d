package internal

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dCoord/lib/db"
)

func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with key and value",
			command:  Command{Type: CommandTPut, Key: "testkey", Value: []byte("testvalue")},
			expected: headerSize + 7 + 9,
		},
		{
			name:     "Command without value",
			command:  Command{Type: CommandTIncrement, Key: "counter", TTL: 60_000},
			expected: headerSize + 7,
		},
		{
			name:     "Clear command",
			command:  Command{Type: CommandTClear},
			expected: headerSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
			if n := len(tt.command.Serialize()); n != tt.expected {
				t.Errorf("len(Serialize()) = %v, want %v", n, tt.expected)
			}
		})
	}
}

func TestSerializeDeserialize(t *testing.T) {
	tests := []Command{
		{Type: CommandTPutIfAbsent, Timestamp: 1_700_000_000_000, Key: "dav:box-1", Value: []byte(`{"key":"dav:box-1"}`)},
		{Type: CommandTIncrement, Timestamp: 42, TTL: 300_000, Key: "account-lock:alice"},
		{Type: CommandTDelete, Timestamp: 7, Key: "ünïcødé"},
		{Type: CommandTClear, Timestamp: 9},
	}

	for _, original := range tests {
		t.Run(original.Type.String(), func(t *testing.T) {
			var decoded Command
			if err := decoded.Deserialize(original.Serialize()); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if decoded.Type != original.Type || decoded.Timestamp != original.Timestamp ||
				decoded.TTL != original.TTL || decoded.Key != original.Key {
				t.Errorf("got %+v, want %+v", decoded, original)
			}
			if !bytes.Equal(decoded.Value, original.Value) {
				t.Errorf("value = %q, want %q", decoded.Value, original.Value)
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	var cmd Command
	if err := cmd.Deserialize([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}

	data := (&Command{Type: CommandTPut, Key: "abcdef"}).Serialize()
	if err := cmd.Deserialize(data[:headerSize+2]); err == nil {
		t.Error("expected error for truncated key")
	}
}

func TestToDBFeature(t *testing.T) {
	for ct, want := range map[CommandType]db.Feature{
		CommandTPut:         db.FeaturePut,
		CommandTPutIfAbsent: db.FeaturePutIfAbsent,
		CommandTDelete:      db.FeatureDelete,
		CommandTIncrement:   db.FeatureCounter,
		CommandTDecrement:   db.FeatureCounter,
		CommandTClear:       db.FeatureClear,
	} {
		got, err := ct.ToDBFeature()
		if err != nil || got != want {
			t.Errorf("%s.ToDBFeature() = (%v, %v), want %v", ct, got, err, want)
		}
	}
	if _, err := CommandType(200).ToDBFeature(); err == nil {
		t.Error("expected error for unknown command type")
	}
}
