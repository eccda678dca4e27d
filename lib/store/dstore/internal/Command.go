package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPut         CommandType = iota // Insert or replace an entry.
	CommandTPutIfAbsent                    // Insert an entry if it does not exist.
	CommandTDelete                         // Delete an entry.
	CommandTIncrement                      // Increment a counter.
	CommandTDecrement                      // Decrement a counter.
	CommandTClear                          // Delete all entries.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTPutIfAbsent:
		return "PutIfAbsent"
	case CommandTDelete:
		return "Delete"
	case CommandTIncrement:
		return "Increment"
	case CommandTDecrement:
		return "Decrement"
	case CommandTClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTPut:
		return db.FeaturePut, nil
	case CommandTPutIfAbsent:
		return db.FeaturePutIfAbsent, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTIncrement, CommandTDecrement:
		return db.FeatureCounter, nil
	case CommandTClear:
		return db.FeatureClear, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log).
// Timestamp is the proposer's clock in unix milliseconds, every replica uses it as the write index
// so TTLs are evaluated identically everywhere.
type Command struct {
	Type      CommandType
	Timestamp uint64 // unix milliseconds of the proposer
	TTL       uint64 // time to live in milliseconds (0 = none)
	Key       string
	Value     []byte
}

const headerSize = 1 + 8 + 8 + 4 // Type + Timestamp + TTL + KeyLen

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for the timestamp,
// 8 bytes for the ttl,
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.Timestamp)
	binary.BigEndian.PutUint64(result[9:17], command.TTL)
	binary.BigEndian.PutUint32(result[17:21], uint32(len(command.Key)))

	n := copy(result[headerSize:], command.Key)
	copy(result[headerSize+n:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Timestamp = binary.BigEndian.Uint64(data[1:9])
	command.TTL = binary.BigEndian.Uint64(data[9:17])

	keyLen := int(binary.BigEndian.Uint32(data[17:21]))
	if len(data) < headerSize+keyLen {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[headerSize : headerSize+keyLen])

	if rest := data[headerSize+keyLen:]; len(rest) > 0 {
		command.Value = make([]byte, len(rest))
		copy(command.Value, rest)
	} else {
		command.Value = nil
	}

	return nil
}
