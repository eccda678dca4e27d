package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasTTL   byte = 1 << 1
	hasValue byte = 1 << 2
	hasOk    byte = 1 << 3
	hasNum   byte = 1 << 4
	hasCode  byte = 1 << 5
	hasErr   byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos = putBytes(result, pos, []byte(msg.Key))
	}

	// Handle TTL
	if msg.TTL > 0 {
		flags |= hasTTL
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.TTL)
		pos += 8
	}

	// Handle Value
	if msg.Value != nil {
		flags |= hasValue
		pos = putBytes(result, pos, msg.Value)
	}

	// Handle Ok (only the flag is written)
	if msg.Ok {
		flags |= hasOk
	}

	// Handle Num
	if msg.Num != 0 {
		flags |= hasNum
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.Num))
		pos += 8
	}

	// Handle Code
	if msg.Code != store.RetCSuccess {
		flags |= hasCode
		result[pos] = byte(msg.Code)
		pos += 1
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		putBytes(result, pos, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	// Read Key if present
	msg.Key = ""
	if flags&hasKey != 0 {
		key, next, err := readBytes(data, pos, "key")
		if err != nil {
			return err
		}
		msg.Key = string(key)
		pos = next
	}

	// Read TTL if present
	msg.TTL = 0
	if flags&hasTTL != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for TTL")
		}
		msg.TTL = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	// Read Value if present
	msg.Value = nil
	if flags&hasValue != 0 {
		value, next, err := readBytes(data, pos, "value")
		if err != nil {
			return err
		}
		// create an empty slice (not nil) if length is 0
		msg.Value = make([]byte, len(value))
		copy(msg.Value, value)
		pos = next
	}

	msg.Ok = flags&hasOk != 0

	// Read Num if present
	msg.Num = 0
	if flags&hasNum != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for Num")
		}
		msg.Num = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	// Read Code if present
	msg.Code = store.RetCSuccess
	if flags&hasCode != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Code")
		}
		msg.Code = store.RetCode(data[pos])
		pos += 1
	}

	// Read Err if present
	msg.Err = ""
	if flags&hasErr != 0 {
		errData, _, err := readBytes(data, pos, "error")
		if err != nil {
			return err
		}
		msg.Err = string(errData)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key) // 4 bytes for length + key string
	}
	if msg.TTL > 0 {
		size += 8 // uint64
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.Num != 0 {
		size += 8 // int64
	}
	if msg.Code != store.RetCSuccess {
		size += 1 // return codes fit into one byte
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}

	return size
}

// putBytes writes a length prefixed byte slice at pos and returns the next position
func putBytes(dst []byte, pos int, src []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(src)))
	pos += 4
	return pos + copy(dst[pos:], src)
}

// readBytes reads a length prefixed byte slice at pos, the returned slice aliases data
func readBytes(data []byte, pos int, field string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+n > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s data", field)
	}
	return data[pos : pos+n], pos + n, nil
}
