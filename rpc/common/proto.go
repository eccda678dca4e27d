package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: all operations except Clear and Info
	TTL   uint64 `json:"ttl,omitempty"`   // Used for: Put, PutIfAbsent, Increment (seconds)
	Value []byte `json:"value,omitempty"` // Used for: Put, PutIfAbsent (request), Get, Info (response)

	// Response only fields
	Ok   bool          `json:"ok,omitempty"`   // Used for: Get, PutIfAbsent responses
	Num  int64         `json:"num,omitempty"`  // Used for: Increment, Decrement responses
	Code store.RetCode `json:"code,omitempty"` // Return code of the store error (0 if no error)
	Err  string        `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// SetError fills the error fields of the message. Store errors keep their return code.
func (m *Message) SetError(err error) {
	if err == nil {
		return
	}
	var se *store.Error
	if errors.As(err, &se) {
		m.Code = se.Code
		m.Err = se.Msg
		return
	}
	m.Code = store.RetCInternalError
	m.Err = err.Error()
}

// AsError reconstructs the error sent by the server (nil if the message carries no error).
func (m *Message) AsError() error {
	if m.Err == "" && m.Code == store.RetCSuccess {
		return nil
	}
	code := m.Code
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVGet,
		Ok:      ok,
		Value:   value,
	}
	msg.SetError(err)
	return msg
}

// NewPutRequest creates a new Put request
func NewPutRequest(key string, value []byte, ttl uint64) *Message {
	return &Message{
		MsgType: MsgTKVPut,
		Key:     key,
		Value:   value,
		TTL:     ttl,
	}
}

// NewPutResponse creates a new Put response
func NewPutResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVPut,
	}
	msg.SetError(err)
	return msg
}

// NewPutIfAbsentRequest creates a new PutIfAbsent request
func NewPutIfAbsentRequest(key string, value []byte, ttl uint64) *Message {
	return &Message{
		MsgType: MsgTKVPutIfAbsent,
		Key:     key,
		Value:   value,
		TTL:     ttl,
	}
}

// NewPutIfAbsentResponse creates a new PutIfAbsent response
func NewPutIfAbsentResponse(stored bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVPutIfAbsent,
		Ok:      stored,
	}
	msg.SetError(err)
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDelete,
	}
	msg.SetError(err)
	return msg
}

// NewIncrementRequest creates a new Increment request
func NewIncrementRequest(key string, ttl uint64) *Message {
	return &Message{
		MsgType: MsgTKVIncrement,
		Key:     key,
		TTL:     ttl,
	}
}

// NewIncrementResponse creates a new Increment response
func NewIncrementResponse(value int64, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVIncrement,
		Num:     value,
	}
	msg.SetError(err)
	return msg
}

// NewDecrementRequest creates a new Decrement request
func NewDecrementRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDecrement,
		Key:     key,
	}
}

// NewDecrementResponse creates a new Decrement response
func NewDecrementResponse(value int64, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDecrement,
		Num:     value,
	}
	msg.SetError(err)
	return msg
}

// NewClearRequest creates a new Clear request
func NewClearRequest() *Message {
	return &Message{
		MsgType: MsgTKVClear,
	}
}

// NewClearResponse creates a new Clear response
func NewClearResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVClear,
	}
	msg.SetError(err)
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTKVInfo,
	}
}

// NewInfoResponse creates a new Info response, the info is sent as json in the value field
func NewInfoResponse(info []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInfo,
		Value:   info,
	}
	msg.SetError(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    store.RetCInternalError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTKVGet:         "get",
	MsgTKVPut:         "put",
	MsgTKVPutIfAbsent: "putIfAbsent",
	MsgTKVDelete:      "delete",
	MsgTKVIncrement:   "increment",
	MsgTKVDecrement:   "decrement",
	MsgTKVClear:       "clear",
	MsgTKVInfo:        "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range msgTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVGet         // Get a value by key
	MsgTKVPut         // Insert or replace a key-value pair
	MsgTKVPutIfAbsent // Insert a key-value pair if the key does not exist
	MsgTKVDelete      // Delete a key-value pair
	MsgTKVIncrement   // Increment a counter
	MsgTKVDecrement   // Decrement a counter
	MsgTKVClear       // Delete all key-value pairs
	MsgTKVInfo        // Get info about the database of a shard
)
