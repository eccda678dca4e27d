// Package serializer converts common.Message values to bytes and back.
//
// Three encodings implement IRPCSerializer:
//
//   - NewBinarySerializer: a hand written format. A flag byte records which fields are
//     set and only those are written, so a typical lock request is a few dozen bytes.
//     It is the default of client and server.
//   - NewJSONSerializer: encoding/json, readable when debugging with curl against the
//     http transport.
//   - NewGOBSerializer: encoding/gob. Slower and larger than the other two, kept for
//     compatibility.
//
// Client and server must use the same serializer. All implementations are stateless
// and safe for concurrent use.
//
//	s := serializer.NewBinarySerializer()
//	b, err := s.Serialize(*common.NewPutIfAbsentRequest(key, value, 0))
//	...
//	var resp common.Message
//	err = s.Deserialize(b, &resp)
package serializer
