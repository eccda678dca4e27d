package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/VictoriaMetrics/metrics"
)

const (
	// frameHeaderSize is shard id, request id and payload length
	frameHeaderSize = 20

	// MaxFrameSize is the largest payload a peer may announce
	MaxFrameSize = 64 << 20
)

var (
	framesWritten   = metrics.NewCounter(`dcoord_transport_frames_total{dir="out"}`)
	framesRead      = metrics.NewCounter(`dcoord_transport_frames_total{dir="in"}`)
	bytesWritten    = metrics.NewCounter(`dcoord_transport_bytes_total{dir="out"}`)
	bytesRead       = metrics.NewCounter(`dcoord_transport_bytes_total{dir="in"}`)
	reconnects      = metrics.NewCounter(`dcoord_transport_reconnects_total`)
	requestRetries  = metrics.NewCounter(`dcoord_transport_retries_total`)
	requestTimeouts = metrics.NewCounter(`dcoord_transport_timeouts_total`)
)

// writeFrame writes header and payload with a single vectored write
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds the limit of %d bytes", len(data), MaxFrameSize)
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	n, err := b.WriteTo(conn)
	bytesWritten.Add(int(n))
	if err == nil {
		framesWritten.Inc()
	}
	return err
}

// readFrame reads one frame into buf. A new buffer is allocated if buf is too small,
// so the returned payload must not be used after buf is reused.
func readFrame(conn net.Conn, buf []byte) (shardID uint64, requestID uint64, data []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength > MaxFrameSize {
		return 0, 0, nil, fmt.Errorf("peer announced a frame of %d bytes, limit is %d bytes", contentLength, MaxFrameSize)
	}

	framesRead.Inc()
	bytesRead.Add(frameHeaderSize + int(contentLength))

	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}
