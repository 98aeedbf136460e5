package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Frame layout, all integers big endian:
// - 8 bytes: shard ID (uint64)
// - 8 bytes: request ID (uint64)
// - 4 bytes: payload length (uint32)
// - N bytes: payload
const frameHeaderSize = 20

// maxFramePayload caps a single serialized message. Anything larger
// indicates a corrupted stream or a misbehaving peer.
const maxFramePayload = 512 * 1024 * 1024

// writeFrame writes one frame to the connection. Header and payload go out
// in a single writev call so concurrent writers only need to hold the
// connection lock once per frame.
func writeFrame(conn net.Conn, shardID, requestID uint64, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(payload)))

	buffers := net.Buffers{header[:], payload}
	_, err := buffers.WriteTo(conn)
	return err
}

// readFrame reads one frame from the connection into buf, allocating a
// larger buffer only when the payload does not fit. The returned payload
// slice aliases the buffer and is only valid until the next read.
func readFrame(conn net.Conn, buf []byte) (shardID, requestID uint64, payload []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[0:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	length := binary.BigEndian.Uint32(buf[16:20])

	if length == 0 {
		return shardID, requestID, []byte{}, nil
	}
	if length > maxFramePayload {
		return 0, 0, nil, fmt.Errorf("frame payload of %d bytes exceeds limit", length)
	}

	if len(buf) < int(length) {
		buf = make([]byte, length)
	}
	if _, err := io.ReadFull(conn, buf[:length]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:length], nil
}
