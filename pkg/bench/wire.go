// Package bench implements the benchmark client core: the session data
// model, wire records, discovery, handshake, the pipelined send/ack loop,
// and start/stop lifecycle orchestration (spec.md §§3-4, 7).
package bench

import "encoding/binary"

// HeaderSize is the fixed prefix of every RequestHeader: sessionId (8
// bytes) + totalCount (8 bytes), little-endian.
const HeaderSize = 16

// SessionConfigRecord is the client->server SessionConfig wire record
// (spec.md §3): fixed-layout, little-endian, no framing beyond the
// transport's.
type SessionConfigRecord struct {
	EchoMode      bool
	ResponseSize  uint32
	PipelineSize  uint32
	PipelineCount uint32
	AckCount      uint32
}

// Encode serializes the record: 1 byte echoMode + four uint32 fields,
// little-endian.
func (r SessionConfigRecord) Encode() []byte {
	buf := make([]byte, 17)
	if r.EchoMode {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], r.ResponseSize)
	binary.LittleEndian.PutUint32(buf[5:9], r.PipelineSize)
	binary.LittleEndian.PutUint32(buf[9:13], r.PipelineCount)
	binary.LittleEndian.PutUint32(buf[13:17], r.AckCount)
	return buf
}

func DecodeSessionConfig(b []byte) (SessionConfigRecord, bool) {
	var r SessionConfigRecord
	if len(b) < 17 {
		return r, false
	}
	r.EchoMode = b[0] != 0
	r.ResponseSize = binary.LittleEndian.Uint32(b[1:5])
	r.PipelineSize = binary.LittleEndian.Uint32(b[5:9])
	r.PipelineCount = binary.LittleEndian.Uint32(b[9:13])
	r.AckCount = binary.LittleEndian.Uint32(b[13:17])
	return r, true
}

// SessionAckRecord is the server->client SessionAck record: sessionId only.
type SessionAckRecord struct {
	SessionID uint64
}

func (r SessionAckRecord) Encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, r.SessionID)
	return buf
}

func DecodeSessionAck(b []byte) (SessionAckRecord, bool) {
	var r SessionAckRecord
	if len(b) < 8 {
		return r, false
	}
	r.SessionID = binary.LittleEndian.Uint64(b)
	return r, true
}

// EncodeRequestHeader writes sessionId and totalCount into the first
// HeaderSize bytes of buf; the remainder of buf is the request's payload,
// left untouched here (the caller zero-fills it).
func EncodeRequestHeader(buf []byte, sessionID, totalCount uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], sessionID)
	binary.LittleEndian.PutUint64(buf[8:16], totalCount)
}

func DecodeRequestHeader(buf []byte) (sessionID, totalCount uint64) {
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16])
}

// AckRecord is the server->client, periodic Ack record: sessionId,
// cumulative totalCount, cumulative totalSize, and a checksum over
// totalCount.
type AckRecord struct {
	SessionID  uint64
	TotalCount uint64
	TotalSize  uint64
	Checksum   uint64
}

func (r AckRecord) Encode() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[0:8], r.SessionID)
	binary.LittleEndian.PutUint64(buf[8:16], r.TotalCount)
	binary.LittleEndian.PutUint64(buf[16:24], r.TotalSize)
	binary.LittleEndian.PutUint64(buf[24:32], r.Checksum)
	return buf
}

func DecodeAck(b []byte) (AckRecord, bool) {
	var r AckRecord
	if len(b) < 32 {
		return r, false
	}
	r.SessionID = binary.LittleEndian.Uint64(b[0:8])
	r.TotalCount = binary.LittleEndian.Uint64(b[8:16])
	r.TotalSize = binary.LittleEndian.Uint64(b[16:24])
	r.Checksum = binary.LittleEndian.Uint64(b[24:32])
	return r, true
}

// Checksum is the triangular number of n: the checksum an Ack's
// cumulative totalCount must satisfy (spec.md §3).
func Checksum(n uint64) uint64 {
	return n * (n + 1) / 2
}
