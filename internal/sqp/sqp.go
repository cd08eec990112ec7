// Package sqp implements the wire format of the Server Query Protocol (SQP):
// the challenge handshake, query requests and the ServerInfo response chunk.
// All multi-byte integers are unsigned and encoded in network byte order.
package sqp

import (
	"errors"
	"strings"
)

// MaxPacketSize is the largest datagram the protocol produces or accepts.
const MaxPacketSize = 1472

// MaxStringLength is the maximum encoded size of a length-prefixed string.
const MaxStringLength = 255

var (
	// ErrTruncated is returned when a datagram ends before a complete field could be read.
	ErrTruncated = errors.New("sqp: truncated message")

	// ErrBufferOverflow is returned when an encoded message does not fit the output buffer.
	ErrBufferOverflow = errors.New("sqp: buffer overflow")

	// ErrUnexpectedType is returned when a message is decoded with a header of another kind.
	ErrUnexpectedType = errors.New("sqp: unexpected message type")
)

// MessageType identifies the kind of message carried by a Header.
// Requests and responses share a numeric value and are told apart by direction.
type MessageType uint8

// Message types.
const (
	ChallengeRequest  MessageType = 0
	ChallengeResponse MessageType = 0
	QueryRequest      MessageType = 1
	QueryResponse     MessageType = 1
)

func (t MessageType) String() string {
	switch t {
	case ChallengeRequest:
		return "challenge"
	case QueryRequest:
		return "query"
	default:
		return "unknown"
	}
}

// ChunkType is a bitmask of payload categories a client can request.
type ChunkType uint8

// Chunk bits. Only ServerInfoChunk is served.
const (
	ServerInfoChunk  ChunkType = 1 << 0
	ServerRulesChunk ChunkType = 1 << 1
	PlayerInfoChunk  ChunkType = 1 << 2
	TeamInfoChunk    ChunkType = 1 << 3

	knownChunks = ServerInfoChunk | ServerRulesChunk | PlayerInfoChunk | TeamInfoChunk
)

// Has reports whether every bit of c is set in t.
func (t ChunkType) Has(c ChunkType) bool {
	return t&c == c
}

// String returns the chunk names joined with "|", e.g. "server_info|team_info".
func (t ChunkType) String() string {
	if t == 0 {
		return "none"
	}

	var parts []string
	for _, c := range []struct {
		bit  ChunkType
		name string
	}{
		{ServerInfoChunk, "server_info"},
		{ServerRulesChunk, "server_rules"},
		{PlayerInfoChunk, "player_info"},
		{TeamInfoChunk, "team_info"},
	} {
		if t.Has(c.bit) {
			parts = append(parts, c.name)
		}
	}
	if t&^knownChunks != 0 {
		parts = append(parts, "unknown")
	}

	return strings.Join(parts, "|")
}
