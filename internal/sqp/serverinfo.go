package sqp

import (
	"fmt"
	"math"
)

// ServerInfo is the data reported in the ServerInfo chunk.
// The field order of the encoding is fixed by the protocol.
type ServerInfo struct {
	ServerName     string `json:"server_name"`
	GameType       string `json:"game_type"`
	BuildID        string `json:"build_id"`
	Map            string `json:"map"`
	CurrentPlayers uint16 `json:"current_players"`
	MaxPlayers     uint16 `json:"max_players"`
	Port           uint16 `json:"port"`
}

// Encode writes the chunk data to w.
func (s ServerInfo) Encode(w *Writer) {
	w.WriteUint16(s.CurrentPlayers)
	w.WriteUint16(s.MaxPlayers)
	w.WriteString(s.ServerName)
	w.WriteString(s.GameType)
	w.WriteString(s.BuildID)
	w.WriteString(s.Map)
	w.WriteUint16(s.Port)
}

// Decode reads the chunk data from r.
func (s *ServerInfo) Decode(r *Reader) {
	s.CurrentPlayers = r.ReadUint16()
	s.MaxPlayers = r.ReadUint16()
	s.ServerName = r.ReadString()
	s.GameType = r.ReadString()
	s.BuildID = r.ReadString()
	s.Map = r.ReadString()
	s.Port = r.ReadUint16()
}

// ServerInfoResponse is a single packet query response carrying one ServerInfo chunk.
type ServerInfoResponse struct {
	QueryHeader QueryResponseHeader
	ChunkLength uint32
	Info        ServerInfo
}

// EncodeServerInfoResponse writes a complete ServerInfo response to w.
// Both the response length and the chunk length are written as reserved slots
// and patched after the chunk data, so nothing is measured twice.
// On error the content of w must not be sent.
func EncodeServerInfoResponse(w *Writer, hdr QueryResponseHeader, info ServerInfo) error {
	length := hdr.Encode(w)
	chunkLength := w.Reserve32()
	info.Encode(w)

	if err := w.Err(); err != nil {
		return err
	}

	payload := w.Len() - length.End()
	if payload > math.MaxUint16 {
		return fmt.Errorf("%w: payload of %d bytes", ErrBufferOverflow, payload)
	}

	length.Set(uint16(payload))
	chunkLength.Set(uint32(w.Len() - chunkLength.End()))
	return nil
}

// DecodeServerInfoResponse parses a ServerInfo query response datagram.
func DecodeServerInfoResponse(b []byte) (ServerInfoResponse, error) {
	var m ServerInfoResponse
	r := NewReader(b, 0)
	m.QueryHeader.decode(r)
	if err := r.Err(); err != nil {
		return ServerInfoResponse{}, err
	}
	if m.QueryHeader.Header.Type != QueryResponse {
		return ServerInfoResponse{}, fmt.Errorf("%w: %d", ErrUnexpectedType, m.QueryHeader.Header.Type)
	}
	if r.Remaining() < int(m.QueryHeader.Length) {
		return ServerInfoResponse{}, ErrTruncated
	}

	m.ChunkLength = r.ReadUint32()
	m.Info.Decode(r)
	if err := r.Err(); err != nil {
		return ServerInfoResponse{}, err
	}

	return m, nil
}
