package sqp

import "fmt"

// HeaderSize is the encoded size of Header.
const HeaderSize = 5

// Header starts every SQP message.
type Header struct {
	Type        MessageType
	ChallengeID uint32
}

// Encode writes the header to w.
func (h Header) Encode(w *Writer) {
	w.WriteUint8(uint8(h.Type))
	w.WriteUint32(h.ChallengeID)
}

// MarshalBinary returns the five byte encoding of the header.
func (h Header) MarshalBinary() ([]byte, error) {
	w := NewWriter(make([]byte, HeaderSize))
	h.Encode(w)
	return w.Bytes(), w.Err()
}

func (h *Header) decode(r *Reader) {
	h.Type = MessageType(r.ReadUint8())
	h.ChallengeID = r.ReadUint32()
}

// DecodeHeader reads a header from b starting at offset and returns it with
// the number of bytes consumed.
func DecodeHeader(b []byte, offset int) (Header, int, error) {
	var h Header
	r := NewReader(b, offset)
	h.decode(r)
	if err := r.Err(); err != nil {
		return Header{}, 0, err
	}
	return h, HeaderSize, nil
}

// ChallengeRequestMessage is sent by a client to obtain a challenge token.
type ChallengeRequestMessage struct {
	Header Header
}

// Encode writes the request to w.
func (m ChallengeRequestMessage) Encode(w *Writer) {
	m.Header.Type = ChallengeRequest
	m.Header.Encode(w)
}

// ChallengeResponseMessage carries a freshly issued challenge token.
type ChallengeResponseMessage struct {
	Header Header
}

// Encode writes the response to w.
func (m ChallengeResponseMessage) Encode(w *Writer) {
	m.Header.Type = ChallengeResponse
	m.Header.Encode(w)
}

// DecodeChallengeResponse parses a challenge response datagram.
func DecodeChallengeResponse(b []byte) (ChallengeResponseMessage, error) {
	h, _, err := DecodeHeader(b, 0)
	if err != nil {
		return ChallengeResponseMessage{}, err
	}
	if h.Type != ChallengeResponse {
		return ChallengeResponseMessage{}, fmt.Errorf("%w: %d", ErrUnexpectedType, h.Type)
	}
	return ChallengeResponseMessage{Header: h}, nil
}

// QueryRequestMessage asks for one or more chunks of server data.
type QueryRequestMessage struct {
	Header          Header
	Version         uint16
	RequestedChunks ChunkType
}

// Encode writes the request to w.
func (m QueryRequestMessage) Encode(w *Writer) {
	m.Header.Type = QueryRequest
	m.Header.Encode(w)
	w.WriteUint16(m.Version)
	w.WriteUint8(uint8(m.RequestedChunks))
}

// DecodeQueryRequest parses a query request datagram.
func DecodeQueryRequest(b []byte) (QueryRequestMessage, error) {
	var m QueryRequestMessage
	r := NewReader(b, 0)
	m.Header.decode(r)
	m.Version = r.ReadUint16()
	m.RequestedChunks = ChunkType(r.ReadUint8())
	if err := r.Err(); err != nil {
		return QueryRequestMessage{}, err
	}
	if m.Header.Type != QueryRequest {
		return QueryRequestMessage{}, fmt.Errorf("%w: %d", ErrUnexpectedType, m.Header.Type)
	}
	return m, nil
}

// QueryResponseHeaderSize is the encoded size of QueryResponseHeader.
const QueryResponseHeaderSize = HeaderSize + 6

// QueryResponseHeader precedes the chunks of a query response.
// Length counts the bytes following the Length field.
type QueryResponseHeader struct {
	Header        Header
	Version       uint16
	CurrentPacket uint8
	LastPacket    uint8
	Length        uint16
}

// Encode writes the header to w and returns the slot holding Length so the
// caller can patch it once the payload is written.
func (m QueryResponseHeader) Encode(w *Writer) DeferredUint16 {
	m.Header.Type = QueryResponse
	m.Header.Encode(w)
	w.WriteUint16(m.Version)
	w.WriteUint8(m.CurrentPacket)
	w.WriteUint8(m.LastPacket)

	length := w.Reserve16()
	length.Set(m.Length)
	return length
}

func (m *QueryResponseHeader) decode(r *Reader) {
	m.Header.decode(r)
	m.Version = r.ReadUint16()
	m.CurrentPacket = r.ReadUint8()
	m.LastPacket = r.ReadUint8()
	m.Length = r.ReadUint16()
}
