package sqp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, h := range []Header{
		{Type: ChallengeRequest, ChallengeID: 0},
		{Type: QueryRequest, ChallengeID: 0xdeadbeef},
		{Type: 7, ChallengeID: 1},
	} {
		b, err := h.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, b, HeaderSize)

		got, n, err := DecodeHeader(b, 0)
		require.NoError(t, err)
		assert.Equal(t, HeaderSize, n)
		assert.Equal(t, h, got)
	}
}

func TestHeaderNetworkByteOrder(t *testing.T) {
	b, err := Header{Type: QueryRequest, ChallengeID: 0x01020304}.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 2, 3, 4}, b)
}

func TestDecodeHeaderOffset(t *testing.T) {
	b := []byte{0xff, 0xff, 0, 0, 0, 0, 9}
	h, n, err := DecodeHeader(b, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, Header{Type: ChallengeRequest, ChallengeID: 9}, h)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	for _, b := range [][]byte{nil, {0}, {0, 1}, {1, 0, 0, 0}} {
		_, _, err := DecodeHeader(b, 0)
		assert.ErrorIs(t, err, ErrTruncated)
	}

	_, _, err := DecodeHeader(make([]byte, 5), 1)
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeHeader(make([]byte, 5), 9)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestQueryRequestRoundTrip(t *testing.T) {
	w := NewWriter(make([]byte, MaxPacketSize))
	QueryRequestMessage{
		Header:          Header{ChallengeID: 42},
		Version:         1,
		RequestedChunks: ServerInfoChunk | TeamInfoChunk,
	}.Encode(w)
	require.NoError(t, w.Err())
	assert.Equal(t, []byte{1, 0, 0, 0, 42, 0, 1, 9}, w.Bytes())

	m, err := DecodeQueryRequest(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, QueryRequest, m.Header.Type)
	assert.Equal(t, uint32(42), m.Header.ChallengeID)
	assert.Equal(t, uint16(1), m.Version)
	assert.True(t, m.RequestedChunks.Has(ServerInfoChunk))
	assert.False(t, m.RequestedChunks.Has(PlayerInfoChunk))

	_, err = DecodeQueryRequest(w.Bytes()[:7])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeQueryRequestWrongType(t *testing.T) {
	_, err := DecodeQueryRequest([]byte{0, 0, 0, 0, 1, 0, 1, 1})
	assert.ErrorIs(t, err, ErrUnexpectedType)
}

func TestChallengeMessagesForceType(t *testing.T) {
	w := NewWriter(make([]byte, HeaderSize))
	ChallengeResponseMessage{Header: Header{Type: 9, ChallengeID: 5}}.Encode(w)
	require.NoError(t, w.Err())

	m, err := DecodeChallengeResponse(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ChallengeResponse, m.Header.Type)
	assert.Equal(t, uint32(5), m.Header.ChallengeID)
}

func TestServerInfoRoundTrip(t *testing.T) {
	long := strings.Repeat("x", MaxStringLength)
	for _, info := range []ServerInfo{
		{},
		{
			ServerName:     "Test Server",
			GameType:       "Test Game Type",
			BuildID:        "Test Build 1234",
			Map:            "Test Map",
			CurrentPlayers: 6,
			MaxPlayers:     16,
			Port:           1234,
		},
		{ServerName: long, GameType: long, BuildID: long, Map: "Привет", Port: 65535},
	} {
		w := NewWriter(make([]byte, MaxPacketSize))
		info.Encode(w)
		require.NoError(t, w.Err())

		var got ServerInfo
		r := NewReader(w.Bytes(), 0)
		got.Decode(r)
		require.NoError(t, r.Err())
		assert.Equal(t, info, got)
		assert.Zero(t, r.Remaining())
	}
}

func TestWriteStringTruncates(t *testing.T) {
	w := NewWriter(make([]byte, 512))
	w.WriteString(strings.Repeat("a", 300))
	require.NoError(t, w.Err())
	require.Equal(t, 1+MaxStringLength, w.Len())
	assert.Equal(t, byte(MaxStringLength), w.Bytes()[0])

	// 254 ASCII bytes followed by a two byte rune must not be split.
	w.Reset()
	w.WriteString(strings.Repeat("a", 254) + "é" + "tail")
	require.NoError(t, w.Err())
	assert.Equal(t, byte(254), w.Bytes()[0])

	r := NewReader(w.Bytes(), 0)
	assert.Equal(t, strings.Repeat("a", 254), r.ReadString())
}

func TestReadStringUnderrun(t *testing.T) {
	r := NewReader([]byte{5, 'a', 'b'}, 0)
	assert.Empty(t, r.ReadString())
	assert.ErrorIs(t, r.Err(), ErrTruncated)

	// Sticky: later reads keep failing.
	assert.Zero(t, r.ReadUint8())
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestWriterOverflow(t *testing.T) {
	w := NewWriter(make([]byte, 3))
	w.WriteUint16(1)
	w.WriteUint16(2)
	assert.ErrorIs(t, w.Err(), ErrBufferOverflow)
	assert.Equal(t, 2, w.Len())

	w.WriteUint8(3)
	assert.Equal(t, 2, w.Len())
}

func TestServerInfoResponseLayout(t *testing.T) {
	info := ServerInfo{
		ServerName:     "Test Server",
		GameType:       "Test Game Type",
		BuildID:        "Test Build 1234",
		Map:            "Test Map",
		CurrentPlayers: 6,
		MaxPlayers:     16,
		Port:           1234,
	}

	w := NewWriter(make([]byte, MaxPacketSize))
	err := EncodeServerInfoResponse(w, QueryResponseHeader{
		Header:  Header{ChallengeID: 77},
		Version: 1,
	}, info)
	require.NoError(t, err)

	b := w.Bytes()
	dataLen := 2 + 2 + (1 + 11) + (1 + 14) + (1 + 15) + (1 + 8) + 2
	require.Len(t, b, QueryResponseHeaderSize+4+dataLen)

	// type, challenge id, version, current and last packet
	assert.Equal(t, []byte{1, 0, 0, 0, 77, 0, 1, 0, 0}, b[:9])
	// length counts the chunk length field plus chunk data
	assert.Equal(t, []byte{0, byte(4 + dataLen)}, b[9:11])
	assert.Equal(t, []byte{0, 0, 0, byte(dataLen)}, b[11:15])

	m, err := DecodeServerInfoResponse(b)
	require.NoError(t, err)
	assert.Equal(t, uint16(4+dataLen), m.QueryHeader.Length)
	assert.Equal(t, uint32(dataLen), m.ChunkLength)
	assert.Equal(t, uint32(77), m.QueryHeader.Header.ChallengeID)
	assert.Equal(t, info, m.Info)
}

func TestEncodeServerInfoResponseOverflow(t *testing.T) {
	w := NewWriter(make([]byte, 20))
	err := EncodeServerInfoResponse(w, QueryResponseHeader{}, ServerInfo{ServerName: "does not fit in twenty bytes"})
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestDecodeServerInfoResponseTruncated(t *testing.T) {
	w := NewWriter(make([]byte, MaxPacketSize))
	require.NoError(t, EncodeServerInfoResponse(w, QueryResponseHeader{}, ServerInfo{Map: "m"}))

	b := w.Bytes()
	for _, n := range []int{0, 4, QueryResponseHeaderSize, len(b) - 1} {
		_, err := DecodeServerInfoResponse(b[:n])
		assert.ErrorIs(t, err, ErrTruncated, "length %d", n)
	}
}

func TestChunkTypeString(t *testing.T) {
	assert.Equal(t, "none", ChunkType(0).String())
	assert.Equal(t, "server_info", ServerInfoChunk.String())
	assert.Equal(t, "server_rules|player_info", (ServerRulesChunk | PlayerInfoChunk).String())
	assert.Equal(t, "team_info|unknown", ChunkType(0x88).String())
}
