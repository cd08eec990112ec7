package game

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/woozymasta/sqpd/internal/sqp"
)

// QuerySQP performs the challenge handshake with the SQP server at address
// and returns its ServerInfo chunk.
func QuerySQP(ctx context.Context, address string, timeout time.Duration) (*sqp.ServerInfo, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	out := sqp.NewWriter(make([]byte, sqp.MaxPacketSize))
	in := make([]byte, sqp.MaxPacketSize)

	sqp.ChallengeRequestMessage{}.Encode(out)
	n, err := roundTrip(conn, out.Bytes(), in)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	challenge, err := sqp.DecodeChallengeResponse(in[:n])
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	out.Reset()
	sqp.QueryRequestMessage{
		Header:          sqp.Header{ChallengeID: challenge.Header.ChallengeID},
		Version:         1,
		RequestedChunks: sqp.ServerInfoChunk,
	}.Encode(out)
	n, err = roundTrip(conn, out.Bytes(), in)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rsp, err := sqp.DecodeServerInfoResponse(in[:n])
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if rsp.QueryHeader.Header.ChallengeID != challenge.Header.ChallengeID {
		return nil, fmt.Errorf("query: response for challenge %d, expected %d",
			rsp.QueryHeader.Header.ChallengeID, challenge.Header.ChallengeID)
	}

	return &rsp.Info, nil
}

func roundTrip(conn net.Conn, req, buf []byte) (int, error) {
	if _, err := conn.Write(req); err != nil {
		return 0, err
	}
	return conn.Read(buf)
}
