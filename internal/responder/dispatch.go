package responder

import (
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sqpd/internal/metrics"
	"github.com/woozymasta/sqpd/internal/sqp"
)

// HandlePacket answers a single datagram received from `from`.
// At most one response is sent; malformed or unauthorized datagrams are
// dropped without a reply.
func (r *Responder) HandlePacket(b []byte, from netip.AddrPort) {
	h, _, err := sqp.DecodeHeader(b, 0)
	if err != nil {
		r.drop(metrics.ReasonMalformed, from, err)
		return
	}

	switch h.Type {
	case sqp.ChallengeRequest:
		r.handleChallenge(from)
	case sqp.QueryRequest:
		r.handleQuery(b, from)
	default:
		r.drop(metrics.ReasonUnknownType, from, nil)
	}
}

func (r *Responder) handleChallenge(from netip.AddrPort) {
	tok := r.tokens.Issue(from)

	r.out.Reset()
	sqp.ChallengeResponseMessage{Header: sqp.Header{ChallengeID: tok}}.Encode(r.out)
	if err := r.out.Err(); err != nil {
		r.drop(metrics.ReasonEncode, from, err)
		return
	}

	if !r.send(from) {
		return
	}

	r.metrics.ChallengesIssued.Inc()
	log.Trace().
		Str("remote", from.String()).
		Uint32("token", tok).
		Msg("Challenge issued")
}

// handleQuery serves the ServerInfo chunk to a client holding a valid token.
// A token that does not match is kept so a reordered retry can still succeed,
// and a token is only consumed once a complete response has been built.
func (r *Responder) handleQuery(b []byte, from netip.AddrPort) {
	tok, ok := r.tokens.Lookup(from)
	if !ok {
		r.drop(metrics.ReasonUnauthorized, from, nil)
		return
	}

	req, err := sqp.DecodeQueryRequest(b)
	if err != nil {
		r.drop(metrics.ReasonMalformed, from, err)
		return
	}

	if req.Header.ChallengeID != tok {
		r.drop(metrics.ReasonMismatch, from, nil)
		return
	}

	if !req.RequestedChunks.Has(sqp.ServerInfoChunk) {
		r.drop(metrics.ReasonUnsupported, from, nil)
		return
	}
	if ignored := req.RequestedChunks &^ sqp.ServerInfoChunk; ignored != 0 {
		log.Debug().
			Str("remote", from.String()).
			Stringer("chunks", ignored).
			Msg("Ignoring unsupported SQP chunks")
	}

	r.out.Reset()
	err = sqp.EncodeServerInfoResponse(r.out, sqp.QueryResponseHeader{
		Header:  sqp.Header{ChallengeID: tok},
		Version: req.Version,
	}, r.ServerInfo())
	if err != nil {
		log.Error().Err(err).Str("remote", from.String()).Msg("Failed to build ServerInfo response")
		r.metrics.DatagramsDropped.WithLabelValues(metrics.ReasonEncode).Inc()
		return
	}

	if !r.tokens.ValidateAndConsume(from, tok) {
		r.drop(metrics.ReasonMismatch, from, nil)
		return
	}

	if !r.send(from) {
		return
	}

	r.metrics.QueriesServed.Inc()

	event := log.Debug().
		Str("remote", from.String()).
		Uint16("version", req.Version).
		Int("bytes", r.out.Len())
	if r.locator != nil {
		event = event.Str("country", r.locator.GetCountryCode(from.Addr().String()))
	}
	event.Msg("Query served")
}

// send writes the content of the output buffer to addr.
func (r *Responder) send(addr netip.AddrPort) bool {
	if err := r.transport.SendTo(r.out.Bytes(), addr); err != nil {
		r.metrics.SendErrors.Inc()
		log.Warn().Err(err).Str("remote", addr.String()).Msg("Failed to send SQP response")
		return false
	}

	return true
}

// drop counts a datagram left unanswered and logs it within the drop log budget.
func (r *Responder) drop(reason string, from netip.AddrPort, err error) {
	r.metrics.DatagramsDropped.WithLabelValues(reason).Inc()

	if !r.dropLog.Allow() {
		return
	}

	log.Debug().
		Err(err).
		Str("remote", from.String()).
		Str("reason", reason).
		Msg("SQP datagram dropped")
}
