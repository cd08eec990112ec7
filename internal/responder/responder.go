// Package responder answers SQP challenge and query requests arriving on a
// non-blocking datagram transport.
package responder

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sqpd/internal/metrics"
	"github.com/woozymasta/sqpd/internal/sqp"
	"github.com/woozymasta/sqpd/internal/token"
	"github.com/woozymasta/sqpd/internal/transport"
	"golang.org/x/time/rate"
)

// Transport is the datagram socket the responder reads from and answers on.
// ReceiveFrom must not block: it returns transport.ErrWouldBlock when no
// datagram is queued.
type Transport interface {
	ReceiveFrom(buf []byte) (int, netip.AddrPort, error)
	SendTo(b []byte, addr netip.AddrPort) error
	Close() error
}

// Locator resolves a client IP to a country code for logging.
type Locator interface {
	GetCountryCode(ip string) string
}

// Responder owns the pending token table, the reported server info and the
// buffers used to read requests and build responses.
//
// Update, HandlePacket and Serve must be called from a single goroutine.
// SetServerInfo may be called from any goroutine.
type Responder struct {
	// transport is the bound socket, released by Close.
	transport Transport

	// tokens holds the outstanding challenge token of every client.
	tokens *token.Table

	// info is the snapshot reported in ServerInfo responses.
	info atomic.Pointer[sqp.ServerInfo]

	// in receives datagrams, out is reused to build every response.
	in  []byte
	out *sqp.Writer

	metrics *metrics.Metrics

	// locator is optional; when set served queries are logged with a country.
	locator Locator

	// dropLog throttles debug logging of dropped datagrams.
	dropLog *rate.Limiter

	// sweepEvery is how often Serve removes expired tokens.
	sweepEvery time.Duration
}

// Option configures a Responder.
type Option func(*Responder)

// WithTokens replaces the default token table.
func WithTokens(t *token.Table) Option {
	return func(r *Responder) { r.tokens = t }
}

// WithMetrics reports counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Responder) { r.metrics = m }
}

// WithLocator annotates served query logs with the client country.
func WithLocator(l Locator) Option {
	return func(r *Responder) { r.locator = l }
}

// WithDropLogLimit sets how many dropped datagrams per second are logged.
func WithDropLogLimit(perSecond float64, burst int) Option {
	return func(r *Responder) { r.dropLog = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithSweepInterval sets how often Serve sweeps expired tokens.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Responder) { r.sweepEvery = d }
}

// New creates a responder answering on t with info as the initial server info.
func New(t Transport, info sqp.ServerInfo, opts ...Option) *Responder {
	r := &Responder{
		transport:  t,
		in:         make([]byte, sqp.MaxPacketSize),
		out:        sqp.NewWriter(make([]byte, sqp.MaxPacketSize)),
		dropLog:    rate.NewLimiter(10, 20),
		sweepEvery: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.tokens == nil {
		r.tokens = token.New()
	}
	if r.metrics == nil {
		r.metrics = metrics.New(nil)
	}
	if r.sweepEvery <= 0 {
		r.sweepEvery = 10 * time.Second
	}
	r.SetServerInfo(info)

	return r
}

// SetServerInfo replaces the server info reported to clients.
// The change is visible to the next response built.
func (r *Responder) SetServerInfo(info sqp.ServerInfo) {
	r.info.Store(&info)
}

// ServerInfo returns the current server info snapshot.
func (r *Responder) ServerInfo() sqp.ServerInfo {
	return *r.info.Load()
}

// Tokens returns the pending token table.
func (r *Responder) Tokens() *token.Table {
	return r.tokens
}

// Update drains every datagram currently queued on the transport and answers
// each one. It returns nil once the transport would block; any other read
// error is returned to the caller.
func (r *Responder) Update() error {
	for {
		n, from, err := r.transport.ReceiveFrom(r.in)
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				return nil
			}
			log.Warn().Err(err).Msg("SQP socket read failed")
			return fmt.Errorf("sqp receive: %w", err)
		}

		r.metrics.DatagramsReceived.Inc()
		r.HandlePacket(r.in[:n], from)
	}
}

// Serve calls Update every tick until ctx is done or Update fails.
// Expired tokens are swept on their own interval.
func (r *Responder) Serve(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return fmt.Errorf("invalid update interval %s", tick)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sweep := time.NewTicker(r.sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if err := r.Update(); err != nil {
				return err
			}

		case <-sweep.C:
			if n := r.tokens.Sweep(); n > 0 {
				r.metrics.TokensExpired.Add(float64(n))
				log.Trace().Int("count", n).Msg("Expired challenge tokens swept")
			}
			r.metrics.PendingTokens.Set(float64(r.tokens.Len()))
		}
	}
}

// Close releases the transport.
func (r *Responder) Close() error {
	return r.transport.Close()
}
