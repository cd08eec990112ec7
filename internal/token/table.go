// Package token issues and validates SQP challenge tokens, one outstanding
// token per client address.
package token

import (
	"math/rand/v2"
	"net/netip"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 16

// Table tracks the outstanding challenge token of every client address.
// It is safe for concurrent use; every mutation of an address happens under
// the lock of the shard that owns it.
type Table struct {
	shards [shardCount]shard

	// ttl is the lifetime of an issued token, zero means tokens never expire.
	ttl time.Duration

	now func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

type shard struct {
	mu      sync.Mutex
	pending map[netip.AddrPort]entry
}

type entry struct {
	issued time.Time
	token  uint32
}

// Option configures a Table.
type Option func(*Table)

// WithTTL sets the token lifetime. Tokens older than ttl never validate and
// are removed by Sweep.
func WithTTL(ttl time.Duration) Option {
	return func(t *Table) { t.ttl = ttl }
}

// WithRand replaces the random source, mainly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(t *Table) { t.rand = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// New creates an empty table.
func New(opts ...Option) *Table {
	t := &Table{
		now:  time.Now,
		rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for i := range t.shards {
		t.shards[i].pending = make(map[netip.AddrPort]entry)
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Table) shard(addr netip.AddrPort) *shard {
	key, _ := addr.MarshalBinary()
	return &t.shards[xxhash.Sum64(key)%shardCount]
}

// next returns a token whose high 30 and low 2 bits are drawn separately.
func (t *Table) next() uint32 {
	t.randMu.Lock()
	defer t.randMu.Unlock()

	high := t.rand.Uint32N(1 << 30)
	low := t.rand.Uint32N(1 << 2)
	return high<<2 | low
}

func (t *Table) expired(e entry, now time.Time) bool {
	return t.ttl > 0 && now.Sub(e.issued) > t.ttl
}

// Issue generates a token for addr, replacing any token still outstanding.
func (t *Table) Issue(addr netip.AddrPort) uint32 {
	tok := t.next()

	s := t.shard(addr)
	s.mu.Lock()
	s.pending[addr] = entry{token: tok, issued: t.now()}
	s.mu.Unlock()

	return tok
}

// Lookup returns the outstanding token of addr without consuming it.
func (t *Table) Lookup(addr netip.AddrPort) (uint32, bool) {
	s := t.shard(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[addr]
	if !ok || t.expired(e, t.now()) {
		return 0, false
	}

	return e.token, true
}

// ValidateAndConsume removes the token of addr and returns true if it equals
// presented. Otherwise the table is left untouched and false is returned.
func (t *Table) ValidateAndConsume(addr netip.AddrPort, presented uint32) bool {
	s := t.shard(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[addr]
	if !ok || e.token != presented || t.expired(e, t.now()) {
		return false
	}

	delete(s.pending, addr)
	return true
}

// Sweep removes expired tokens and returns how many were dropped.
// It does nothing when no TTL is configured.
func (t *Table) Sweep() int {
	if t.ttl <= 0 {
		return 0
	}

	now := t.now()
	dropped := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for addr, e := range s.pending {
			if t.expired(e, now) {
				delete(s.pending, addr)
				dropped++
			}
		}
		s.mu.Unlock()
	}

	return dropped
}

// Len returns the number of outstanding tokens, expired ones included until swept.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}

	return n
}
