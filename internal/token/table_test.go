package token

import (
	"math/rand/v2"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientA = netip.MustParseAddrPort("192.0.2.1:50000")
	clientB = netip.MustParseAddrPort("192.0.2.1:50001")
)

func newTestTable(opts ...Option) *Table {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return New(opts...)
}

func TestIssueAndConsume(t *testing.T) {
	tbl := newTestTable()

	tok := tbl.Issue(clientA)
	got, ok := tbl.Lookup(clientA)
	require.True(t, ok)
	assert.Equal(t, tok, got)

	assert.True(t, tbl.ValidateAndConsume(clientA, tok))
	assert.False(t, tbl.ValidateAndConsume(clientA, tok), "token is single use")

	_, ok = tbl.Lookup(clientA)
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}

func TestMismatchLeavesTokenIntact(t *testing.T) {
	tbl := newTestTable()
	tok := tbl.Issue(clientA)

	assert.False(t, tbl.ValidateAndConsume(clientA, tok+1))
	assert.False(t, tbl.ValidateAndConsume(clientB, tok), "token is bound to the address and port")
	assert.Equal(t, 1, tbl.Len())
	assert.True(t, tbl.ValidateAndConsume(clientA, tok))
}

func TestUnknownAddress(t *testing.T) {
	tbl := newTestTable()
	assert.False(t, tbl.ValidateAndConsume(clientA, 0))
	assert.Zero(t, tbl.Len())
}

func TestReissueReplaces(t *testing.T) {
	tbl := newTestTable()

	first := tbl.Issue(clientA)
	second := tbl.Issue(clientA)
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, tbl.Len())

	assert.False(t, tbl.ValidateAndConsume(clientA, first))
	assert.True(t, tbl.ValidateAndConsume(clientA, second))
}

func TestTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := newTestTable(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	tokA := tbl.Issue(clientA)
	now = now.Add(30 * time.Second)
	tbl.Issue(clientB)

	now = now.Add(45 * time.Second)
	_, ok := tbl.Lookup(clientA)
	assert.False(t, ok)
	assert.False(t, tbl.ValidateAndConsume(clientA, tokA))

	assert.Equal(t, 1, tbl.Sweep())
	assert.Equal(t, 1, tbl.Len())

	_, ok = tbl.Lookup(clientB)
	assert.True(t, ok)
}

func TestSweepWithoutTTL(t *testing.T) {
	tbl := newTestTable()
	tbl.Issue(clientA)
	assert.Zero(t, tbl.Sweep())
	assert.Equal(t, 1, tbl.Len())
}

func TestConcurrentAccess(t *testing.T) {
	tbl := New()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}), 27015)
			for range 100 {
				tok := tbl.Issue(addr)
				assert.True(t, tbl.ValidateAndConsume(addr, tok))
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, tbl.Len())
}
