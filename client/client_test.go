package client

import (
	"bytes"
	"context"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RenatoUtsch/redes-tp3/protocol"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

const testTimeout = 150 * time.Millisecond

// fakeServent receives CLIREQs and lets the test decide how to answer each one.
type fakeServent struct {
	conn     *transport.UDP
	clireqs  atomic.Int32
	wg       sync.WaitGroup
	keysSeen chan string
}

func startFakeServent(t *testing.T, reply func(n int32, key string, from *transport.UDP, to netip.AddrPort)) *fakeServent {
	t.Helper()
	conn, err := transport.ListenUDP("127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServent{conn: conn, keysSeen: make(chan string, 16)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]byte, protocol.MaxServerMessageSize)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			key, err := protocol.Codec{Strict: true}.DecodeClireq(buf[:n])
			if err != nil {
				continue
			}
			count := s.clireqs.Add(1)
			s.keysSeen <- key
			if reply != nil {
				reply(count, key, conn, from)
			}
		}
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		s.wg.Wait()
	})
	return s
}

func newTestClient(t *testing.T, s *fakeServent) *Client {
	t.Helper()
	c, err := New(Config{Server: s.conn.LocalAddr(), Timeout: testTimeout})
	require.NoError(t, err)
	return c
}

func listenPeer(t *testing.T) *transport.UDP {
	t.Helper()
	conn, err := transport.ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewRequiresServer(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrServerRequired)
}

func TestLookupCollectsResponsesFromSeveralServents(t *testing.T) {
	peerA := listenPeer(t)
	peerB := listenPeer(t)

	s := startFakeServent(t, func(_ int32, key string, self *transport.UDP, to netip.AddrPort) {
		_, _ = self.WriteTo(protocol.EncodeResponse(key, "from-entry"), to)
		_, _ = peerA.WriteTo(protocol.EncodeResponse(key, "from-a"), to)
		_, _ = peerB.WriteTo(protocol.EncodeResponse(key, "from-b"), to)
	})
	c := newTestClient(t, s)

	var streamed []Result
	results, err := c.Lookup(context.Background(), "foo", func(r Result) {
		streamed = append(streamed, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, results, streamed)

	byFrom := make(map[netip.AddrPort]string)
	for _, r := range results {
		assert.Equal(t, "foo", r.Response.Key)
		byFrom[r.From] = r.Response.Value
	}
	assert.Equal(t, "from-entry", byFrom[s.conn.LocalAddr()])
	assert.Equal(t, "from-a", byFrom[peerA.LocalAddr()])
	assert.Equal(t, "from-b", byFrom[peerB.LocalAddr()])

	// answered on the first try, no resend
	assert.Equal(t, int32(1), s.clireqs.Load())
	assert.Equal(t, "foo", <-s.keysSeen)
}

func TestLookupRetriesOnceAfterTimeout(t *testing.T) {
	s := startFakeServent(t, func(n int32, key string, self *transport.UDP, to netip.AddrPort) {
		if n == 2 {
			_, _ = self.WriteTo(protocol.EncodeResponse(key, "second try"), to)
		}
	})
	c := newTestClient(t, s)

	results, err := c.Lookup(context.Background(), "foo", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second try", results[0].Response.Value)
	assert.Equal(t, int32(2), s.clireqs.Load())
}

func TestLookupTimesOutWithNothing(t *testing.T) {
	s := startFakeServent(t, nil)
	c := newTestClient(t, s)

	start := time.Now()
	results, err := c.Lookup(context.Background(), "missing", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.GreaterOrEqual(t, elapsed, 2*testTimeout)

	// exactly one resend, no more
	require.Eventually(t, func() bool { return s.clireqs.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(testTimeout)
	assert.Equal(t, int32(2), s.clireqs.Load())
}

func TestLookupSkipsUndecodableDatagrams(t *testing.T) {
	s := startFakeServent(t, func(_ int32, key string, self *transport.UDP, to netip.AddrPort) {
		_, _ = self.WriteTo([]byte{7}, to)
		_, _ = self.WriteTo(protocol.EncodeResponse(key, "ok"), to)
	})
	c := newTestClient(t, s)

	results, err := c.Lookup(context.Background(), "foo", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Response.Value)
}

func TestLookupStopsOnCancel(t *testing.T) {
	s := startFakeServent(t, nil)
	c, err := New(Config{Server: s.conn.LocalAddr(), Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = c.Lookup(ctx, "foo", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunPrintsEveryResponse(t *testing.T) {
	s := startFakeServent(t, func(_ int32, key string, self *transport.UDP, to netip.AddrPort) {
		if key == "foo" {
			_, _ = self.WriteTo(protocol.EncodeResponse("foo", "bar"), to)
		}
	})
	c := newTestClient(t, s)

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), NewSliceSource("foo", "nothing"), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Querying servents for key...", lines[0])
	assert.Equal(t, s.conn.LocalAddr().String()+": foo\tbar", lines[1])
	assert.Equal(t, "Querying servents for key...", lines[2])
}

func TestLineSource(t *testing.T) {
	var prompt bytes.Buffer
	src := NewLineSource(strings.NewReader("foo\r\n\n  \nbar baz\n"), &prompt)

	key, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, "foo", key)

	key, ok = src.Next()
	require.True(t, ok)
	assert.Equal(t, "bar baz", key)

	_, ok = src.Next()
	assert.False(t, ok)
	assert.Equal(t, 5, strings.Count(prompt.String(), "-- Key: "))
}

func TestSliceSourceReset(t *testing.T) {
	src := NewSliceSource("a", "b")
	var got []string
	for key, ok := src.Next(); ok; key, ok = src.Next() {
		got = append(got, key)
	}
	src.Reset()
	key, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, []string{"a", "b"}, got)
}
