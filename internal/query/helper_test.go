package query

import (
	"encoding/binary"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// responder is a minimal query server on the loopback interface.
type responder struct {
	conn     net.PacketConn
	handle   func(req []byte) []byte
	received atomic.Int32
}

func newResponder(t *testing.T, handle func(req []byte) []byte) *responder {
	t.Helper()

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	r := &responder{conn: pc, handle: handle}
	go r.serve()

	return r
}

func (r *responder) serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		r.received.Add(1)

		req := append([]byte(nil), buf[:n]...)
		if resp := r.handle(req); resp != nil {
			_, _ = r.conn.WriteTo(resp, addr)
		}
	}
}

func (r *responder) endpoint() Endpoint {
	addr := r.conn.LocalAddr().(*net.UDPAddr)
	return Endpoint{Host: "127.0.0.1", Port: uint16(addr.Port)}
}

type serverState struct {
	info    Info
	players []Player
	rules   []Rule
	extra   ExtraInfo
	// raw payloads override the encoded state per wire tag
	raw map[byte][]byte
}

func (s serverState) handler() func(req []byte) []byte {
	return func(req []byte) []byte {
		if len(req) < HeaderSize {
			return nil
		}

		if payload, ok := s.raw[req[tagOffset]]; ok {
			return EncodeResponse(req, payload)
		}

		switch req[tagOffset] {
		case 'i':
			return EncodeResponse(req, AppendInfo(nil, s.info))
		case 'c':
			return EncodeResponse(req, AppendPlayers(nil, s.players))
		case 'r':
			return EncodeResponse(req, AppendRules(nil, s.rules))
		case 'o':
			return EncodeResponse(req, AppendExtraInfo(nil, s.extra))
		case 'p':
			return req
		}

		return nil
	}
}

func silent(req []byte) []byte { return nil }

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.now.Store(time.Unix(1700000000, 0).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.now.Load())
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

func testClient(t *testing.T, opts Options) (*Client, *fakeClock) {
	t.Helper()

	if opts.Timeout == 0 {
		opts.Timeout = 500 * time.Millisecond
	}

	c := New(opts)
	clock := newFakeClock()
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })

	return c, clock
}

func playerCountPayload(count uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, count)
}
