package query

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// Session defaults.
const (
	DefaultTimeout    = 2 * time.Second
	DefaultBufferSize = 1500
)

var ipv4Pattern = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Resolver looks up host names; nil uses net.DefaultResolver.
	Resolver *net.Resolver
	// Codec decodes replies; nil uses the default codec.
	Codec *Codec
	// Timeout bounds every receive.
	Timeout time.Duration
	// BufferSize is the receive buffer size in bytes.
	BufferSize int
}

// Session owns one UDP socket connected to a single server endpoint.
// Exchanges on a session are serialized.
type Session struct {
	conn     *net.UDPConn
	codec    *Codec
	endpoint Endpoint
	key      string
	timeout  time.Duration
	bufSize  int
	mu       sync.Mutex
	closed   atomic.Bool
	addr     [4]byte
}

// Open resolves the endpoint to an IPv4 address, binds an ephemeral UDP socket
// and connects it to the server.
func Open(ctx context.Context, ep Endpoint, opts SessionOptions) (*Session, error) {
	addr, err := resolveIPv4(ctx, opts.Resolver, ep.Host)
	if err != nil {
		return nil, err
	}

	raddr := &net.UDPAddr{IP: net.IP(addr[:]), Port: int(ep.Port)}
	conn, err := net.DialUDP("udp4", &net.UDPAddr{IP: net.IPv4zero}, raddr)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "Failed to connect to server", err)
	}

	s := &Session{
		conn:     conn,
		codec:    opts.Codec,
		endpoint: ep,
		key:      ep.Key(),
		timeout:  opts.Timeout,
		bufSize:  opts.BufferSize,
		addr:     addr,
	}
	if s.codec == nil {
		s.codec = NewCodec(nil)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.bufSize < HeaderSize {
		s.bufSize = DefaultBufferSize
	}

	log.Trace().
		Str("endpoint", s.key).
		Str("local", conn.LocalAddr().String()).
		Msg("Query session opened")

	return s, nil
}

// resolveIPv4 accepts a dotted quad as is and otherwise returns the first IPv4
// address the resolver knows for host.
func resolveIPv4(ctx context.Context, resolver *net.Resolver, host string) ([4]byte, error) {
	var out [4]byte

	if ipv4Pattern.MatchString(host) {
		copy(out[:], net.ParseIP(host).To4())
		return out, nil
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return out, apperr.Wrap(apperr.NotFound, "Failed to resolve hostname", err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			copy(out[:], v4)
			return out, nil
		}
	}

	return out, apperr.New(apperr.NotFound, "No IPv4 address found for hostname")
}

// Endpoint returns the endpoint the session is connected to.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// Key returns the cache key of the session endpoint.
func (s *Session) Key() string {
	return s.key
}

// Send transmits one request and returns the number of bytes written.
func (s *Session) Send(tag Tag) (int, error) {
	n, err := s.conn.Write(EncodeRequest(s.addr, s.endpoint.Port, tag))
	if err != nil {
		return n, apperr.Wrap(apperr.Network, "Failed to send packet", err)
	}

	return n, nil
}

// Recv waits for the reply to a tag request. Packets for another endpoint or
// late replies to an earlier query type are skipped until the deadline.
func (s *Session) Recv(ctx context.Context, tag Tag) (Response, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return Response{}, apperr.Wrap(apperr.Network, "Failed to set read deadline", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	expect := EncodeRequest(s.addr, s.endpoint.Port, tag)[:HeaderSize]
	buf := make([]byte, s.bufSize)

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, apperr.Wrap(apperr.Network, "Query cancelled", ctx.Err())
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return Response{}, apperr.New(apperr.Network, "Timed out waiting for response")
			}
			return Response{}, apperr.Wrap(apperr.Network, "Failed to receive packet", err)
		}
		if n == 0 {
			return Response{}, apperr.New(apperr.Network, "no_data")
		}

		packet := buf[:n]
		if n >= HeaderSize && !bytes.Equal(packet[:tagOffset], expect[:tagOffset]) {
			log.Trace().Str("endpoint", s.key).Msg("Dropped reply with foreign header")
			continue
		}
		if n >= HeaderSize && packet[tagOffset] != expect[tagOffset] {
			if _, known := ParseTag(packet[tagOffset]); known {
				log.Trace().
					Str("endpoint", s.key).
					Str("want", tag.String()).
					Msg("Dropped stale reply")
				continue
			}
		}

		return s.codec.Decode(packet)
	}
}

// Exchange sends one request and waits for its reply while holding the session lock.
// The returned duration is the time between send and reply.
func (s *Session) Exchange(ctx context.Context, tag Tag) (Response, time.Duration, error) {
	resp, rtt, _, err := s.exchange(ctx, tag)
	return resp, rtt, err
}

// exchange additionally reports whether the request left the socket, so the
// caller can tell a dead cached socket from a silent server.
func (s *Session) exchange(ctx context.Context, tag Tag) (Response, time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return Response{}, 0, false, apperr.New(apperr.Network, "Query session closed")
	}

	if _, err := s.Send(tag); err != nil {
		return Response{}, 0, false, err
	}
	start := time.Now()

	resp, err := s.Recv(ctx, tag)
	return resp, time.Since(start), true, err
}

// Close releases the socket once any in-flight exchange has completed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	log.Trace().Str("endpoint", s.key).Msg("Query session closed")
	return s.conn.Close()
}

func (s *Session) isClosed() bool {
	return s.closed.Load()
}
