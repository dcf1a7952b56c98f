package fake

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/query"
)

// Server is the state a Responder reports. A nil Extra leaves extra-info
// requests unanswered, like a legacy SA-MP server.
type Server struct {
	Extra   *query.ExtraInfo
	Players []query.Player
	Rules   []query.Rule
	Info    query.Info
}

// Responder answers SA-MP queries on a UDP socket from a fixed Server state.
type Responder struct {
	conn     net.PacketConn
	done     chan struct{}
	server   Server
	mu       sync.RWMutex
	received atomic.Int64
}

// Listen binds addr (for example "127.0.0.1:0") and starts answering queries.
func Listen(addr string, srv Server) (*Responder, error) {
	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, err
	}

	r := &Responder{
		conn:   pc,
		server: srv,
		done:   make(chan struct{}),
	}
	go r.serve()

	log.Debug().Str("address", pc.LocalAddr().String()).Msg("Fake query responder listening")

	return r, nil
}

// Endpoint returns the loopback endpoint the responder listens on.
func (r *Responder) Endpoint() query.Endpoint {
	addr := r.conn.LocalAddr().(*net.UDPAddr)
	host := addr.IP.String()
	if addr.IP.IsUnspecified() {
		host = "127.0.0.1"
	}

	return query.Endpoint{Host: host, Port: uint16(addr.Port)}
}

// Received returns the number of packets read so far.
func (r *Responder) Received() int64 {
	return r.received.Load()
}

// Set replaces the reported state.
func (r *Responder) Set(srv Server) {
	r.mu.Lock()
	r.server = srv
	r.mu.Unlock()
}

// Close stops the responder and waits for the serve loop to exit.
func (r *Responder) Close() error {
	err := r.conn.Close()
	<-r.done

	return err
}

// Done is closed once the serve loop exits.
func (r *Responder) Done() <-chan struct{} {
	return r.done
}

func (r *Responder) serve() {
	defer close(r.done)

	buf := make([]byte, 2048)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		r.received.Add(1)

		if resp := r.answer(buf[:n]); resp != nil {
			if _, err := r.conn.WriteTo(resp, addr); err != nil {
				log.Trace().Err(err).Str("peer", addr.String()).Msg("Fake responder write failed")
			}
		}
	}
}

func (r *Responder) answer(req []byte) []byte {
	if len(req) < query.HeaderSize || string(req[:len(query.Header)]) != string(query.Header) {
		return nil
	}

	tag, ok := query.ParseTag(req[query.HeaderSize-1])
	if !ok {
		return nil
	}

	r.mu.RLock()
	srv := r.server
	r.mu.RUnlock()

	switch tag {
	case query.TagInfo:
		return query.EncodeResponse(req, query.AppendInfo(nil, srv.Info))
	case query.TagPlayers:
		return query.EncodeResponse(req, query.AppendPlayers(nil, srv.Players))
	case query.TagRules:
		return query.EncodeResponse(req, query.AppendRules(nil, srv.Rules))
	case query.TagExtraInfo:
		if srv.Extra == nil {
			return nil
		}
		return query.EncodeResponse(req, query.AppendExtraInfo(nil, *srv.Extra))
	case query.TagPing:
		return append([]byte(nil), req...)
	}

	return nil
}
