// Package query implements a client for the SA-MP / open.mp UDP query protocol.
//
// A Client answers aggregate queries (any subset of info, players, rules,
// extra-info and ping) against one server at a time. It throttles repeated queries
// per endpoint, cools down the extra-info sub-query, and reuses a single cached UDP
// session for consecutive queries to the same endpoint. Failures of one category
// never abort the others; they are embedded in the result instead.
package query

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/textdec"
)

// Client defaults.
const (
	DefaultRateLimit         = 500 * time.Millisecond
	DefaultExtraInfoCooldown = 3 * time.Second
)

// Options configures a Client.
type Options struct {
	// Resolver looks up host names; nil uses net.DefaultResolver.
	Resolver *net.Resolver
	// Decoder converts protocol strings to text; nil uses textdec.New().
	Decoder textdec.Decoder
	// Timeout bounds every receive.
	Timeout time.Duration
	// RateLimit is the minimum interval between aggregate queries to one endpoint.
	RateLimit time.Duration
	// ExtraInfoCooldown is the minimum interval between extra-info sub-queries to one endpoint.
	ExtraInfoCooldown time.Duration
	// BufferSize is the receive buffer size in bytes.
	BufferSize int
}

// DefaultOptions returns the options used by the launcher out of the box.
func DefaultOptions() Options {
	return Options{
		Timeout:           DefaultTimeout,
		RateLimit:         DefaultRateLimit,
		ExtraInfoCooldown: DefaultExtraInfoCooldown,
		BufferSize:        DefaultBufferSize,
	}
}

// Client is the query subsystem context: it owns the throttles and the session cache.
type Client struct {
	open     openFunc
	now      func() time.Time
	limiter  *Throttle
	cooldown *Throttle
	cache    sessionCache
	opts     Options
}

// New creates a Client.
func New(opts Options) *Client {
	codec := NewCodec(opts.Decoder)
	sessOpts := SessionOptions{
		Resolver:   opts.Resolver,
		Codec:      codec,
		Timeout:    opts.Timeout,
		BufferSize: opts.BufferSize,
	}

	return &Client{
		open: func(ctx context.Context, ep Endpoint) (*Session, error) {
			return Open(ctx, ep, sessOpts)
		},
		now:      time.Now,
		limiter:  NewThrottle(opts.RateLimit),
		cooldown: NewThrottle(opts.ExtraInfoCooldown),
		opts:     opts,
	}
}

// Query answers an aggregate query for the requested categories.
// A query rejected by the rate limiter returns a Result with Rejected set and
// sends nothing.
func (c *Client) Query(ctx context.Context, ep Endpoint, cats Categories) Result {
	key := ep.Key()
	now := c.now()

	if !c.limiter.Allow(key, now) {
		log.Trace().Str("endpoint", key).Msg("Query dropped by rate limit")
		return Result{Rejected: &Failure{
			Error: true,
			Info:  fmt.Sprintf("rate limit exceeded for %s", key),
		}}
	}

	if cats.Has(CategoryExtraInfo) && !c.cooldown.Allow(key, now) {
		log.Trace().Str("endpoint", key).Msg("Extra info on cooldown")
		cats = cats.Without(CategoryExtraInfo)
	}

	var res Result
	if cats == 0 {
		return res
	}

	sess, err := c.cache.get(ctx, ep, c.open)
	if err != nil {
		log.Debug().Err(err).Str("endpoint", key).Msg("Failed to open query session")
		fillFailed(&res, cats, err)
		return res
	}

	for _, tag := range Tags {
		if !cats.Has(tag.Category()) {
			continue
		}

		var (
			resp Response
			rtt  time.Duration
		)
		resp, rtt, sess, err = c.request(ctx, ep, sess, tag)
		if err != nil {
			log.Debug().
				Err(err).
				Str("endpoint", key).
				Str("type", tag.String()).
				Msg("Query failed")
		}

		switch tag {
		case TagInfo:
			res.Info = newField(deref(resp.Info), err)
		case TagPlayers:
			res.Players = newField(resp.Players, err)
		case TagRules:
			res.Rules = newField(resp.Rules, err)
		case TagExtraInfo:
			res.ExtraInfo = newField(deref(resp.ExtraInfo), err)
		case TagPing:
			ping := PingTimeout
			if err == nil {
				ping = pingMillis(rtt)
			}
			res.Ping = &ping
		}
	}

	return res
}

// Ping measures the round trip time to ep in milliseconds, PingTimeout on failure.
func (c *Client) Ping(ctx context.Context, ep Endpoint) uint32 {
	res := c.Query(ctx, ep, CategoryPing)
	if res.Ping == nil {
		return PingTimeout
	}

	return *res.Ping
}

// Close closes the cached session.
func (c *Client) Close() error {
	return c.cache.close()
}

// Prune drops throttle entries that can no longer affect a decision.
func (c *Client) Prune(maxAge time.Duration) int {
	now := c.now()
	return c.limiter.Prune(now, maxAge) + c.cooldown.Prune(now, maxAge)
}

// request performs one exchange. When the request could not even be sent on the
// given session, the session is dropped and the exchange is retried once on a
// freshly opened one.
func (c *Client) request(ctx context.Context, ep Endpoint, sess *Session, tag Tag) (Response, time.Duration, *Session, error) {
	resp, rtt, sent, err := sess.exchange(ctx, tag)
	if err == nil || sent {
		return resp, rtt, sess, err
	}

	log.Debug().Err(err).Str("endpoint", sess.Key()).Msg("Cached query session failed, reopening")
	c.cache.drop(sess)

	fresh, openErr := c.cache.get(ctx, ep, c.open)
	if openErr != nil {
		return Response{}, 0, sess, openErr
	}

	resp, rtt, _, err = fresh.exchange(ctx, tag)
	return resp, rtt, fresh, err
}

func fillFailed(res *Result, cats Categories, err error) {
	if cats.Has(CategoryInfo) {
		res.Info = newField(Info{}, err)
	}
	if cats.Has(CategoryPlayers) {
		res.Players = newField[[]Player](nil, err)
	}
	if cats.Has(CategoryRules) {
		res.Rules = newField[[]Rule](nil, err)
	}
	if cats.Has(CategoryExtraInfo) {
		res.ExtraInfo = newField(ExtraInfo{}, err)
	}
	if cats.Has(CategoryPing) {
		ping := PingTimeout
		res.Ping = &ping
	}
}

func pingMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms >= int64(PingTimeout) {
		return PingTimeout
	}

	return uint32(ms)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}
