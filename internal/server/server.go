// Package server implements the local RPC server, middleware, request handlers
// and background workers of the launcher.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/config"
	"github.com/woozymasta/omp-launcher/internal/geoip"
	"github.com/woozymasta/omp-launcher/internal/launcher"
	"github.com/woozymasta/omp-launcher/internal/storage"
)

// gcInterval is how often the soft-limit cache and the query throttles are cleaned.
const gcInterval = time.Minute

// pruner is implemented by queriers that keep per-endpoint state.
type pruner interface {
	Prune(maxAge time.Duration) int
}

// New creates a new Server instance with the provided storage, GeoIP provider,
// query client, game launcher and configuration.
func New(store *storage.Repository, geo geoip.Lookup, q Querier, gl launcher.GameLauncher, cfg *config.Config) *Server {
	origins := make(map[uint64]struct{})
	for _, origin := range cfg.Server.AllowedOrigins {
		hash := xxhash.Sum64String(origin)
		origins[hash] = struct{}{}
	}

	launchQueue := max(cfg.Server.LaunchQueue, 1)
	historyWorkers := max(cfg.Server.HistoryWorkers, 1)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		query:          q,
		launcher:       gl,
		storage:        store,
		geoip:          geo,
		allowedOrigins: origins,
		maxBody:        cfg.Server.MaxBodySize,
		historyWorkers: historyWorkers,
		historyRefresh: cfg.Server.HistoryRefresh,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		pruneAge:       max(cfg.Query.RateLimit, cfg.Query.ExtraInfoCooldown),

		launches: make(chan launchJob, launchQueue),
		history:  make(chan historyJob, 256),
		ctx:      ctx,
		cancel:   cancel,
		shutdown: make(chan struct{}),
	}

	s.rpc = map[string]http.HandlerFunc{
		"query_server":                  s.handleQueryServer,
		"request_server_info":           s.handleServerInfo,
		"request_server_players":        s.handleServerPlayers,
		"request_server_rules":          s.handleServerRules,
		"request_server_omp_extra_info": s.handleServerExtraInfo,
		"ping_server":                   s.handlePingServer,
		"inject":                        s.handleInject,
	}
	s.syncRPC = map[string]http.HandlerFunc{
		"storage_get_item":      s.handleStorageGetItem,
		"storage_set_item":      s.handleStorageSetItem,
		"storage_remove_item":   s.handleStorageRemoveItem,
		"storage_get_all_items": s.handleStorageGetAllItems,
		"storage_clear":         s.handleStorageClear,
	}

	return s
}

// StartWorkers initializes the launch worker, the history worker pool and the
// cache cleanup routine.
func (s *Server) StartWorkers() {
	s.wg.Add(1)
	go s.launchWorker()

	for i := 0; i < s.historyWorkers; i++ {
		s.wg.Add(1)
		go s.historyWorker()
	}

	// Clean soft-limit cache and query throttles
	go s.gcLoop()
}

// StopWorkers aborts a running launch, drains the history queue and waits for
// the workers to exit. The HTTP server must be shut down first.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.cancel()
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /rpc/{method}", http.HandlerFunc(s.handleRPC))
	mux.Handle("POST /sync_rpc/{method}", http.HandlerFunc(s.handleSyncRPC))
	mux.Handle("GET /api/servers", http.HandlerFunc(s.handleServers))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	return s.LoggingMiddleware(s.OriginMiddleware(s.RateLimitMiddleware(mux)))
}

// gcLoop periodically cleans up expired entries from the soft-limit cache and
// prunes the query throttles.
func (s *Server) gcLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.gc(time.Now())
		}
	}
}

func (s *Server) gc(now time.Time) {
	s.seenCache.Range(func(key, value any) bool {
		if t, ok := value.(time.Time); !ok || now.Sub(t) > s.historyRefresh {
			s.seenCache.Delete(key)
		}
		return true
	})

	if p, ok := s.query.(pruner); ok {
		if n := p.Prune(s.pruneAge); n > 0 {
			log.Trace().Int("entries", n).Msg("Query throttles pruned")
		}
	}
}
