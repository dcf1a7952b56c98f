// Package maintenance provide tools for clean and update the server history
package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/config"
	"github.com/woozymasta/omp-launcher/internal/game"
	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/query"
	"github.com/woozymasta/omp-launcher/internal/storage"
)

// Options configures a re-check run.
type Options struct {
	Session query.SessionOptions
	Workers int
}

// Summary counts the outcome of a re-check run.
type Summary struct {
	Updated int
	Deleted int
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneStale > 0 {
		log.Info().Dur("older_than", cfg.Storage.PruneStale).Msg("Pruning stale servers...")

		count, err := Prune(ctx, store, cfg.Storage.PruneStale)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	var (
		servers  []models.ServerRecord
		err      error
		taskName string
	)

	switch {
	case cfg.Storage.CheckStale > 0:
		taskName = "Check Stale"
		log.Info().Dur("older_than", cfg.Storage.CheckStale).Msg("Fetching stale servers for check...")
		servers, err = store.GetStaleServers(ctx, time.Now().Add(-cfg.Storage.CheckStale))
	case cfg.Storage.CheckAll:
		taskName = "Check All"
		log.Info().Msg("Fetching all servers for re-check...")
		servers, err = store.GetServers(ctx)
	default:
		return false
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	opts := Options{
		Session: query.SessionOptions{
			Timeout:    cfg.Query.Timeout,
			BufferSize: cfg.Query.BufferSize,
		},
		Workers: cfg.Storage.Workers,
	}

	log.Info().Int("count", len(servers)).Int("workers", opts.Workers).Msgf("Starting '%s' task...", taskName)
	sum := Check(ctx, store, servers, opts)
	log.Info().Int("updated", sum.Updated).Int("deleted", sum.Deleted).Msg("Maintenance task completed")

	return true
}

// Prune deletes servers not seen within olderThan.
func Prune(ctx context.Context, store *storage.Repository, olderThan time.Duration) (int64, error) {
	return store.DeleteStaleServers(ctx, time.Now().Add(-olderThan))
}

// Check probes every server with a worker pool. Servers that answer are
// refreshed, servers that do not (or carry an invalid port) are deleted.
func Check(ctx context.Context, store *storage.Repository, servers []models.ServerRecord, opts Options) Summary {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan models.ServerRecord, len(servers))
	var (
		wg      sync.WaitGroup
		updated atomic.Int64
		deleted atomic.Int64
	)

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if processServer(ctx, s, store, opts.Session) {
					updated.Add(1)
				} else {
					deleted.Add(1)
				}
			}
		}()
	}

	// Send jobs
	for _, s := range servers {
		jobs <- s
	}
	close(jobs)

	wg.Wait()

	return Summary{Updated: int(updated.Load()), Deleted: int(deleted.Load())}
}

// processServer returns true when the server was refreshed.
func processServer(ctx context.Context, s models.ServerRecord, store *storage.Repository, sessOpts query.SessionOptions) bool {
	logCtx := log.With().
		Str("ip", s.Host).
		Int("port", s.Port).
		Logger()

	if s.Port <= 0 || s.Port > 65535 {
		logCtx.Debug().Msg("Invalid port, deleting server")
		if err := store.DeleteServer(ctx, s.Host, s.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to delete invalid server")
		}
		return false
	}

	status, err := game.Probe(ctx, query.Endpoint{Host: s.Host, Port: uint16(s.Port)}, sessOpts)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable, deleting")
		if err := store.DeleteServer(ctx, s.Host, s.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to delete unreachable server")
		}
		return false
	}

	s.Hostname = status.Info.Hostname
	s.Gamemode = status.Info.Gamemode
	s.Language = status.Info.Language
	s.Players = int(status.Info.Players)
	s.MaxPlayers = int(status.Info.MaxPlayers)
	s.Password = status.Info.Password
	s.Ping = int(status.Ping)
	s.LastSeen = time.Now()

	if err := store.UpsertServer(ctx, s); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
	} else {
		logCtx.Trace().Msg("Server updated successfully")
	}

	return true
}
