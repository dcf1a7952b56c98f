package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/query"
)

// historyWriteTimeout bounds one history database write.
const historyWriteTimeout = 5 * time.Second

// observe queues a successful info answer for the server history.
// Servers recorded within historyRefresh are skipped.
func (s *Server) observe(ep query.Endpoint, res query.Result) {
	if !res.Info.Ok() {
		return
	}

	now := time.Now()
	key := ep.Key()

	// Soft Limit
	if val, ok := s.seenCache.Load(key); ok {
		if lastSeen, ok := val.(time.Time); ok && now.Sub(lastSeen) < s.historyRefresh {
			log.Trace().Str("endpoint", key).Msg("History write skipped by soft limit")
			return
		}
	}
	s.seenCache.Store(key, now)

	job := historyJob{ep: ep, info: res.Info.Value, ping: -1, seen: now}
	if res.Ping != nil {
		job.ping = int(*res.Ping)
	}

	select {
	case s.history <- job:
	default:
		log.Warn().Str("endpoint", key).Msg("History queue full, sighting dropped")
	}
}

// historyWorker is a background goroutine that processes jobs from the history queue.
func (s *Server) historyWorker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.history:
			s.processHistory(job)
		case <-s.shutdown:
			// Drain what is already queued
			for {
				select {
				case job := <-s.history:
					s.processHistory(job)
				default:
					return
				}
			}
		}
	}
}

// processHistory resolves the country of the server and upserts the sighting.
func (s *Server) processHistory(job historyJob) {
	var country string
	if s.geoip != nil {
		country = s.geoip.CountryCode(job.ep.Host)
	}

	record := models.ServerRecord{
		Host:        job.ep.Host,
		Port:        int(job.ep.Port),
		CountryCode: country,
		Hostname:    job.info.Hostname,
		Gamemode:    job.info.Gamemode,
		Language:    job.info.Language,
		Players:     int(job.info.Players),
		MaxPlayers:  int(job.info.MaxPlayers),
		Password:    job.info.Password,
		Ping:        job.ping,
		FirstSeen:   job.seen,
		LastSeen:    job.seen,
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := s.storage.UpsertServer(ctx, record); err != nil {
		log.Error().Err(err).Str("endpoint", job.ep.Key()).Msg("Failed to save server to history")
		return
	}

	log.Trace().
		Str("endpoint", job.ep.Key()).
		Str("country", country).
		Msg("Server history saved")
}
