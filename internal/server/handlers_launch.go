package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
	"github.com/woozymasta/omp-launcher/internal/launcher"
	"github.com/woozymasta/omp-launcher/internal/models"
)

// handleInject queues a game launch and waits for its outcome: {} on success,
// {"error":true,"info":...} otherwise, with "need_admin" for privilege failures.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams[models.InjectParams](s, w, r)
	if !ok {
		return
	}

	port, err := launcher.ValidatePort(params.Port)
	if err != nil {
		writeFailure(w, apperr.UserMessage(err))
		return
	}

	req := launcher.Request{
		Name:       params.Name,
		Host:       params.IP,
		Port:       port,
		GameDir:    params.Exe,
		Executable: params.CustomGameExe,
		Password:   params.Password,
		Payloads:   []string{params.DLL, params.OMPFile},
	}

	job := launchJob{req: req, done: make(chan error, 1)}

	select {
	case s.launches <- job:
	default:
		log.Warn().Str("server", req.Host).Msg("Launch queue full, request refused")
		writeFailure(w, "launch queue is full")
		return
	}

	select {
	case err := <-job.done:
		if err != nil {
			writeFailure(w, apperr.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	case <-r.Context().Done():
		log.Debug().Str("server", req.Host).Msg("Launch caller went away, launch continues")
	}
}

// launchWorker runs queued launches one at a time.
func (s *Server) launchWorker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.launches:
			s.launch(job)
		case <-s.shutdown:
			for {
				select {
				case job := <-s.launches:
					job.done <- apperr.New(apperr.Process, "Launcher is shutting down")
				default:
					return
				}
			}
		}
	}
}

func (s *Server) launch(job launchJob) {
	if s.ctx.Err() != nil {
		job.done <- apperr.New(apperr.Process, "Launcher is shutting down")
		return
	}

	err := s.launcher.Launch(s.ctx, job.req)
	if err != nil {
		log.Error().
			Err(err).
			Str("server", job.req.Host).
			Uint16("port", job.req.Port).
			Msg("Game launch failed")
	}
	job.done <- err
}
