package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/models"
)

// storageErrorPrefix marks a failed sync_rpc storage call. The UI splits the
// body on it.
const storageErrorPrefix = "storage_error|sep|"

// handleRPC dispatches POST /rpc/{method}.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	h, ok := s.rpc[method]
	if !ok {
		unknownMethod(w, r, method)
		return
	}

	h(w, r)
}

// handleSyncRPC dispatches POST /sync_rpc/{method}. Calls are processed one at a time.
func (s *Server) handleSyncRPC(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	h, ok := s.syncRPC[method]
	if !ok {
		unknownMethod(w, r, method)
		return
	}

	s.storageMu.Lock()
	defer s.storageMu.Unlock()

	h(w, r)
}

func unknownMethod(w http.ResponseWriter, r *http.Request, method string) {
	log.Debug().Str("path", r.URL.Path).Str("method", method).Msg("Unknown RPC method")
	writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: true, Info: "unknown method " + method})
}

// decodeParams reads the {"params": {...}} envelope. On failure it writes a
// 400 response and returns false.
func decodeParams[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req models.RPCRequest[T]

	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().
			Err(err).
			Str("path", r.URL.Path).
			Msg("Invalid RPC params")

		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error: true,
			Info:  fmt.Sprintf("invalid params: %v", err),
		})
		return req.Params, false
	}

	return req.Params, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// writeFailure reports a failed call with 200, the way the UI expects it.
func writeFailure(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusOK, models.ErrorResponse{Error: true, Info: info})
}

func writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeStorageError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Storage call failed")
	writeRaw(w, storageErrorPrefix+err.Error())
}
