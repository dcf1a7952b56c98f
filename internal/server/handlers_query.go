package server

import (
	"net/http"

	"github.com/woozymasta/omp-launcher/internal/apperr"
	"github.com/woozymasta/omp-launcher/internal/launcher"
	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/query"
)

// handleQueryServer answers an aggregate query for the requested categories.
func (s *Server) handleQueryServer(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams[models.QueryParams](s, w, r)
	if !ok {
		return
	}

	ep, err := endpointOf(params.IP, params.Port)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: true, Info: apperr.UserMessage(err)})
		return
	}

	var cats query.Categories
	for _, c := range []struct {
		on  bool
		cat query.Categories
	}{
		{params.Info, query.CategoryInfo},
		{params.Players, query.CategoryPlayers},
		{params.Rules, query.CategoryRules},
		{params.ExtraInfo, query.CategoryExtraInfo},
		{params.Ping, query.CategoryPing},
	} {
		if c.on {
			cats |= c.cat
		}
	}

	res := s.query.Query(r.Context(), ep, cats)
	s.observe(ep, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	s.querySingle(w, r, query.CategoryInfo, func(res query.Result) any { return res.Info })
}

func (s *Server) handleServerPlayers(w http.ResponseWriter, r *http.Request) {
	s.querySingle(w, r, query.CategoryPlayers, func(res query.Result) any { return res.Players })
}

func (s *Server) handleServerRules(w http.ResponseWriter, r *http.Request) {
	s.querySingle(w, r, query.CategoryRules, func(res query.Result) any { return res.Rules })
}

func (s *Server) handleServerExtraInfo(w http.ResponseWriter, r *http.Request) {
	s.querySingle(w, r, query.CategoryExtraInfo, func(res query.Result) any {
		if res.ExtraInfo == nil {
			return models.ErrorResponse{Error: true, Info: "extra info on cooldown"}
		}
		return res.ExtraInfo
	})
}

// handlePingServer returns the bare round trip time in milliseconds.
func (s *Server) handlePingServer(w http.ResponseWriter, r *http.Request) {
	s.querySingle(w, r, query.CategoryPing, func(res query.Result) any {
		if res.Ping == nil {
			return query.PingTimeout
		}
		return *res.Ping
	})
}

// querySingle runs a one-category query and writes the field picked from the
// result, or the rejection when the query was rate limited.
func (s *Server) querySingle(w http.ResponseWriter, r *http.Request, cat query.Categories, pick func(query.Result) any) {
	params, ok := decodeParams[models.EndpointParams](s, w, r)
	if !ok {
		return
	}

	ep, err := endpointOf(params.IP, params.Port)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: true, Info: apperr.UserMessage(err)})
		return
	}

	res := s.query.Query(r.Context(), ep, cat)
	if res.Rejected != nil {
		writeJSON(w, http.StatusOK, res.Rejected)
		return
	}

	s.observe(ep, res)
	writeJSON(w, http.StatusOK, pick(res))
}

func endpointOf(ip string, port int) (query.Endpoint, error) {
	host, err := launcher.ValidateHostname(ip)
	if err != nil {
		return query.Endpoint{}, err
	}

	p, err := launcher.ValidatePort(port)
	if err != nil {
		return query.Endpoint{}, err
	}

	return query.Endpoint{Host: host, Port: p}, nil
}
