package server

import (
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/vars"
)

// handleServers returns the server history, most recently seen first.
// Query params: ?search=<text> filters by a fuzzy hostname or address match
// and orders by match quality.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.storage.GetServers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		servers = searchServers(servers, search)
	}

	if servers == nil {
		servers = []models.ServerRecord{}
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleVersion returns the build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// searchServers keeps the servers matching term. The sort is stable so equally
// good matches stay in recency order.
func searchServers(servers []models.ServerRecord, term string) []models.ServerRecord {
	type scored struct {
		server models.ServerRecord
		score  int
	}

	var hits []scored
	for _, srv := range servers {
		if score, ok := matchScore(term, srv); ok {
			hits = append(hits, scored{server: srv, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]models.ServerRecord, len(hits))
	for i, h := range hits {
		out[i] = h.server
	}

	return out
}

// matchScore returns 0 for substring and address prefix matches, otherwise the
// smallest edit distance between term and the hostname or one of its words.
// Distances above a third of the term length do not match.
func matchScore(term string, srv models.ServerRecord) (int, bool) {
	term = strings.ToLower(term)
	hostname := strings.ToLower(srv.Hostname)

	if strings.Contains(hostname, term) || strings.HasPrefix(srv.Host, term) {
		return 0, true
	}

	best := levenshtein.ComputeDistance(term, hostname)
	for _, word := range strings.FieldsFunc(hostname, isSeparator) {
		if d := levenshtein.ComputeDistance(term, word); d < best {
			best = d
		}
	}

	limit := max(utf8.RuneCountInString(term)/3, 1)
	return best, best <= limit
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '|', '[', ']', '(', ')', '-', '_', '.', ',', ':':
		return true
	}

	return false
}
