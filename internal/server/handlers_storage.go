package server

import (
	"net/http"

	"github.com/woozymasta/omp-launcher/internal/models"
)

// handleStorageGetItem returns the raw stored value, or null when the key is missing.
func (s *Server) handleStorageGetItem(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams[models.StorageParams](s, w, r)
	if !ok {
		return
	}

	value, found, err := s.storage.GetItem(r.Context(), params.Key)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !found {
		writeRaw(w, "null")
		return
	}

	writeRaw(w, value)
}

func (s *Server) handleStorageSetItem(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams[models.StorageParams](s, w, r)
	if !ok {
		return
	}

	if err := s.storage.SetItem(r.Context(), params.Key, params.Value); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleStorageRemoveItem(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams[models.StorageParams](s, w, r)
	if !ok {
		return
	}

	if err := s.storage.RemoveItem(r.Context(), params.Key); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// handleStorageGetAllItems returns every key as one JSON object. It takes no params.
func (s *Server) handleStorageGetAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.storage.AllItems(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if items == nil {
		items = map[string]string{}
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleStorageClear(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Clear(r.Context()); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}
