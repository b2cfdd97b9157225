package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/meur/dexforge/internal/collection"
	"github.com/meur/dexforge/internal/models"
)

// ReorderRequest is the body of PUT /api/collection/order
type ReorderRequest struct {
	SourceIndex      *int `json:"source_index"`
	DestinationIndex *int `json:"destination_index"`
}

// MutationResponse reports a collection change and the resulting collection
type MutationResponse struct {
	Changed    bool                 `json:"changed"`
	Items      []models.CatalogItem `json:"items"`
	TotalCount int                  `json:"total_count"`
}

// handleGetCollection returns the collection in order
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	items := s.collection.Items()
	respondJSON(w, http.StatusOK, models.ItemList{
		Items:      items,
		TotalCount: len(items),
	})
}

// handleAddToCollection appends an item unless it is already collected
func (s *Server) handleAddToCollection(w http.ResponseWriter, r *http.Request) {
	var item models.CatalogItem
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if item.ID <= 0 || strings.TrimSpace(item.Name) == "" {
		respondError(w, http.StatusBadRequest, "id and name are required")
		return
	}

	added, err := s.collection.Add(item)
	if err != nil {
		s.respondCollectionError(w, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respondJSON(w, status, s.mutationResponse(added))
}

// handleRemoveFromCollection removes an item by id
func (s *Server) handleRemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := pokemonID(w, r)
	if !ok {
		return
	}

	removed, err := s.collection.Remove(id)
	if err != nil {
		s.respondCollectionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.mutationResponse(removed))
}

// handleReorderCollection moves one entry to a new position
func (s *Server) handleReorderCollection(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SourceIndex == nil || req.DestinationIndex == nil {
		respondError(w, http.StatusBadRequest, "source_index and destination_index are required")
		return
	}

	src, dst := *req.SourceIndex, *req.DestinationIndex
	if err := s.collection.Reorder(src, dst); err != nil {
		s.respondCollectionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.mutationResponse(src != dst))
}

// handleClearCollection empties the collection
func (s *Server) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	hadItems := s.collection.Len() > 0
	if err := s.collection.Clear(); err != nil {
		s.respondCollectionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.mutationResponse(hadItems))
}

// handleCollectionMembership reports whether an id is collected
func (s *Server) handleCollectionMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := pokemonID(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":            id,
		"in_collection": s.collection.Contains(id),
	})
}

func (s *Server) respondCollectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collection.ErrIndexOutOfRange):
		respondError(w, http.StatusBadRequest, "Index out of range")
	case errors.Is(err, collection.ErrNotLoaded), errors.Is(err, collection.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "Collection is not available")
	default:
		respondError(w, http.StatusInternalServerError, "Failed to update collection")
	}
}

func (s *Server) mutationResponse(changed bool) MutationResponse {
	items := s.collection.Items()
	return MutationResponse{
		Changed:    changed,
		Items:      items,
		TotalCount: len(items),
	}
}

func pokemonID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid pokemon id")
		return 0, false
	}
	return id, true
}
