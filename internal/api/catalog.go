package api

import (
	"net/http"
	"strconv"

	"github.com/meur/dexforge/internal/models"
	"go.uber.org/zap"
)

const maxSnapshotLimit = 200

// handleGetCatalog lists the cached catalog snapshot
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "Catalog snapshot not available")
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "Invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 || limit > maxSnapshotLimit {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	items, err := s.store.GetCatalogItems(offset, limit)
	if err != nil {
		s.logger.Error("failed to read catalog snapshot", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch catalog")
		return
	}
	total, err := s.store.CountCatalogItems()
	if err != nil {
		s.logger.Error("failed to count catalog snapshot", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch catalog")
		return
	}

	respondJSON(w, http.StatusOK, models.ItemList{
		Items:      items,
		TotalCount: total,
	})
}

// handleGetCatalogItem returns a single cached item
func (s *Server) handleGetCatalogItem(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "Catalog snapshot not available")
		return
	}

	id, ok := pokemonID(w, r)
	if !ok {
		return
	}

	item, err := s.store.GetCatalogItem(id)
	if err != nil {
		s.logger.Error("failed to read catalog item", zap.Int("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch pokemon")
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "Pokemon not found")
		return
	}

	respondJSON(w, http.StatusOK, DiscoveredItem{
		CatalogItem:  *item,
		InCollection: s.collection.Contains(item.ID),
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
