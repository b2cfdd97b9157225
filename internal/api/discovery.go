package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meur/dexforge/internal/catalog"
	"github.com/meur/dexforge/internal/models"
	"go.uber.org/zap"
)

// DiscoveredItem is a catalog item annotated with its collection state
type DiscoveredItem struct {
	models.CatalogItem
	InCollection bool `json:"in_collection"`
}

// DiscoveryResponse is returned by every discovery endpoint
type DiscoveryResponse struct {
	SessionID string           `json:"session_id"`
	Items     []DiscoveredItem `json:"items"`
	HasMore   bool             `json:"has_more"`
	Total     int              `json:"total"`
	Fetched   int              `json:"fetched"`
}

// handleStartDiscovery creates a session and loads its first page
func (s *Server) handleStartDiscovery(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Create()

	page, err := session.Next(r.Context())
	if err != nil {
		s.sessions.Delete(session.ID)
		s.respondPageError(w, session.ID, err)
		return
	}

	respondJSON(w, http.StatusCreated, s.discoveryResponse(session, page.Items))
}

// handleNextPage loads the session's next page
func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	session, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Discovery session not found")
		return
	}

	page, err := session.Next(r.Context())
	if err != nil {
		s.respondPageError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, s.discoveryResponse(session, page.Items))
}

// handleGetDiscovery returns every item the session has fetched so far
func (s *Server) handleGetDiscovery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	session, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Discovery session not found")
		return
	}

	respondJSON(w, http.StatusOK, s.discoveryResponse(session, session.Items()))
}

// handleEndDiscovery forgets a session
func (s *Server) handleEndDiscovery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := s.sessions.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, "Discovery session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) respondPageError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, catalog.ErrFetchInFlight):
		respondError(w, http.StatusConflict, "A page is already loading")
	case errors.Is(err, catalog.ErrExhausted):
		respondError(w, http.StatusGone, "You've discovered all available Pokemon")
	default:
		s.logger.Error("failed to load pokemon page", zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to load Pokemon")
	}
}

func (s *Server) discoveryResponse(session *catalog.Session, items []models.CatalogItem) DiscoveryResponse {
	out := make([]DiscoveredItem, len(items))
	for i, item := range items {
		out[i] = DiscoveredItem{
			CatalogItem:  item,
			InCollection: s.collection.Contains(item.ID),
		}
	}
	return DiscoveryResponse{
		SessionID: session.ID,
		Items:     out,
		HasMore:   session.HasMore(),
		Total:     session.Total(),
		Fetched:   session.Fetched(),
	}
}
