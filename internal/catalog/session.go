package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/meur/dexforge/internal/models"
)

const (
	DefaultPageSize = 6
	// DefaultCeiling stops discovery after this many items whatever the upstream total is
	DefaultCeiling = 1000
)

var (
	ErrExhausted     = errors.New("no more pages")
	ErrFetchInFlight = errors.New("page fetch already in flight")
)

// Session is one discovery walk through the catalog. The next offset is the
// number of items fetched so far, and fetching stops at the ceiling. Only one
// page fetch may run at a time.
type Session struct {
	ID string

	fetcher  PageFetcher
	pageSize int
	ceiling  int

	mu       sync.Mutex
	items    []models.CatalogItem
	total    int
	hasMore  bool
	inFlight bool
}

// NewSession creates a session that has not fetched anything yet
func NewSession(fetcher PageFetcher, pageSize, ceiling int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Session{
		ID:       uuid.New().String(),
		fetcher:  fetcher,
		pageSize: pageSize,
		ceiling:  ceiling,
		items:    []models.CatalogItem{},
		hasMore:  true,
	}
}

// Next fetches the following page. The returned page's HasMore already
// accounts for the ceiling. A failed fetch leaves the session unchanged.
func (s *Session) Next(ctx context.Context) (*models.Page, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrFetchInFlight
	}
	if !s.hasMore {
		s.mu.Unlock()
		return nil, ErrExhausted
	}
	s.inFlight = true
	offset := len(s.items)
	s.mu.Unlock()

	page, err := s.fetcher.FetchPage(ctx, offset, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		return nil, err
	}

	s.items = append(s.items, page.Items...)
	s.total = page.Total
	// An empty page cannot advance the offset, so it ends the walk too.
	s.hasMore = page.HasMore && len(page.Items) > 0 && len(s.items) < s.ceiling

	return &models.Page{
		Items:   page.Items,
		HasMore: s.hasMore,
		Total:   page.Total,
	}, nil
}

// Items returns every item fetched so far, in page order
func (s *Session) Items() []models.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CatalogItem, len(s.items))
	copy(out, s.items)
	return out
}

// Fetched returns the number of items fetched so far
func (s *Session) Fetched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// HasMore reports whether Next may return another page
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Total returns the upstream catalog size from the latest page
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Fetching reports whether a page fetch is running
func (s *Session) Fetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
