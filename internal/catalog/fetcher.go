// Package catalog pages through the remote Pokemon catalog and resolves each
// page into normalized items.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/meur/dexforge/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusError is returned when the catalog answers with a non-2xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// PageFetcher loads one page of the catalog
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int) (*models.Page, error)
}

// Fetcher talks to a PokeAPI-compatible catalog
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	// detailConcurrency caps in-flight detail requests per page; 0 means no cap
	detailConcurrency int
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithDetailConcurrency caps how many detail requests one page issues at once
func WithDetailConcurrency(n int) Option {
	return func(f *Fetcher) { f.detailConcurrency = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher creates a Fetcher for the catalog rooted at baseURL
func NewFetcher(baseURL string, client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ PageFetcher = (*Fetcher)(nil)

// FetchPage requests up to limit entries starting at offset and resolves every
// entry's detail record concurrently. It fails as a whole when the list request
// or any detail request fails; no partial page is returned. The first detail
// failure cancels the detail requests still in flight.
func (f *Fetcher) FetchPage(ctx context.Context, offset, limit int) (*models.Page, error) {
	listURL := f.listURL(offset, limit)

	var list models.ListResponse
	if err := f.getJSON(ctx, listURL, &list); err != nil {
		f.logger.Warn("catalog list request failed",
			zap.Int("offset", offset), zap.Int("limit", limit), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch pokemon list: %w", err)
	}

	items := make([]models.CatalogItem, len(list.Results))

	g, gctx := errgroup.WithContext(ctx)
	if f.detailConcurrency > 0 {
		g.SetLimit(f.detailConcurrency)
	}
	for i, ref := range list.Results {
		g.Go(func() error {
			var detail models.DetailResponse
			if err := f.getJSON(gctx, ref.URL, &detail); err != nil {
				return fmt.Errorf("failed to fetch pokemon details for %q: %w", ref.Name, err)
			}
			items[i] = Normalize(&detail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Warn("catalog page discarded",
			zap.Int("offset", offset), zap.Int("limit", limit), zap.Error(err))
		return nil, err
	}

	f.logger.Debug("catalog page fetched",
		zap.Int("offset", offset), zap.Int("items", len(items)), zap.Int("total", list.Count))

	return &models.Page{
		Items:   items,
		HasMore: list.Next != nil,
		Total:   list.Count,
	}, nil
}

func (f *Fetcher) listURL(offset, limit int) string {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return f.baseURL + "/pokemon?" + q.Encode()
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Normalize maps an upstream detail record to a CatalogItem
func Normalize(d *models.DetailResponse) models.CatalogItem {
	image := ""
	if art := d.Sprites.Other.OfficialArtwork.FrontDefault; art != nil {
		image = *art
	}
	if image == "" {
		image = PlaceholderImage(d.Name)
	}

	categories := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		categories = append(categories, t.Type.Name)
	}

	return models.CatalogItem{
		ID:         d.ID,
		Name:       d.Name,
		Image:      image,
		Categories: categories,
		Metrics: models.Metrics{
			Primary: baseStat(d, models.StatHP),
			Offense: baseStat(d, models.StatAttack),
			Defense: baseStat(d, models.StatDefense),
		},
	}
}

// PlaceholderImage is the image used when upstream has no artwork
func PlaceholderImage(name string) string {
	return fmt.Sprintf("/placeholder.svg?height=200&width=200&query=%s pokemon", name)
}

// baseStat returns the first stat named name, or 0 when absent
func baseStat(d *models.DetailResponse, name string) int {
	for _, s := range d.Stats {
		if s.Stat.Name == name {
			return s.BaseStat
		}
	}
	return 0
}
