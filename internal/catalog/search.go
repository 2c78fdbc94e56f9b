package catalog

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
)

// ErrNotFound is returned when the catalog has no record for a query or id.
var ErrNotFound = apperrors.NotFound("catalog record not found")

// SearchResult is one entry of a catalog search, enough to render a picker
// row. Lookup fetches the full record.
type SearchResult struct {
	ID     string
	Title  string
	Year   string
	Poster string
	Kind   domain.ItemKind
}

type searchResponse struct {
	Search   []searchEntry `json:"Search"`
	Response string        `json:"Response"`
	Error    string        `json:"Error"`
}

type searchEntry struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type lookupResponse struct {
	Title        string `json:"Title"`
	Year         string `json:"Year"`
	Rated        string `json:"Rated"`
	Released     string `json:"Released"`
	Runtime      string `json:"Runtime"`
	Genre        string `json:"Genre"`
	Director     string `json:"Director"`
	Writer       string `json:"Writer"`
	Actors       string `json:"Actors"`
	Plot         string `json:"Plot"`
	Awards       string `json:"Awards"`
	Poster       string `json:"Poster"`
	ImdbRating   string `json:"imdbRating"`
	ImdbID       string `json:"imdbID"`
	Type         string `json:"Type"`
	TotalSeasons string `json:"totalSeasons"`
	BoxOffice    string `json:"BoxOffice"`
	Production   string `json:"Production"`
	Response     string `json:"Response"`
	Error        string `json:"Error"`
}

// Search queries the catalog for titles of the given kind.
func (c *Client) Search(ctx context.Context, kind domain.ItemKind, query string) ([]SearchResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("search: unknown item kind %q", kind)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("s", query)
	params.Set("type", string(kind))

	c.logger.Debug("searching catalog", "kind", kind, "query", query)

	var searchResp searchResponse
	if err := c.getJSON(ctx, params, &searchResp); err != nil {
		return nil, err
	}
	if searchResp.Response != "True" {
		if strings.Contains(searchResp.Error, "not found") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog search: %s", searchResp.Error)
	}

	results := make([]SearchResult, 0, len(searchResp.Search))
	for _, entry := range searchResp.Search {
		// The API occasionally mixes kinds into typed searches.
		if entry.Type != string(kind) {
			continue
		}
		results = append(results, SearchResult{
			ID:     entry.ImdbID,
			Title:  entry.Title,
			Year:   entry.Year,
			Poster: entry.Poster,
			Kind:   kind,
		})
	}
	return results, nil
}

// Lookup fetches the full catalog record for an id.
func (c *Client) Lookup(ctx context.Context, catalogID string) (*domain.Item, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("i", catalogID)

	c.logger.Debug("catalog lookup", "id", catalogID)

	var lookupResp lookupResponse
	if err := c.getJSON(ctx, params, &lookupResp); err != nil {
		return nil, err
	}
	if lookupResp.Response != "True" {
		if strings.Contains(lookupResp.Error, "not found") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog lookup: %s", lookupResp.Error)
	}

	return toItem(&lookupResp)
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog request failed: status %d", resp.StatusCode)
	}

	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func toItem(resp *lookupResponse) (*domain.Item, error) {
	item := &domain.Item{
		ID:       resp.ImdbID,
		Title:    resp.Title,
		Year:     resp.Year,
		Rated:    resp.Rated,
		Released: resp.Released,
		Runtime:  resp.Runtime,
		Genre:    resp.Genre,
		Director: resp.Director,
		Writer:   resp.Writer,
		Actors:   resp.Actors,
		Plot:     resp.Plot,
		Awards:   resp.Awards,
		Poster:   resp.Poster,
		Rating:   resp.ImdbRating,
	}

	switch resp.Type {
	case "movie":
		item.Kind = domain.ItemKindMovie
		item.Movie = &domain.MovieInfo{
			BoxOffice:  resp.BoxOffice,
			Production: resp.Production,
		}
	case "series":
		item.Kind = domain.ItemKindSeries
		item.Show = &domain.ShowInfo{
			TotalSeasons: resp.TotalSeasons,
		}
	default:
		return nil, fmt.Errorf("catalog lookup %s: unsupported type %q", resp.ImdbID, resp.Type)
	}

	return item, nil
}
