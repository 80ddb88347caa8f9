package renovasjon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/knornslien/renovasjon-bridge/internal/logging"
)

// dateLayouts covers the timestamp variants the portal has been seen to emit
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Client talks to the Renovasjonsportal calendar API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new API client. A nil httpClient falls back to a
// default client with the given timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logging.GetLogger("renovasjon-client"),
	}
}

// searchResponse mirrors the wire format of the address search endpoint
type searchResponse struct {
	SearchResults []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Municipality string `json:"municipality"`
	} `json:"searchResults"`
}

// detailsResponse mirrors the wire format of the address details endpoint
type detailsResponse struct {
	Disposals []struct {
		Date        string `json:"date"`
		Fraction    string `json:"fraction"`
		SymbolID    int    `json:"symbolId"`
		Description string `json:"description"`
	} `json:"disposals"`
}

// SearchAddress looks up addresses matching the query. An empty result is
// not an error.
func (c *Client) SearchAddress(ctx context.Context, query string) ([]Address, error) {
	c.logger.Debug().Str("query", query).Msg("Searching for address")

	body, err := c.get(ctx, fmt.Sprintf("%s/address/%s", c.baseURL, url.PathEscape(query)))
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	addresses := make([]Address, 0, len(parsed.SearchResults))
	for _, r := range parsed.SearchResults {
		addresses = append(addresses, Address{
			ID:           r.ID,
			Title:        r.Title,
			Municipality: r.Municipality,
		})
	}

	c.logger.Debug().Str("query", query).Int("results", len(addresses)).Msg("Address search completed")
	return addresses, nil
}

// GetDisposals fetches the collection schedule for an address ID
func (c *Client) GetDisposals(ctx context.Context, addressID string) ([]Disposal, error) {
	c.logger.Debug().Str("address_id", addressID).Msg("Fetching disposals")

	body, err := c.get(ctx, fmt.Sprintf("%s/address/%s/details", c.baseURL, url.PathEscape(addressID)))
	if err != nil {
		return nil, err
	}

	var parsed detailsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}

	disposals := make([]Disposal, 0, len(parsed.Disposals))
	for _, d := range parsed.Disposals {
		date, err := parseDate(d.Date)
		if err != nil {
			c.logger.Warn().Str("date", d.Date).Str("fraction", d.Fraction).Msg("Skipping disposal with unparsable date")
			continue
		}
		disposals = append(disposals, Disposal{
			Date:        date,
			Fraction:    d.Fraction,
			SymbolID:    d.SymbolID,
			Description: d.Description,
		})
	}

	c.logger.Debug().Str("address_id", addressID).Int("disposals", len(disposals)).Msg("Disposals fetched")
	return disposals, nil
}

// get performs the request and maps failures to the three error kinds the
// rest of the application distinguishes: not-found, connection, API error.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", rawURL).Msg("Request failed")
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", rawURL, ErrAddressNotFound)
	case resp.StatusCode != http.StatusOK:
		c.logger.Error().Int("status", resp.StatusCode).Str("url", rawURL).Msg("Unexpected API response")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return body, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", raw)
}
