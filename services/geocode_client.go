package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoGeocodeResult means the geocoder found nothing for the address.
var ErrNoGeocodeResult = errors.New("no geocoding result for address")

// GeocodeClient resolves street addresses to coordinates through a
// Nominatim-compatible endpoint. Nominatim requires a descriptive User-Agent
// and tolerates at most one request per second, so callers go through this
// client one address at a time from the editor, never in bulk.
type GeocodeClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewGeocodeClient creates a new geocoding client
func NewGeocodeClient(baseURL, userAgent string) *GeocodeClient {
	return &GeocodeClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode resolves an address to a coordinate pair. The search is biased to
// San Francisco; the first match wins.
func (c *GeocodeClient) Geocode(ctx context.Context, address string) (lat, lng float64, err error) {
	params := url.Values{}
	params.Set("q", address+", San Francisco, CA")
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "us")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, ErrNoGeocodeResult
	}

	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoder returned invalid latitude %q", results[0].Lat)
	}
	lng, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoder returned invalid longitude %q", results[0].Lon)
	}
	return lat, lng, nil
}
