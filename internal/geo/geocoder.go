package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kalyekart-order-service/internal/model"
)

// Geocoder resolves free-form addresses to coordinates and back.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Point, error)
	Reverse(ctx context.Context, p Point) (string, error)
}

// NominatimClient talks to an OpenStreetMap Nominatim compatible endpoint.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *NominatimClient) Resolve(ctx context.Context, address string) (*Point, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", "ph")

	var places []nominatimPlace
	if err := n.get(ctx, "/search", q, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("%w: no coordinates for %q", model.ErrGeocode, address)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude %q", model.ErrGeocode, places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude %q", model.ErrGeocode, places[0].Lon)
	}
	return &Point{Lat: lat, Lon: lon}, nil
}

func (n *NominatimClient) Reverse(ctx context.Context, p Point) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', -1, 64))
	q.Set("format", "json")

	var place nominatimPlace
	if err := n.get(ctx, "/reverse", q, &place); err != nil {
		return "", err
	}
	if place.Error != "" || place.DisplayName == "" {
		return "", fmt.Errorf("%w: no address at %v,%v", model.ErrGeocode, p.Lat, p.Lon)
	}
	return place.DisplayName, nil
}

func (n *NominatimClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if n.baseURL == "" {
		return fmt.Errorf("%w: geocoder URL not configured", model.ErrGeocode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrGeocode, err)
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", model.ErrGeocode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: geocoder returned %d", model.ErrGeocode, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", model.ErrGeocode, err)
	}
	return nil
}
