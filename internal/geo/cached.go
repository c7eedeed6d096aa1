package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kalyekart-order-service/internal/cache"
)

// CachedGeocoder memoises Resolve results. Cache failures only cost a
// round-trip to the underlying geocoder; they never fail the lookup.
type CachedGeocoder struct {
	next  Geocoder
	cache cache.Store
	ttl   time.Duration
}

func NewCachedGeocoder(next Geocoder, c cache.Store, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: c, ttl: ttl}
}

func (g *CachedGeocoder) Resolve(ctx context.Context, address string) (*Point, error) {
	key := g.cache.Key("geocode", strings.ToLower(strings.Join(strings.Fields(address), " ")))

	raw, err := g.cache.Lookup(ctx, key)
	switch {
	case err == nil:
		if p, ok := decodePoint(raw); ok {
			return p, nil
		}
	case !errors.Is(err, cache.ErrMiss):
		slog.WarnContext(ctx, "geocode cache read failed", "error", err)
	}

	p, err := g.next.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := g.cache.Remember(ctx, key, encodePoint(*p), g.ttl); err != nil {
		slog.WarnContext(ctx, "geocode cache write failed", "error", err)
	}
	return p, nil
}

func (g *CachedGeocoder) Reverse(ctx context.Context, p Point) (string, error) {
	return g.next.Reverse(ctx, p)
}

func encodePoint(p Point) string {
	return fmt.Sprintf("%s,%s",
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lon, 'f', -1, 64))
}

func decodePoint(raw string) (*Point, bool) {
	latS, lonS, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, false
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return nil, false
	}
	return &Point{Lat: lat, Lon: lon}, true
}
