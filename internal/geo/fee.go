package geo

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kalyekart-order-service/internal/model"
)

// Quote is the result of a delivery fee computation.
type Quote struct {
	DistanceKm  float64 `json:"distanceKm"`
	DeliveryFee float64 `json:"deliveryFee"`
}

// FeeStrategy turns a shipping address into a delivery quote. Checkout and
// estimate paths each hold exactly one strategy; an order is never priced by
// two different strategies.
type FeeStrategy interface {
	Name() string
	Quote(ctx context.Context, addr model.Shipping) (Quote, error)
}

// Tariff is a piecewise-linear fee: round(BaseFee + distanceKm * PerKm).
type Tariff struct {
	BaseFee float64
	PerKm   float64
}

var (
	CheckoutTariff = Tariff{BaseFee: 15, PerKm: 5}
	EstimateTariff = Tariff{BaseFee: 50, PerKm: 10}
)

// Fee rounds to the nearest whole peso, halves away from zero.
func (t Tariff) Fee(distanceKm float64) float64 {
	fee := decimal.NewFromFloat(t.BaseFee).
		Add(decimal.NewFromFloat(distanceKm).Mul(decimal.NewFromFloat(t.PerKm))).
		Round(0)
	return fee.InexactFloat64()
}

const (
	StrategyGeocoded     = "geocoded"
	StrategyMunicipality = "municipality"
)

// NewCheckoutStrategy builds the strategy that prices orders at checkout.
// Each strategy keeps its own tariff: geocoded distances use CheckoutTariff
// and the municipality table uses EstimateTariff, so a table-priced checkout
// charges what the estimate endpoint showed.
func NewCheckoutStrategy(name string, g Geocoder, origin Point) (FeeStrategy, error) {
	switch name {
	case StrategyGeocoded:
		return NewGeocodedStrategy(g, origin, CheckoutTariff), nil
	case StrategyMunicipality:
		return NewEstimateStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown fee strategy %q", name)
	}
}

// NewEstimateStrategy prices from the Metro Manila table.
func NewEstimateStrategy() *MunicipalityStrategy {
	return NewMunicipalityStrategy(MetroManilaDistances, EstimateTariff)
}

// GeocodedStrategy resolves the address and measures the haversine distance
// from the store.
type GeocodedStrategy struct {
	geocoder Geocoder
	origin   Point
	tariff   Tariff
}

func NewGeocodedStrategy(g Geocoder, origin Point, tariff Tariff) *GeocodedStrategy {
	return &GeocodedStrategy{geocoder: g, origin: origin, tariff: tariff}
}

func (s *GeocodedStrategy) Name() string { return StrategyGeocoded }

func (s *GeocodedStrategy) Quote(ctx context.Context, addr model.Shipping) (Quote, error) {
	if s.geocoder == nil {
		return Quote{}, fmt.Errorf("%w: geocoder not configured", model.ErrGeocode)
	}
	p, err := s.geocoder.Resolve(ctx, FormatAddress(addr))
	if err != nil {
		return Quote{}, err
	}
	d := Distance(s.origin, *p)
	return Quote{DistanceKm: d, DeliveryFee: s.tariff.Fee(d)}, nil
}

// MunicipalityStrategy prices from a precomputed distance per city, used
// when geocoding is unavailable.
type MunicipalityStrategy struct {
	distances map[string]float64
	tariff    Tariff
}

func NewMunicipalityStrategy(distances map[string]float64, tariff Tariff) *MunicipalityStrategy {
	norm := make(map[string]float64, len(distances))
	for k, v := range distances {
		norm[normalizeMunicipality(k)] = v
	}
	return &MunicipalityStrategy{distances: norm, tariff: tariff}
}

func (s *MunicipalityStrategy) Name() string { return StrategyMunicipality }

func (s *MunicipalityStrategy) Quote(_ context.Context, addr model.Shipping) (Quote, error) {
	d, ok := s.distances[normalizeMunicipality(addr.City)]
	if !ok {
		return Quote{}, fmt.Errorf("%w: no distance on file for %q", model.ErrGeocode, addr.City)
	}
	return Quote{DistanceKm: d, DeliveryFee: s.tariff.Fee(d)}, nil
}

// MetroManilaDistances holds road-agnostic distances in km from the
// Binondo warehouse to each city hall.
var MetroManilaDistances = map[string]float64{
	"Manila":      2.1,
	"Caloocan":    8.6,
	"Las Piñas":   19.4,
	"Makati":      7.7,
	"Malabon":     9.3,
	"Mandaluyong": 7.9,
	"Marikina":    13.8,
	"Muntinlupa":  25.6,
	"Navotas":     7.4,
	"Parañaque":   14.9,
	"Pasay":       8.2,
	"Pasig":       11.9,
	"Pateros":     12.6,
	"Quezon City": 10.3,
	"San Juan":    5.6,
	"Taguig":      13.1,
	"Valenzuela":  14.7,
}

func normalizeMunicipality(city string) string {
	c := strings.ToLower(strings.TrimSpace(city))
	c = strings.ReplaceAll(c, "ñ", "n")
	c = strings.TrimPrefix(c, "city of ")
	c = strings.TrimSuffix(c, " city")
	return c
}

// FormatAddress renders a shipping address as a single geocoder query.
func FormatAddress(addr model.Shipping) string {
	parts := make([]string, 0, 6)
	for _, p := range []string{addr.Street, addr.Barangay, addr.City, addr.Province, addr.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "Philippines")
	return strings.Join(parts, ", ")
}
