package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kalyekart-order-service/internal/model"
)

// OrderStats is the read side of the order store used for reporting.
type OrderStats interface {
	CountByStatus(ctx context.Context, status model.Status) (int64, error)
	CountRefunds(ctx context.Context, status model.RefundStatus) (int64, error)
	DeliveredTotals(ctx context.Context) (int64, float64, error)
	DeliveredSales(ctx context.Context, from, to time.Time) ([]model.Sale, error)
}

type CatalogCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
}

type Summary struct {
	UserCount       int64   `json:"userCount"`
	ProductCount    int64   `json:"productCount"`
	TotalSales      int64   `json:"totalSales"`
	TotalRevenue    float64 `json:"totalRevenue"`
	CancelledOrders int64   `json:"cancelledOrders"`
	RefundedOrders  int64   `json:"refundedOrders"`
}

type Point struct {
	Date    string  `json:"date"`
	Sales   int64   `json:"sales"`
	Revenue float64 `json:"revenue"`
}

type Snapshot struct {
	Summary Summary `json:"summary"`
	Series  []Point `json:"series"`
}

type Aggregator struct {
	orders  OrderStats
	catalog CatalogCounter
	loc     *time.Location
	now     func() time.Time
	tracer  trace.Tracer
}

func NewAggregator(orders OrderStats, catalog CatalogCounter, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		orders:  orders,
		catalog: catalog,
		loc:     loc,
		now:     time.Now,
		tracer:  otel.Tracer("kalyekart-order-service/analytics"),
	}
}

func (a *Aggregator) Location() *time.Location { return a.loc }

// Snapshot computes the summary counters and the zero-filled sales series.
// Sales and revenue only count delivered orders.
func (a *Aggregator) Snapshot(ctx context.Context, r Range) (*Snapshot, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Snapshot", trace.WithAttributes(attribute.String("range", string(r.Preset))))
	defer span.End()

	summary, err := a.summary(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	series, err := a.series(ctx, r)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Snapshot{Summary: summary, Series: series}, nil
}

func (a *Aggregator) summary(ctx context.Context) (Summary, error) {
	var s Summary
	var err error

	if a.catalog != nil {
		if s.UserCount, err = a.catalog.CountUsers(ctx); err != nil {
			return s, fmt.Errorf("failed to count users: %w", err)
		}
		if s.ProductCount, err = a.catalog.CountProducts(ctx); err != nil {
			return s, fmt.Errorf("failed to count products: %w", err)
		}
	}
	if s.TotalSales, s.TotalRevenue, err = a.orders.DeliveredTotals(ctx); err != nil {
		return s, fmt.Errorf("failed to total delivered orders: %w", err)
	}
	s.TotalRevenue = decimal.NewFromFloat(s.TotalRevenue).Round(2).InexactFloat64()
	if s.CancelledOrders, err = a.orders.CountByStatus(ctx, model.StatusCancelled); err != nil {
		return s, fmt.Errorf("failed to count cancelled orders: %w", err)
	}
	if s.RefundedOrders, err = a.orders.CountRefunds(ctx, model.RefundApproved); err != nil {
		return s, fmt.Errorf("failed to count refunds: %w", err)
	}
	return s, nil
}

func (a *Aggregator) series(ctx context.Context, r Range) ([]Point, error) {
	w := windowFor(r, a.now().In(a.loc))

	from := w.start
	if r.Preset == PresetOverall {
		from = time.Time{}
	}
	sales, err := a.orders.DeliveredSales(ctx, from, w.end)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	if r.Preset == PresetOverall {
		w.start = w.end.AddDate(0, -1, 0)
		for _, s := range sales {
			if first := w.gran.truncate(s.At.In(a.loc)); first.Before(w.start) {
				w.start = first
			}
		}
	}

	type bucket struct {
		sales   int64
		revenue decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	for _, s := range sales {
		key := w.gran.label(w.gran.truncate(s.At.In(a.loc)))
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sales++
		b.revenue = b.revenue.Add(decimal.NewFromFloat(s.Amount))
	}

	series := []Point{}
	for t := w.start; t.Before(w.end); t = w.gran.next(t) {
		p := Point{Date: w.gran.label(t)}
		if b, ok := buckets[p.Date]; ok {
			p.Sales = b.sales
			p.Revenue = b.revenue.Round(2).InexactFloat64()
		}
		series = append(series, p)
	}
	return series, nil
}
