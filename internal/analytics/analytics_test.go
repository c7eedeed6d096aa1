package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/repository"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *repository.MemoryOrderRepository, id string, status model.Status, created time.Time, total float64) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &model.Order{
		OrderID:     id,
		UserID:      "u",
		Status:      status,
		TotalAmount: total,
		CreatedAt:   created,
	}))
}

func newAggregator(repo *repository.MemoryOrderRepository, loc *time.Location) *Aggregator {
	a := NewAggregator(repo, repository.StaticCatalog{Users: 4, Products: 9}, loc)
	a.now = func() time.Time { return now }
	return a
}

func dates(series []Point) []string {
	out := make([]string, len(series))
	for i, p := range series {
		out[i] = p.Date
	}
	return out
}

func TestSnapshot_CustomRangeZeroFills(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	seed(t, repo, "d1", model.StatusDelivered, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), 235)
	seed(t, repo, "p2", model.StatusPending, time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), 80)
	seed(t, repo, "d3", model.StatusDelivered, time.Date(2024, 6, 3, 23, 59, 0, 0, time.UTC), 100)
	seed(t, repo, "d4", model.StatusDelivered, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), 999)

	r, err := ParseRange("", "2024-06-01", "2024-06-03", time.UTC)
	require.NoError(t, err)
	snap, err := newAggregator(repo, time.UTC).Snapshot(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, []Point{
		{Date: "2024-06-01", Sales: 1, Revenue: 235},
		{Date: "2024-06-02", Sales: 0, Revenue: 0},
		{Date: "2024-06-03", Sales: 1, Revenue: 100},
	}, snap.Series)
}

func TestSnapshot_Summary(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	ctx := context.Background()
	seed(t, repo, "d1", model.StatusDelivered, now.Add(-time.Hour), 100.1)
	seed(t, repo, "d2", model.StatusDelivered, now.Add(-2*time.Hour), 200.2)
	seed(t, repo, "c1", model.StatusCancelled, now.Add(-time.Hour), 50)
	seed(t, repo, "p1", model.StatusPending, now.Add(-time.Hour), 70)

	_, err := repo.CreateRefundRequest(ctx, "d1", model.RefundRequest{Reason: "r", Status: model.RefundPending, RequestedAt: now})
	require.NoError(t, err)
	_, err = repo.DecideRefund(ctx, "d1", model.RefundDecision{Status: model.RefundApproved, At: now})
	require.NoError(t, err)
	_, err = repo.CreateRefundRequest(ctx, "d2", model.RefundRequest{Reason: "r", Status: model.RefundPending, RequestedAt: now})
	require.NoError(t, err)

	snap, err := newAggregator(repo, time.UTC).Snapshot(ctx, Range{Preset: PresetDaily})
	require.NoError(t, err)

	assert.Equal(t, Summary{
		UserCount:       4,
		ProductCount:    9,
		TotalSales:      2,
		TotalRevenue:    300.3,
		CancelledOrders: 1,
		RefundedOrders:  1,
	}, snap.Summary)
}

func TestSnapshot_Presets(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	seed(t, repo, "sunday", model.StatusDelivered, time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC), 10)
	seed(t, repo, "old", model.StatusDelivered, time.Date(2023, 1, 15, 8, 0, 0, 0, time.UTC), 20)
	a := newAggregator(repo, time.UTC)
	ctx := context.Background()

	daily, err := a.Snapshot(ctx, Range{Preset: PresetDaily})
	require.NoError(t, err)
	require.Len(t, daily.Series, 7)
	assert.Equal(t, "2024-06-04", daily.Series[0].Date)
	assert.Equal(t, "2024-06-10", daily.Series[6].Date)
	assert.Equal(t, int64(1), daily.Series[5].Sales)

	weekly, err := a.Snapshot(ctx, Range{Preset: PresetWeekly})
	require.NoError(t, err)
	require.Len(t, weekly.Series, 12)
	assert.Equal(t, "2024-03-25", weekly.Series[0].Date)
	assert.Equal(t, "2024-06-10", weekly.Series[11].Date)
	assert.Equal(t, Point{Date: "2024-06-03", Sales: 1, Revenue: 10}, weekly.Series[10])

	yearly, err := a.Snapshot(ctx, Range{Preset: PresetYearly})
	require.NoError(t, err)
	require.Len(t, yearly.Series, 12)
	assert.Equal(t, "2023-07", yearly.Series[0].Date)
	assert.Equal(t, Point{Date: "2024-06", Sales: 1, Revenue: 10}, yearly.Series[11])

	overall, err := a.Snapshot(ctx, Range{Preset: PresetOverall})
	require.NoError(t, err)
	require.Len(t, overall.Series, 18)
	assert.Equal(t, Point{Date: "2023-01", Sales: 1, Revenue: 20}, overall.Series[0])
	assert.Equal(t, "2024-06", overall.Series[17].Date)
}

func TestSnapshot_OverallWithoutSales(t *testing.T) {
	a := newAggregator(repository.NewMemoryOrderRepository(), time.UTC)

	snap, err := a.Snapshot(context.Background(), Range{Preset: PresetOverall})

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06"}, dates(snap.Series))
}

func TestSnapshot_BucketsInConfiguredTimezone(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	repo := repository.NewMemoryOrderRepository()
	seed(t, repo, "late", model.StatusDelivered, time.Date(2024, 6, 2, 17, 0, 0, 0, time.UTC), 50)

	r, err := ParseRange("", "2024-06-02", "2024-06-03", manila)
	require.NoError(t, err)
	snap, err := newAggregator(repo, manila).Snapshot(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, int64(0), snap.Series[0].Sales)
	assert.Equal(t, int64(1), snap.Series[1].Sales)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("", "", "", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, PresetDaily, r.Preset)

	r, err = ParseRange("Weekly", "", "", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, PresetWeekly, r.Preset)

	bad := [][3]string{
		{"monthly", "", ""},
		{"", "2024-06-01", ""},
		{"", "2024-06-05", "2024-06-01"},
		{"", "06/01/2024", "2024-06-03"},
		{"", "2022-01-01", "2024-01-01"},
	}
	for _, in := range bad {
		_, err := ParseRange(in[0], in[1], in[2], time.UTC)
		assert.ErrorIs(t, err, model.ErrValidation, in)
	}
}

type failingStats struct {
	*repository.MemoryOrderRepository
}

func (*failingStats) DeliveredTotals(context.Context) (int64, float64, error) {
	return 0, 0, errors.New("aggregation timeout")
}

type collector struct {
	mu       sync.Mutex
	payloads [][]byte
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 16)}
}

func (c *collector) send(p []byte) error {
	c.mu.Lock()
	c.payloads = append(c.payloads, p)
	c.mu.Unlock()
	c.notify <- struct{}{}
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed")
	}
}

func TestStream_SuppressesIdenticalPayloads(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	a := newAggregator(repo, time.UTC)
	c := newCollector()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Stream(ctx, Range{Preset: PresetDaily}, 5*time.Millisecond, c.send) }()

	c.wait(t)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, c.count(), "unchanged data is not re-sent")

	seed(t, repo, "d1", model.StatusDelivered, now.Add(-time.Hour), 42)
	c.wait(t)

	c.mu.Lock()
	var snap Snapshot
	require.NoError(t, json.Unmarshal(c.payloads[1], &snap))
	c.mu.Unlock()
	assert.Equal(t, int64(1), snap.Summary.TotalSales)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after disconnect")
	}
}

func TestStream_StopsOnSendError(t *testing.T) {
	a := newAggregator(repository.NewMemoryOrderRepository(), time.UTC)
	broken := errors.New("client gone")

	err := a.Stream(context.Background(), Range{Preset: PresetDaily}, time.Millisecond, func([]byte) error { return broken })

	assert.ErrorIs(t, err, broken)
}

func TestStream_SkipsFailedSnapshots(t *testing.T) {
	stats := &failingStats{MemoryOrderRepository: repository.NewMemoryOrderRepository()}
	a := NewAggregator(stats, nil, time.UTC)
	c := newCollector()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := a.Stream(ctx, Range{Preset: PresetDaily}, 5*time.Millisecond, c.send)

	assert.NoError(t, err)
	assert.Equal(t, 0, c.count())
}
