package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"kalyekart-order-service/internal/model"
)

// MemoryOrderRepository keeps orders in process. It backs local runs with
// STORAGE_DRIVER=memory and the service tests. Every read returns a copy.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]*model.Order),
	}
}

func (r *MemoryOrderRepository) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.OrderID]; exists {
		return fmt.Errorf("%w: order %s already exists", model.ErrConflict, o.OrderID)
	}
	r.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (r *MemoryOrderRepository) FindByOrderID(_ context.Context, orderID string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) FindAll(_ context.Context) ([]*model.Order, error) {
	return r.filter(func(*model.Order) bool { return true }, newestFirst), nil
}

func (r *MemoryOrderRepository) FindByStatus(_ context.Context, status model.Status) ([]*model.Order, error) {
	return r.filter(func(o *model.Order) bool { return o.Status == status }, newestFirst), nil
}

func (r *MemoryOrderRepository) FindByUserID(_ context.Context, userID string) ([]*model.Order, error) {
	return r.filter(func(o *model.Order) bool { return o.UserID == userID }, newestFirst), nil
}

func (r *MemoryOrderRepository) FindExpired(_ context.Context, cutoff time.Time) ([]*model.Order, error) {
	match := func(o *model.Order) bool {
		return o.StatusETA != nil && !o.StatusETA.After(cutoff) && !o.Status.IsTerminal()
	}
	byETA := func(a, b *model.Order) bool { return a.StatusETA.Before(*b.StatusETA) }
	return r.filter(match, byETA), nil
}

func (r *MemoryOrderRepository) FindPendingRefunds(_ context.Context) ([]*model.Order, error) {
	match := func(o *model.Order) bool {
		return o.RefundRequest != nil && o.RefundRequest.Status == model.RefundPending
	}
	byRequest := func(a, b *model.Order) bool {
		return a.RefundRequest.RequestedAt.Before(b.RefundRequest.RequestedAt)
	}
	return r.filter(match, byRequest), nil
}

func (r *MemoryOrderRepository) TransitionStatus(_ context.Context, orderID string, from model.Status, t model.Transition) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	if o.Status != from {
		return nil, fmt.Errorf("%w: order %s is no longer %s", model.ErrInvalidState, orderID, from)
	}
	applyTransition(o, t)
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) ForceStatus(_ context.Context, orderID string, t model.Transition) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	applyTransition(o, t)
	return cloneOrder(o), nil
}

func applyTransition(o *model.Order, t model.Transition) {
	o.Status = t.To
	o.StatusETA = cloneTime(t.ETA)
	o.UpdatedAt = t.At
	if t.CancellationReason != "" {
		o.CancellationReason = t.CancellationReason
	}
	o.History = append(o.History, t.Record)
}

func (r *MemoryOrderRepository) CreateRefundRequest(_ context.Context, orderID string, req model.RefundRequest) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	if o.RefundRequest != nil {
		return nil, fmt.Errorf("%w: refund already requested for order %s", model.ErrConflict, orderID)
	}
	if o.Status != model.StatusDelivered {
		return nil, fmt.Errorf("%w: order %s is %s", model.ErrInvalidState, orderID, o.Status)
	}
	o.RefundRequest = &req
	o.UpdatedAt = req.RequestedAt
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) DecideRefund(_ context.Context, orderID string, d model.RefundDecision) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	if o.RefundRequest == nil {
		return nil, fmt.Errorf("%w: no refund request on order %s", model.ErrNotFound, orderID)
	}
	if o.RefundRequest.Status != model.RefundPending {
		return nil, fmt.Errorf("%w: refund already %s", model.ErrInvalidState, o.RefundRequest.Status)
	}
	at := d.At
	o.RefundRequest.Status = d.Status
	o.RefundRequest.DecidedAt = &at
	if d.RejectionReason != "" {
		o.RefundRequest.RejectionReason = d.RejectionReason
	}
	o.UpdatedAt = d.At
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) UpdatePayment(_ context.Context, orderID string, status model.PaymentStatus, intentID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	o.PaymentStatus = status
	if intentID != "" {
		o.PaymentIntentID = intentID
	}
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) CountByStatus(_ context.Context, status model.Status) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, o := range r.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryOrderRepository) CountRefunds(_ context.Context, status model.RefundStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, o := range r.orders {
		if o.RefundRequest != nil && o.RefundRequest.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryOrderRepository) DeliveredTotals(_ context.Context) (int64, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	var revenue float64
	for _, o := range r.orders {
		if o.Status == model.StatusDelivered {
			n++
			revenue += o.TotalAmount
		}
	}
	return n, revenue, nil
}

func (r *MemoryOrderRepository) DeliveredSales(_ context.Context, from, to time.Time) ([]model.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Sale
	for _, o := range r.orders {
		if o.Status != model.StatusDelivered {
			continue
		}
		if (!from.IsZero() && o.CreatedAt.Before(from)) || !o.CreatedAt.Before(to) {
			continue
		}
		out = append(out, model.Sale{At: o.CreatedAt, Amount: o.TotalAmount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func newestFirst(a, b *model.Order) bool { return a.CreatedAt.After(b.CreatedAt) }

func (r *MemoryOrderRepository) filter(match func(*model.Order) bool, less func(a, b *model.Order) bool) []*model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Order{}
	for _, o := range r.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.LineItem(nil), o.Items...)
	c.History = append([]model.StatusRecord(nil), o.History...)
	c.StatusETA = cloneTime(o.StatusETA)
	if o.RefundRequest != nil {
		rr := *o.RefundRequest
		rr.DecidedAt = cloneTime(o.RefundRequest.DecidedAt)
		c.RefundRequest = &rr
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StaticCatalog reports fixed user and product counts.
type StaticCatalog struct {
	Users    int64
	Products int64
}

func (c StaticCatalog) CountUsers(context.Context) (int64, error)    { return c.Users, nil }
func (c StaticCatalog) CountProducts(context.Context) (int64, error) { return c.Products, nil }

// MemoryProductCatalog is an in-process product table for STORAGE_DRIVER=memory
// and tests.
type MemoryProductCatalog struct {
	mu       sync.RWMutex
	products map[string]model.Product
}

func NewMemoryProductCatalog(products ...model.Product) *MemoryProductCatalog {
	c := &MemoryProductCatalog{products: make(map[string]model.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// LoadProducts reads a JSON array of {"id","name","price"} into the catalog.
func (c *MemoryProductCatalog) LoadProducts(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read product seed: %w", err)
	}
	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("failed to parse product seed %s: %w", path, err)
	}
	for _, p := range products {
		c.Put(p)
	}
	return nil
}

// Put adds or replaces a product.
func (c *MemoryProductCatalog) Put(p model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryProductCatalog) FindProduct(_ context.Context, productID string) (*model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", model.ErrNotFound, productID)
	}
	return &p, nil
}

func (c *MemoryProductCatalog) CountProducts(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.products)), nil
}
