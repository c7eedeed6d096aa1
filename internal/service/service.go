package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kalyekart-order-service/internal/geo"
	"kalyekart-order-service/internal/media"
	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/payment"
)

// OrderRepository is implemented by the Mongo and in-memory stores.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	FindAll(ctx context.Context) ([]*model.Order, error)
	FindByStatus(ctx context.Context, status model.Status) ([]*model.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Order, error)
	FindExpired(ctx context.Context, cutoff time.Time) ([]*model.Order, error)
	FindPendingRefunds(ctx context.Context) ([]*model.Order, error)
	TransitionStatus(ctx context.Context, orderID string, from model.Status, t model.Transition) (*model.Order, error)
	ForceStatus(ctx context.Context, orderID string, t model.Transition) (*model.Order, error)
	CreateRefundRequest(ctx context.Context, orderID string, r model.RefundRequest) (*model.Order, error)
	DecideRefund(ctx context.Context, orderID string, d model.RefundDecision) (*model.Order, error)
	UpdatePayment(ctx context.Context, orderID string, status model.PaymentStatus, intentID string) (*model.Order, error)
}

// ProductCatalog resolves the current name and price of a product.
// A missing product is reported as model.ErrNotFound.
type ProductCatalog interface {
	FindProduct(ctx context.Context, productID string) (*model.Product, error)
}

// EventPublisher fans status transitions out to other services.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, evt model.StatusChangedEvent) error
}

const (
	DefaultPendingWindow = 5 * time.Minute
	DefaultAdvanceGrace  = 10 * time.Second

	defaultCancelReason = "Order cancelled by user."
)

type Dependencies struct {
	Repo     OrderRepository
	Fees     geo.FeeStrategy
	Catalog  ProductCatalog
	Uploader media.Uploader
	Payments payment.Gateway
	Events   EventPublisher

	// PendingWindow is how long a new order stays cancellable.
	PendingWindow time.Duration
	// AdvanceGrace debounces the worker: an ETA must be at least this old.
	AdvanceGrace time.Duration
	Now          func() time.Time
}

type OrderService struct {
	repo          OrderRepository
	fees          geo.FeeStrategy
	catalog       ProductCatalog
	uploader      media.Uploader
	payments      payment.Gateway
	events        EventPublisher
	pendingWindow time.Duration
	advanceGrace  time.Duration
	now           func() time.Time
	tracer        trace.Tracer
}

func NewOrderService(d Dependencies) *OrderService {
	s := &OrderService{
		repo:          d.Repo,
		fees:          d.Fees,
		catalog:       d.Catalog,
		uploader:      d.Uploader,
		payments:      d.Payments,
		events:        d.Events,
		pendingWindow: d.PendingWindow,
		advanceGrace:  d.AdvanceGrace,
		now:           d.Now,
		tracer:        otel.Tracer("kalyekart-order-service/service"),
	}
	if s.pendingWindow <= 0 {
		s.pendingWindow = DefaultPendingWindow
	}
	if s.advanceGrace <= 0 {
		s.advanceGrace = DefaultAdvanceGrace
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Checkout is the result of placing an order. ClientSecret is set for card
// payments so the storefront can complete the payment intent.
type Checkout struct {
	Order        *model.Order
	ClientSecret string
}

// QuoteDelivery prices delivery to addr with the checkout strategy.
func (s *OrderService) QuoteDelivery(ctx context.Context, addr model.Shipping) (geo.Quote, error) {
	if err := validateShipping(addr); err != nil {
		return geo.Quote{}, err
	}
	if s.fees == nil {
		return geo.Quote{}, fmt.Errorf("%w: no fee strategy configured", model.ErrGeocode)
	}
	return s.fees.Quote(ctx, addr)
}

// FeeStrategyName names the checkout pricing strategy in use.
func (s *OrderService) FeeStrategyName() string {
	if s.fees == nil {
		return ""
	}
	return s.fees.Name()
}

// CreateOrder validates the cart, snapshots name and price from the catalog,
// stamps the delivery quote, opens a payment intent for card orders and
// persists the order as Pending.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, cart []model.CartItem, addr model.Shipping, method model.PaymentMethod) (_ *Checkout, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: order has no items", model.ErrValidation)
	}
	for i, it := range cart {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: item %d has no product", model.ErrValidation, i)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d has invalid quantity", model.ErrValidation, i)
		}
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", model.ErrValidation, method)
	}

	items, err := s.snapshotItems(ctx, cart)
	if err != nil {
		return nil, err
	}

	quote, err := s.QuoteDelivery(ctx, addr)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &model.Order{
		OrderID:       uuid.NewString(),
		UserID:        userID,
		Items:         items,
		Shipping:      addr,
		DeliveryFee:   quote.DeliveryFee,
		DistanceKm:    quote.DistanceKm,
		PaymentMethod: method,
		PaymentStatus: model.PaymentPending,
		Status:        model.StatusPending,
		History: []model.StatusRecord{{
			Status:    model.StatusPending,
			Reason:    "Order placed",
			Actor:     userID,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.StatusETA = model.ETAFor(model.StatusPending, o, now, s.pendingWindow)
	o.RecomputeTotals()
	span.SetAttributes(attribute.String("order.id", o.OrderID), attribute.Float64("order.total", o.TotalAmount))

	checkout := &Checkout{Order: o}
	if method == model.PaymentCard {
		if s.payments == nil {
			return nil, fmt.Errorf("%w: card payments are not configured", model.ErrPayment)
		}
		intent, err := s.payments.CreatePaymentIntent(ctx, o.AmountMinorUnits(), map[string]string{
			"order_id": o.OrderID,
			"user_id":  userID,
		})
		if err != nil {
			return nil, err
		}
		o.PaymentIntentID = intent.ID
		checkout.ClientSecret = intent.ClientSecret
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", o.OrderID, "user_id", userID, "total", o.TotalAmount, "distance_km", o.DistanceKm)
	s.publish(ctx, o, "", model.StatusPending, userID, "Order placed")
	return checkout, nil
}

func (s *OrderService) snapshotItems(ctx context.Context, cart []model.CartItem) ([]model.LineItem, error) {
	if s.catalog == nil {
		return nil, errors.New("product catalog not configured")
	}
	items := make([]model.LineItem, 0, len(cart))
	for _, it := range cart {
		p, err := s.catalog.FindProduct(ctx, it.ProductID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown product %s", model.ErrValidation, it.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up product %s: %w", it.ProductID, err)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("%w: product %s has no valid price", model.ErrValidation, it.ProductID)
		}
		items = append(items, model.LineItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}
	return items, nil
}

// CancelOrder lets the owner cancel while the order is still Pending.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, requesterID, reason string) (_ *model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, fmt.Errorf("%w: order %s belongs to another user", model.ErrForbidden, orderID)
	}
	if o.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled, order is %s", model.ErrInvalidState, o.Status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}
	now := s.now()
	updated, err := s.repo.TransitionStatus(ctx, orderID, model.StatusPending, model.Transition{
		To:                 model.StatusCancelled,
		CancellationReason: reason,
		Record:             model.StatusRecord{Status: model.StatusCancelled, Reason: reason, Actor: requesterID, Timestamp: now},
		At:                 now,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated, model.StatusPending, model.StatusCancelled, requesterID, reason)
	return updated, nil
}

// ForceSetStatus is the admin override. It bypasses the transition table
// and ETA timing entirely: any known status may be written from any state,
// including out of a terminal one. The ETA is recomputed for the new status
// so the worker continues from there.
func (s *OrderService) ForceSetStatus(ctx context.Context, orderID string, status model.Status, actorID, reason string) (_ *model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ForceSetStatus", trace.WithAttributes(
		attribute.String("order.id", orderID), attribute.String("order.status", string(status))))
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "Status set by admin"
	}
	now := s.now()
	updated, err := s.repo.ForceStatus(ctx, orderID, model.Transition{
		To:     status,
		ETA:    model.ETAFor(status, o, now, s.pendingWindow),
		Record: model.StatusRecord{Status: status, Reason: reason, Actor: actorID, Timestamp: now},
		At:     now,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order status overridden", "order_id", orderID, "from", o.Status, "to", status, "actor", actorID)
	s.publish(ctx, updated, o.Status, status, actorID, reason)
	return updated, nil
}

// AdvanceExpiredOrders moves every non-terminal order whose ETA expired more
// than the grace period ago to its next status. A failure on one order is
// logged and does not stop the scan. Returns the number of orders advanced.
func (s *OrderService) AdvanceExpiredOrders(ctx context.Context, now time.Time) (_ int, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.AdvanceExpiredOrders")
	defer func() { endSpan(span, err) }()

	expired, err := s.repo.FindExpired(ctx, now.Add(-s.advanceGrace))
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired orders: %w", err)
	}

	advanced := 0
	for _, o := range expired {
		next, ok := o.Status.Next()
		if !ok || o.Status.IsTerminal() {
			continue
		}

		eta := model.ETAFor(next, o, now, s.pendingWindow)
		reason := "Automatically advanced from " + string(o.Status)
		updated, err := s.repo.TransitionStatus(ctx, o.OrderID, o.Status, model.Transition{
			To:     next,
			ETA:    eta,
			Record: model.StatusRecord{Status: next, Reason: reason, Actor: model.SystemActor, Timestamp: now},
			At:     now,
		})
		if err != nil {
			// A concurrent cancel or admin override wins; the stale advance is dropped.
			slog.WarnContext(ctx, "failed to advance order", "order_id", o.OrderID, "from", o.Status, "to", next, "error", err)
			continue
		}

		advanced++
		s.publish(ctx, updated, o.Status, next, model.SystemActor, reason)
	}

	span.SetAttributes(attribute.Int("orders.scanned", len(expired)), attribute.Int("orders.advanced", advanced))
	return advanced, nil
}

// GetOrder returns the order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID, requesterID string, isAdmin bool) (*model.Order, error) {
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != requesterID {
		return nil, fmt.Errorf("%w: you cannot view another user's order", model.ErrForbidden)
	}
	return o, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]*model.Order, error) {
	return s.repo.FindAll(ctx)
}

func (s *OrderService) ListByStatus(ctx context.Context, status model.Status) ([]*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	return s.repo.FindByStatus(ctx, status)
}

func (s *OrderService) publish(ctx context.Context, o *model.Order, from, to model.Status, actor, reason string) {
	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	evt := model.StatusChangedEvent{
		OrderID:   o.OrderID,
		UserID:    o.UserID,
		From:      from,
		To:        to,
		Actor:     actor,
		Reason:    reason,
		StatusETA: o.StatusETA,
		At:        s.now(),
	}
	if err := s.events.PublishStatusChanged(pubCtx, evt); err != nil {
		slog.WarnContext(ctx, "failed to publish status event", "order_id", o.OrderID, "to", to, "error", err)
	}
}

func validateShipping(addr model.Shipping) error {
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" {
		return fmt.Errorf("%w: street and city are required", model.ErrValidation)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
