package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kalyekart-order-service/internal/model"
)

// RequestRefund opens the single refund request a delivered order may carry.
// The proof file at proofPath is uploaded to media storage first.
func (s *OrderService) RequestRefund(ctx context.Context, orderID, requesterID, reason, proofPath string) (_ *model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RequestRefund", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: refund reason is required", model.ErrValidation)
	}
	if proofPath == "" {
		return nil, fmt.Errorf("%w: proof image or video is required", model.ErrValidation)
	}

	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, fmt.Errorf("%w: order %s belongs to another user", model.ErrForbidden, orderID)
	}
	if o.Status != model.StatusDelivered {
		return nil, fmt.Errorf("%w: refunds require a delivered order, order is %s", model.ErrInvalidState, o.Status)
	}
	if o.RefundRequest != nil {
		return nil, fmt.Errorf("%w: refund already requested for order %s", model.ErrConflict, orderID)
	}

	if s.uploader == nil {
		return nil, fmt.Errorf("%w: media storage not configured", model.ErrUpload)
	}
	proofURL, err := s.uploader.Upload(ctx, proofPath)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.CreateRefundRequest(ctx, orderID, model.RefundRequest{
		Reason:      reason,
		Proof:       proofURL,
		Status:      model.RefundPending,
		RequestedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "refund requested", "order_id", orderID, "user_id", requesterID)
	return updated, nil
}

// DecideRefund records the admin verdict. Rejections must carry a reason.
// No money moves here; settlement happens outside the service.
func (s *OrderService) DecideRefund(ctx context.Context, orderID string, decision model.RefundStatus, rejectionReason string) (_ *model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.DecideRefund", trace.WithAttributes(
		attribute.String("order.id", orderID), attribute.String("refund.decision", string(decision))))
	defer func() { endSpan(span, err) }()

	rejectionReason = strings.TrimSpace(rejectionReason)
	switch decision {
	case model.RefundApproved:
		rejectionReason = ""
	case model.RefundRejected:
		if rejectionReason == "" {
			return nil, fmt.Errorf("%w: rejection reason is required", model.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: decision must be approved or rejected, got %q", model.ErrValidation, decision)
	}

	updated, err := s.repo.DecideRefund(ctx, orderID, model.RefundDecision{
		Status:          decision,
		RejectionReason: rejectionReason,
		At:              s.now(),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "refund decided", "order_id", orderID, "decision", decision)
	return updated, nil
}

// ListPendingRefunds is the admin triage queue, oldest request first.
func (s *OrderService) ListPendingRefunds(ctx context.Context) ([]*model.Order, error) {
	return s.repo.FindPendingRefunds(ctx)
}
