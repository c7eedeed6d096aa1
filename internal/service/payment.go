package service

import (
	"context"
	"fmt"
	"log/slog"

	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/payment"
)

// ConfirmPayment checks the card payment intent with the gateway and records
// the outcome. Only canceled intents and intents that need a new payment
// method mark the payment failed; in-flight intents leave it pending.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, requesterID string) (*model.Order, error) {
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, fmt.Errorf("%w: order %s belongs to another user", model.ErrForbidden, orderID)
	}
	if o.PaymentMethod != model.PaymentCard {
		return nil, fmt.Errorf("%w: order %s is not paid by card", model.ErrValidation, orderID)
	}
	if o.PaymentStatus == model.PaymentPaid {
		return o, nil
	}
	if s.payments == nil {
		return nil, fmt.Errorf("%w: card payments are not configured", model.ErrPayment)
	}

	intent, err := s.payments.RetrievePaymentIntent(ctx, o.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case payment.IntentSucceeded:
	case payment.IntentCanceled, payment.IntentRequiresPaymentMethod:
		if _, err := s.repo.UpdatePayment(ctx, orderID, model.PaymentFailed, ""); err != nil {
			slog.ErrorContext(ctx, "failed to record payment failure", "order_id", orderID, "error", err)
		}
		return nil, fmt.Errorf("%w: payment intent is %s", model.ErrPayment, intent.Status)
	default:
		return nil, fmt.Errorf("%w: payment intent is %s", model.ErrPayment, intent.Status)
	}

	updated, err := s.repo.UpdatePayment(ctx, orderID, model.PaymentPaid, "")
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "payment confirmed", "order_id", orderID, "intent_id", intent.ID)
	return updated, nil
}
