package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kalyekart-order-service/internal/model"
)

func TestOrderService_RequestRefund_RequiresDelivered(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "o1", "owner", model.StatusPending, nil)

	_, err := f.svc.RequestRefund(context.Background(), "o1", "owner", "wrong size", "/tmp/proof.jpg")

	assert.ErrorIs(t, err, model.ErrInvalidState)
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	o, _ := f.repo.FindByOrderID(context.Background(), "o1")
	assert.Nil(t, o.RefundRequest)
}

func TestOrderService_RequestRefund_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "o1", "owner", model.StatusDelivered, nil)

	_, err := f.svc.RequestRefund(ctx, "o1", "owner", " ", "/tmp/proof.jpg")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.RequestRefund(ctx, "o1", "owner", "broken", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.RequestRefund(ctx, "o1", "stranger", "broken", "/tmp/proof.jpg")
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.RequestRefund(ctx, "nope", "owner", "broken", "/tmp/proof.jpg")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrderService_RequestRefund_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "o1", "owner", model.StatusDelivered, nil)
	f.uploader.On("Upload", mock.Anything, "/tmp/proof.jpg").
		Return("https://res.cloudinary.com/demo/image/upload/proof.jpg", nil).Once()

	o, err := f.svc.RequestRefund(ctx, "o1", "owner", "item arrived broken", "/tmp/proof.jpg")
	require.NoError(t, err)
	require.NotNil(t, o.RefundRequest)
	assert.Equal(t, model.RefundPending, o.RefundRequest.Status)
	assert.Equal(t, "item arrived broken", o.RefundRequest.Reason)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/proof.jpg", o.RefundRequest.Proof)
	assert.Equal(t, fixedNow, o.RefundRequest.RequestedAt)

	_, err = f.svc.RequestRefund(ctx, "o1", "owner", "asking again", "/tmp/proof.jpg")
	assert.ErrorIs(t, err, model.ErrConflict)
	f.uploader.AssertNumberOfCalls(t, "Upload", 1)

	pending, err := f.svc.ListPendingRefunds(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o1", pending[0].OrderID)
}

func TestOrderService_RequestRefund_UploadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "o1", "owner", model.StatusDelivered, nil)
	f.uploader.On("Upload", mock.Anything, mock.Anything).
		Return("", errors.Join(model.ErrUpload, errors.New("503 from media host")))

	_, err := f.svc.RequestRefund(ctx, "o1", "owner", "broken", "/tmp/proof.jpg")

	assert.ErrorIs(t, err, model.ErrUpload)
	o, _ := f.repo.FindByOrderID(ctx, "o1")
	assert.Nil(t, o.RefundRequest)
}

func TestOrderService_DecideRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "o1", "owner", model.StatusDelivered, nil)
	f.insert(t, "o2", "owner", model.StatusDelivered, nil)
	f.uploader.On("Upload", mock.Anything, mock.Anything).Return("https://media/proof.mp4", nil)

	_, err := f.svc.DecideRefund(ctx, "o1", model.RefundApproved, "")
	assert.ErrorIs(t, err, model.ErrNotFound, "no refund request yet")

	_, err = f.svc.RequestRefund(ctx, "o1", "owner", "wrong item", "/tmp/a.mp4")
	require.NoError(t, err)
	_, err = f.svc.RequestRefund(ctx, "o2", "owner", "wrong item", "/tmp/b.mp4")
	require.NoError(t, err)

	_, err = f.svc.DecideRefund(ctx, "o1", model.RefundRejected, "")
	assert.ErrorIs(t, err, model.ErrValidation)
	stored, _ := f.repo.FindByOrderID(ctx, "o1")
	assert.Equal(t, model.RefundPending, stored.RefundRequest.Status)

	_, err = f.svc.DecideRefund(ctx, "o1", model.RefundPending, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	o, err := f.svc.DecideRefund(ctx, "o1", model.RefundRejected, "damaged in transit")
	require.NoError(t, err)
	assert.Equal(t, model.RefundRejected, o.RefundRequest.Status)
	assert.Equal(t, "damaged in transit", o.RefundRequest.RejectionReason)
	require.NotNil(t, o.RefundRequest.DecidedAt)

	o, err = f.svc.DecideRefund(ctx, "o2", model.RefundApproved, "ignored")
	require.NoError(t, err)
	assert.Equal(t, model.RefundApproved, o.RefundRequest.Status)
	assert.Empty(t, o.RefundRequest.RejectionReason)

	_, err = f.svc.DecideRefund(ctx, "o2", model.RefundRejected, "changed my mind")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	pending, err := f.svc.ListPendingRefunds(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
