package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/service"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateOrder(ctx context.Context, userID string, cart []model.CartItem, addr model.Shipping, method model.PaymentMethod) (*service.Checkout, error) {
	args := m.Called(ctx, userID, cart, addr, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Checkout), args.Error(1)
}

const placedBody = `{
  "correlation_id": "c-1",
  "exchange": "order_placed",
  "routing_key": "",
  "message": {
    "cartId": "cart-9",
    "userId": "u1",
    "items": [{"productId": "p1", "name": "Banig", "quantity": 2, "unitPrice": 50}],
    "shipping": {"street": "123 Rizal Ave", "city": "Manila"}
  }
}`

func TestPlaceOrderConsumer_Handle(t *testing.T) {
	creator := new(MockCreator)
	cart := []model.CartItem{{ProductID: "p1", Quantity: 2}}
	addr := model.Shipping{Street: "123 Rizal Ave", City: "Manila"}
	creator.On("CreateOrder", mock.Anything, "u1", cart, addr, model.PaymentCOD).
		Return(&service.Checkout{Order: &model.Order{OrderID: "o1"}}, nil)

	err := NewPlaceOrderConsumer(creator).Handle(context.Background(), []byte(placedBody))

	require.NoError(t, err)
	creator.AssertExpectations(t)
}

func TestPlaceOrderConsumer_Errors(t *testing.T) {
	creator := new(MockCreator)
	c := NewPlaceOrderConsumer(creator)

	assert.Error(t, c.Handle(context.Background(), []byte("{not json")))
	creator.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	creator.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, model.ErrGeocode)
	err := c.Handle(context.Background(), []byte(placedBody))
	assert.ErrorIs(t, err, model.ErrGeocode)
	assert.ErrorContains(t, err, "cart-9")
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func TestStatusPublisher(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", StatusChangedExchange, "fanout", true, false, false, false, amqp091.Table(nil)).Return(nil)
	ch.On("PublishWithContext", mock.Anything, StatusChangedExchange, "", false, false, mock.MatchedBy(func(msg amqp091.Publishing) bool {
		var evt model.StatusChangedEvent
		return msg.ContentType == "application/json" &&
			json.Unmarshal(msg.Body, &evt) == nil &&
			evt.OrderID == "o1" && evt.To == model.StatusCancelled
	})).Return(nil).Once()

	p, err := NewStatusPublisher(ch)
	require.NoError(t, err)

	err = p.PublishStatusChanged(context.Background(), model.StatusChangedEvent{OrderID: "o1", From: model.StatusPending, To: model.StatusCancelled})
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestStatusPublisher_DeclareFails(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("channel closed"))

	_, err := NewStatusPublisher(ch)

	assert.ErrorContains(t, err, "channel closed")
}
