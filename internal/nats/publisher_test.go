package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kalyekart-order-service/internal/model"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

func (m *MockConn) FlushTimeout(timeout time.Duration) error {
	return m.Called(timeout).Error(0)
}

func TestPublisher_PublishStatusChanged(t *testing.T) {
	nc := new(MockConn)
	p := &Publisher{nc: nc, subject: StatusChangedSubject}
	evt := model.StatusChangedEvent{OrderID: "o1", From: model.StatusPending, To: model.StatusPreparing, Actor: model.SystemActor}

	nc.On("Publish", StatusChangedSubject, mock.MatchedBy(func(data []byte) bool {
		var got model.StatusChangedEvent
		return json.Unmarshal(data, &got) == nil && got.OrderID == "o1" && got.To == model.StatusPreparing
	})).Return(nil)
	nc.On("FlushTimeout", 2*time.Second).Return(nil)

	require.NoError(t, p.PublishStatusChanged(context.Background(), evt))
	nc.AssertExpectations(t)
}

func TestPublisher_Errors(t *testing.T) {
	nc := new(MockConn)
	p := &Publisher{nc: nc, subject: StatusChangedSubject}
	nc.On("Publish", mock.Anything, mock.Anything).Return(errors.New("connection closed")).Once()

	err := p.PublishStatusChanged(context.Background(), model.StatusChangedEvent{OrderID: "o1"})
	assert.ErrorContains(t, err, "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.PublishStatusChanged(ctx, model.StatusChangedEvent{}), context.Canceled)
	nc.AssertNumberOfCalls(t, "Publish", 1)
}
