package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"kalyekart-order-service/internal/model"
)

const ordersNS = "kalyekart.orders"

func orderDoc(t *testing.T, o model.Order) bson.D {
	t.Helper()
	raw, err := bson.Marshal(o)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func countResponse(n int32) bson.D {
	if n == 0 {
		return mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch)
	}
	return mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func deliveredOrder(id string) model.Order {
	return model.Order{
		OrderID:     id,
		UserID:      "u1",
		Items:       []model.LineItem{{ProductID: "p1", Name: "Banig", Quantity: 2, UnitPrice: 50}},
		Status:      model.StatusDelivered,
		TotalAmount: 135,
		CreatedAt:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMongoOrderRepository_TransitionStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	move := model.Transition{To: model.StatusPreparing, At: time.Now().UTC()}

	mt.Run("applied", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		o := deliveredOrder("o1")
		o.Status = model.StatusPreparing
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: orderDoc(t, o)}))

		got, err := repo.TransitionStatus(ctx, "o1", model.StatusPending, move)

		require.NoError(t, err)
		assert.Equal(t, model.StatusPreparing, got.Status)
	})

	mt.Run("lost the race", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(1),
		)

		_, err := repo.TransitionStatus(ctx, "o1", model.StatusPending, move)

		assert.ErrorIs(t, err, model.ErrInvalidState)
	})

	mt.Run("missing order", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(0),
		)

		_, err := repo.TransitionStatus(ctx, "ghost", model.StatusPending, move)

		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestMongoOrderRepository_CreateRefundRequest(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	req := model.RefundRequest{Reason: "torn", Proof: "https://media/p.jpg", Status: model.RefundPending, RequestedAt: time.Now().UTC()}

	mt.Run("already requested", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		existing := deliveredOrder("o1")
		existing.RefundRequest = &model.RefundRequest{Reason: "first ask", Status: model.RefundPending}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch, orderDoc(t, existing)),
		)

		_, err := repo.CreateRefundRequest(ctx, "o1", req)

		assert.ErrorIs(t, err, model.ErrConflict)
	})

	mt.Run("not delivered", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		pending := deliveredOrder("o2")
		pending.Status = model.StatusPending
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch, orderDoc(t, pending)),
		)

		_, err := repo.CreateRefundRequest(ctx, "o2", req)

		assert.ErrorIs(t, err, model.ErrInvalidState)
	})
}

func TestMongoOrderRepository_Create_Duplicate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate order id", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: kalyekart.orders index: order_id_1",
		}))

		o := deliveredOrder("o1")
		err := repo.Create(context.Background(), &o)

		assert.ErrorIs(t, err, model.ErrConflict)
	})
}

func TestMongoOrderRepository_FindExpired(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes the scan", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		eta := time.Date(2024, 6, 1, 8, 59, 0, 0, time.UTC)
		a := deliveredOrder("a")
		a.Status, a.StatusETA = model.StatusPending, &eta
		b := deliveredOrder("b")
		b.Status, b.StatusETA = model.StatusOutForDelivery, &eta
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch, orderDoc(t, a), orderDoc(t, b)))

		got, err := repo.FindExpired(context.Background(), eta.Add(time.Minute))

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].OrderID)
		assert.Equal(t, model.StatusOutForDelivery, got[1].Status)
		require.NotNil(t, got[1].StatusETA)
		assert.True(t, eta.Equal(*got[1].StatusETA))
	})

	mt.Run("nothing due", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch))

		got, err := repo.FindExpired(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMongoOrderRepository_DeliveredTotals(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("grouped", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: int32(3)},
			{Key: "revenue", Value: 705.5},
		}))

		n, revenue, err := repo.DeliveredTotals(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.Equal(t, 705.5, revenue)
	})

	mt.Run("no delivered orders", func(mt *mtest.T) {
		repo := &MongoOrderRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ordersNS, mtest.FirstBatch))

		n, revenue, err := repo.DeliveredTotals(context.Background())

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, revenue)
	})
}

func TestMongoCatalog_FindProduct(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	const productsNS = "kalyekart.products"

	mt.Run("found", func(mt *mtest.T) {
		c := &MongoCatalog{products: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, productsNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Banig"},
			{Key: "price", Value: 50.0},
		}))

		p, err := c.FindProduct(context.Background(), id.Hex())

		require.NoError(t, err)
		assert.Equal(t, id.Hex(), p.ID)
		assert.Equal(t, "Banig", p.Name)
		assert.Equal(t, 50.0, p.Price)
	})

	mt.Run("unknown", func(mt *mtest.T) {
		c := &MongoCatalog{products: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, productsNS, mtest.FirstBatch))

		_, err := c.FindProduct(context.Background(), "p404")

		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
