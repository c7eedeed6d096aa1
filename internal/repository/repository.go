package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kalyekart-order-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOrderRepository stores one document per order in the "orders"
// collection. Every write touches a single document, so consistency relies
// on MongoDB's per-document atomicity.
type MongoOrderRepository struct {
	col *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection("orders")}
}

// EnsureIndexes creates the indexes the worker scan, the customer order list
// and the refund triage queue depend on.
func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status_eta", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "refund_request.status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) Create(ctx context.Context, o *model.Order) error {
	if _, err := m.col.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: order %s already exists", model.ErrConflict, o.OrderID)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &res, nil
}

func (m *MongoOrderRepository) FindAll(ctx context.Context) ([]*model.Order, error) {
	return m.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (m *MongoOrderRepository) FindByStatus(ctx context.Context, status model.Status) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"status": status}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (m *MongoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (m *MongoOrderRepository) FindExpired(ctx context.Context, cutoff time.Time) ([]*model.Order, error) {
	filter := bson.M{
		"status_eta": bson.M{"$ne": nil, "$lte": cutoff},
		"status":     bson.M{"$nin": model.TerminalStatuses()},
	}
	return m.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "status_eta", Value: 1}}))
}

func (m *MongoOrderRepository) FindPendingRefunds(ctx context.Context) ([]*model.Order, error) {
	filter := bson.M{"refund_request.status": model.RefundPending}
	return m.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "refund_request.requested_at", Value: 1}}))
}

// TransitionStatus moves the order to t.To only if it is still in from.
func (m *MongoOrderRepository) TransitionStatus(ctx context.Context, orderID string, from model.Status, t model.Transition) (*model.Order, error) {
	filter := bson.M{"order_id": orderID, "status": from}
	o, err := m.findOneAndUpdate(ctx, filter, transitionUpdate(t))
	if err == mongo.ErrNoDocuments {
		return nil, m.classifyMiss(ctx, orderID, fmt.Errorf("%w: order %s is no longer %s", model.ErrInvalidState, orderID, from))
	}
	return o, err
}

// ForceStatus writes the transition regardless of the current status.
func (m *MongoOrderRepository) ForceStatus(ctx context.Context, orderID string, t model.Transition) (*model.Order, error) {
	o, err := m.findOneAndUpdate(ctx, bson.M{"order_id": orderID}, transitionUpdate(t))
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	return o, err
}

func transitionUpdate(t model.Transition) bson.M {
	set := bson.M{
		"status":     t.To,
		"status_eta": t.ETA,
		"updated_at": t.At,
	}
	if t.CancellationReason != "" {
		set["cancellation_reason"] = t.CancellationReason
	}
	return bson.M{
		"$set":  set,
		"$push": bson.M{"history": t.Record},
	}
}

// CreateRefundRequest attaches r only to a delivered order without one.
func (m *MongoOrderRepository) CreateRefundRequest(ctx context.Context, orderID string, r model.RefundRequest) (*model.Order, error) {
	filter := bson.M{
		"order_id":       orderID,
		"status":         model.StatusDelivered,
		"refund_request": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"refund_request": r, "updated_at": r.RequestedAt}}

	o, err := m.findOneAndUpdate(ctx, filter, update)
	if err != mongo.ErrNoDocuments {
		return o, err
	}

	current, err := m.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.RefundRequest != nil {
		return nil, fmt.Errorf("%w: refund already requested for order %s", model.ErrConflict, orderID)
	}
	return nil, fmt.Errorf("%w: order %s is %s", model.ErrInvalidState, orderID, current.Status)
}

// DecideRefund settles a pending refund request.
func (m *MongoOrderRepository) DecideRefund(ctx context.Context, orderID string, d model.RefundDecision) (*model.Order, error) {
	filter := bson.M{"order_id": orderID, "refund_request.status": model.RefundPending}
	set := bson.M{
		"refund_request.status":     d.Status,
		"refund_request.decided_at": d.At,
		"updated_at":                d.At,
	}
	if d.RejectionReason != "" {
		set["refund_request.rejection_reason"] = d.RejectionReason
	}

	o, err := m.findOneAndUpdate(ctx, filter, bson.M{"$set": set})
	if err != mongo.ErrNoDocuments {
		return o, err
	}

	current, err := m.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.RefundRequest == nil {
		return nil, fmt.Errorf("%w: no refund request on order %s", model.ErrNotFound, orderID)
	}
	return nil, fmt.Errorf("%w: refund already %s", model.ErrInvalidState, current.RefundRequest.Status)
}

func (m *MongoOrderRepository) UpdatePayment(ctx context.Context, orderID string, status model.PaymentStatus, intentID string) (*model.Order, error) {
	set := bson.M{"payment_status": status, "updated_at": time.Now().UTC()}
	if intentID != "" {
		set["payment_intent_id"] = intentID
	}
	o, err := m.findOneAndUpdate(ctx, bson.M{"order_id": orderID}, bson.M{"$set": set})
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	return o, err
}

func (m *MongoOrderRepository) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	return m.col.CountDocuments(ctx, bson.M{"status": status})
}

func (m *MongoOrderRepository) CountRefunds(ctx context.Context, status model.RefundStatus) (int64, error) {
	return m.col.CountDocuments(ctx, bson.M{"refund_request.status": status})
}

// DeliveredTotals returns the number of delivered orders and their summed
// total amount.
func (m *MongoOrderRepository) DeliveredTotals(ctx context.Context) (int64, float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": model.StatusDelivered}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total_amount"},
		}}},
	}
	cur, err := m.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate delivered totals: %w", err)
	}
	defer cur.Close(ctx)

	var row struct {
		Count   int64   `bson:"count"`
		Revenue float64 `bson:"revenue"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return 0, 0, err
		}
	}
	return row.Count, row.Revenue, cur.Err()
}

// DeliveredSales lists delivered orders created in [from, to). A zero from
// means since the beginning.
func (m *MongoOrderRepository) DeliveredSales(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	created := bson.M{"$lt": to}
	if !from.IsZero() {
		created["$gte"] = from
	}
	filter := bson.M{"status": model.StatusDelivered, "created_at": created}
	opts := options.Find().
		SetProjection(bson.M{"created_at": 1, "total_amount": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Sale
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Order, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cur.Close(ctx)

	out := []*model.Order{}
	for cur.Next(ctx) {
		var v model.Order
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func (m *MongoOrderRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var res model.Order
	err := m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return &res, nil
}

// classifyMiss turns a failed conditional update into ErrNotFound when the
// order does not exist and into stale otherwise.
func (m *MongoOrderRepository) classifyMiss(ctx context.Context, orderID string, stale error) error {
	n, err := m.col.CountDocuments(ctx, bson.M{"order_id": orderID})
	if err != nil {
		return fmt.Errorf("failed to count order: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: order %s", model.ErrNotFound, orderID)
	}
	return stale
}

// MongoCatalog reads the user and product collections owned by the
// account and catalog services.
type MongoCatalog struct {
	users    *mongo.Collection
	products *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{
		users:    db.Collection("users"),
		products: db.Collection("products"),
	}
}

func (c *MongoCatalog) CountUsers(ctx context.Context) (int64, error) {
	return c.users.CountDocuments(ctx, bson.M{})
}

func (c *MongoCatalog) CountProducts(ctx context.Context) (int64, error) {
	return c.products.CountDocuments(ctx, bson.M{})
}

type productDocument struct {
	Name  string  `bson:"name"`
	Price float64 `bson:"price"`
}

// FindProduct looks a product up by its _id, which the catalog service
// stores as an ObjectID. Ids that are not ObjectID hex match string _ids.
func (c *MongoCatalog) FindProduct(ctx context.Context, productID string) (*model.Product, error) {
	var id any = productID
	if oid, err := primitive.ObjectIDFromHex(productID); err == nil {
		id = oid
	}

	var doc productDocument
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "price": 1})
	err := c.products.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: product %s", model.ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}
	return &model.Product{ID: productID, Name: doc.Name, Price: doc.Price}, nil
}
