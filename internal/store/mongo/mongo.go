// Package mongo is the MongoDB transaction store. Reseeding is DeleteMany
// followed by InsertMany and is not atomic: a reader racing a reseed can see
// an empty or partial collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txdash/internal/core"
)

// document is the stored shape of a transaction.
type document struct {
	ObjectID    primitive.ObjectID `bson:"_id,omitempty"`
	ID          int64              `bson:"id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Category    string             `bson:"category"`
	DateOfSale  primitive.DateTime `bson:"dateOfSale"`
	Sold        bool               `bson:"sold"`
}

func toDocument(t core.Transaction) document {
	return document{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Price:       t.Price,
		Category:    t.Category,
		DateOfSale:  primitive.NewDateTimeFromTime(t.DateOfSale),
		Sold:        t.Sold,
	}
}

func (d document) transaction() core.Transaction {
	return core.Transaction{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Category:    d.Category,
		DateOfSale:  d.DateOfSale.Time().UTC(),
		Sold:        d.Sold,
	}
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects to uri and verifies the server is reachable.
func Open(ctx context.Context, uri, database, collection string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, coll: client.Database(database).Collection(collection)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) ReplaceAll(ctx context.Context, items []core.Transaction) (int, error) {
	docs := make([]any, 0, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return 0, err
		}
		docs = append(docs, toDocument(it))
	}

	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert transactions: %w", err)
	}
	slog.InfoContext(ctx, "Transactions replaced in MongoDB", "count", len(res.InsertedIDs))
	return len(res.InsertedIDs), nil
}

func (s *Store) ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error) {
	filter := bsonFilter(f)
	page := core.TransactionPage{Transactions: []core.Transaction{}}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}
	page.Total = total

	opts := options.Find().
		SetSort(bson.D{{Key: "id", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit()))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return page, fmt.Errorf("find transactions: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return page, fmt.Errorf("decode transactions: %w", err)
	}
	for _, d := range docs {
		page.Transactions = append(page.Transactions, d.transaction())
	}
	return page, nil
}

func (s *Store) SaleTotals(ctx context.Context, f core.Filter) (core.Statistics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bsonFilter(f.MonthOnly())}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$price"}}},
			{Key: "sold", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$sold", 1, 0}}}}}},
			{Key: "notSold", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$sold", 0, 1}}}}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("aggregate totals: %w", err)
	}
	var rows []struct {
		Total   float64 `bson:"total"`
		Sold    int64   `bson:"sold"`
		NotSold int64   `bson:"notSold"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return core.Statistics{}, fmt.Errorf("decode totals: %w", err)
	}
	if len(rows) == 0 {
		return core.Statistics{}, nil
	}
	return core.Statistics{
		TotalSaleAmount: core.RoundAmount(rows[0].Total),
		SoldItems:       rows[0].Sold,
		NotSoldItems:    rows[0].NotSold,
	}, nil
}

func (s *Store) CountInPriceBucket(ctx context.Context, f core.Filter, b core.PriceBucket) (int64, error) {
	filter := append(bsonFilter(f.MonthOnly()), bucketFilter(b)...)
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count bucket %s: %w", b.Label, err)
	}
	return n, nil
}

func (s *Store) CountByCategory(ctx context.Context, f core.Filter) ([]core.PieChartEntry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bsonFilter(f.MonthOnly())}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}
	var rows []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]core.PieChartEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.PieChartEntry{Category: r.Category, Count: r.Count})
	}
	return out, nil
}

// bsonFilter translates a core.Filter into a query document. The month is
// compared with $month on the stored UTC date, which ignores the year.
func bsonFilter(f core.Filter) bson.D {
	filter := bson.D{}
	if f.Month != nil {
		filter = append(filter, bson.E{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{bson.D{{Key: "$month", Value: "$dateOfSale"}}, int(*f.Month)}},
		}})
	}
	if f.HasSearch() {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "description", Value: re}},
		}})
	}
	return filter
}

func bucketFilter(b core.PriceBucket) bson.D {
	bounds := bson.D{}
	if b.HasLower {
		bounds = append(bounds, bson.E{Key: "$gt", Value: b.Lower})
	}
	if b.HasUpper {
		bounds = append(bounds, bson.E{Key: "$lte", Value: b.Upper})
	}
	if len(bounds) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "price", Value: bounds}}
}
