package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"txdash/internal/core"
	"txdash/internal/store"
)

var _ store.Store = (*Store)(nil)

func TestBSONFilterEmpty(t *testing.T) {
	if got := bsonFilter(core.Filter{}); len(got) != 0 {
		t.Fatalf("expected empty filter, got %v", got)
	}
}

func TestBSONFilterMonthAndSearch(t *testing.T) {
	m := core.July
	got := bsonFilter(core.Filter{Month: &m, Search: "a.b"})
	if len(got) != 2 {
		t.Fatalf("expected two clauses, got %v", got)
	}
	if got[0].Key != "$expr" {
		t.Fatalf("first clause = %s, want $expr", got[0].Key)
	}
	expr := got[0].Value.(bson.D)
	args := expr[0].Value.(bson.A)
	if args[1] != 7 {
		t.Fatalf("month argument = %v, want 7", args[1])
	}

	if got[1].Key != "$or" {
		t.Fatalf("second clause = %s, want $or", got[1].Key)
	}
	or := got[1].Value.(bson.A)
	title := or[0].(bson.D)[0]
	re := title.Value.(primitive.Regex)
	if title.Key != "title" || re.Pattern != `a\.b` || re.Options != "i" {
		t.Fatalf("unexpected title regex %v", title)
	}
	if or[1].(bson.D)[0].Key != "description" {
		t.Fatalf("expected description clause, got %v", or[1])
	}
}

func TestBSONFilterMonthOnlyDropsSearch(t *testing.T) {
	m := core.March
	got := bsonFilter(core.Filter{Month: &m, Search: "x"}.MonthOnly())
	if len(got) != 1 || got[0].Key != "$expr" {
		t.Fatalf("unexpected filter %v", got)
	}
}

func TestBucketFilter(t *testing.T) {
	buckets := core.PriceBuckets()

	first := bucketFilter(buckets[0])
	bounds := first[0].Value.(bson.D)
	if len(bounds) != 1 || bounds[0].Key != "$lte" || bounds[0].Value != 100.0 {
		t.Fatalf("first bucket bounds = %v", bounds)
	}

	mid := bucketFilter(buckets[3])[0].Value.(bson.D)
	if len(mid) != 2 || mid[0].Value != 300.0 || mid[1].Value != 400.0 {
		t.Fatalf("301-400 bounds = %v", mid)
	}

	last := bucketFilter(buckets[len(buckets)-1])[0].Value.(bson.D)
	if len(last) != 1 || last[0].Key != "$gt" || last[0].Value != 900.0 {
		t.Fatalf("last bucket bounds = %v", last)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	in := core.Transaction{
		ID: 7, Title: "t", Description: "d", Price: 12.5, Category: "c",
		DateOfSale: time.Date(2021, 11, 27, 20, 29, 54, 0, time.UTC), Sold: true,
	}
	out := toDocument(in).transaction()
	if !out.DateOfSale.Equal(in.DateOfSale) {
		t.Fatalf("date = %v, want %v", out.DateOfSale, in.DateOfSale)
	}
	out.DateOfSale = in.DateOfSale
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}
