package store

import (
	"testing"

	"bookshop/pkg/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAggregateOrderStatsInnerJoin(t *testing.T) {
	catalog := []domain.Book{{ID: "b1", Title: "Dune", Category: "Fiction", Price: 10}}
	payments := []domain.Payment{{Email: "a@example.com", Price: 30, BookItemIDs: []string{"b1", "b2"}}}

	got := AggregateOrderStats(payments, catalog)
	if len(got) != 1 {
		t.Fatalf("stats = %+v, want one group", got)
	}
	want := domain.CategoryStat{Category: "Fiction", Quantity: 1, Revenue: 10}
	if got[0] != want {
		t.Fatalf("stats[0] = %+v, want %+v", got[0], want)
	}
}

func TestAggregateOrderStatsUsesCatalogPriceAndBothIDForms(t *testing.T) {
	oid := primitive.NewObjectID()
	catalog := []domain.Book{
		{ID: oid.Hex(), Category: "Science", Price: 25},
		{ID: "poetry-1", Category: "Poetry", Price: 8},
	}
	payments := []domain.Payment{
		{Price: 1, BookItemIDs: []string{oid.Hex(), "poetry-1"}},
		{Price: 1, BookItemIDs: []string{oid.Hex()}},
	}

	got := AggregateOrderStats(payments, catalog)
	want := []domain.CategoryStat{
		{Category: "Poetry", Quantity: 1, Revenue: 8},
		{Category: "Science", Quantity: 2, Revenue: 50},
	}
	if len(got) != len(want) {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stats[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregateOrderStatsEmpty(t *testing.T) {
	if got := AggregateOrderStats(nil, nil); len(got) != 0 {
		t.Fatalf("stats = %+v, want empty", got)
	}
}
