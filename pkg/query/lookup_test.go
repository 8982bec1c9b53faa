package query

import (
	"testing"

	"github.com/bobboyms/jsondb/pkg/value"
)

func buildJoinFixture() *value.Value {
	root := value.NewEmptyObject()

	users := value.NewArray(
		doc(map[string]*value.Value{"id": value.NewNumber(1), "name": value.NewString("ada")}),
		doc(map[string]*value.Value{"id": value.NewNumber(2), "name": value.NewString("grace")}),
	)
	value.Set(root, "users", users)

	orders := value.NewArray(
		doc(map[string]*value.Value{"userID": value.NewNumber(1), "item": value.NewString("widget")}),
		doc(map[string]*value.Value{"userID": value.NewNumber(1), "item": value.NewString("gadget")}),
	)
	value.Set(root, "orders", orders)

	return root
}

func TestParallelLookup_AttachesMatches(t *testing.T) {
	root := buildJoinFixture()

	results, err := ParallelLookup(root, "users", "orders", "id", "userID", "orders")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(results))
	}

	ada := results[0]
	orders, _ := value.Get(ada, "orders")
	if orders.Kind != value.KindArray || len(orders.Arr) != 2 {
		t.Fatalf("expected ada to have 2 matching orders, got %+v", orders)
	}
}

func TestParallelLookup_LeftOuter_NoMatchYieldsEmptyArray(t *testing.T) {
	root := buildJoinFixture()

	results, err := ParallelLookup(root, "users", "orders", "id", "userID", "orders")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	grace := results[1]
	orders, _ := value.Get(grace, "orders")
	if orders.Kind != value.KindArray || len(orders.Arr) != 0 {
		t.Fatalf("expected grace to have no matching orders, got %+v", orders)
	}
}

func TestParallelLookup_OriginalFieldsPreserved(t *testing.T) {
	root := buildJoinFixture()

	results, err := ParallelLookup(root, "users", "orders", "id", "userID", "orders")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	name, _ := value.Get(results[0], "name")
	if name.Str != "ada" {
		t.Fatalf("expected original field preserved, got %v", name.Str)
	}
}

func TestParallelLookup_ParallelPath_SameResultSet(t *testing.T) {
	root := value.NewEmptyObject()
	users := value.NewArray()
	for i := 0; i < 150; i++ {
		users.Arr = append(users.Arr, doc(map[string]*value.Value{"id": value.NewNumber(float64(i))}))
	}
	value.Set(root, "users", users)
	orders := value.NewArray(
		doc(map[string]*value.Value{"userID": value.NewNumber(5), "item": value.NewString("x")}),
	)
	value.Set(root, "orders", orders)

	restoreCores(t, 8)
	results, err := ParallelLookup(root, "users", "orders", "id", "userID", "orders")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(results) != 150 {
		t.Fatalf("expected 150 joined rows, got %d", len(results))
	}

	found := 0
	for _, r := range results {
		orders, _ := value.Get(r, "orders")
		found += len(orders.Arr)
	}
	if found != 1 {
		t.Fatalf("expected exactly 1 matched order across all rows, got %d", found)
	}
}
