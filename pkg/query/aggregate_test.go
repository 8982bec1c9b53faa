package query

import (
	"testing"

	"github.com/bobboyms/jsondb/pkg/value"
)

func buildScores(nums []float64) *value.Value {
	root := value.NewEmptyObject()
	items := value.NewArray()
	for _, n := range nums {
		items.Arr = append(items.Arr, doc(map[string]*value.Value{"score": value.NewNumber(n)}))
	}
	value.Set(root, "items", items)
	return root
}

func TestParallelAggregate_Count(t *testing.T) {
	root := buildScores([]float64{1, 2, 3})
	got, err := ParallelAggregate(root, "items", AggCount, "")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if got.Num != 3 {
		t.Fatalf("expected count 3, got %v", got.Num)
	}
}

func TestParallelAggregate_SumAvgMinMax(t *testing.T) {
	root := buildScores([]float64{10, 20, 30})

	sum, _ := ParallelAggregate(root, "items", AggSum, "score")
	if sum.Num != 60 {
		t.Fatalf("expected sum 60, got %v", sum.Num)
	}
	avg, _ := ParallelAggregate(root, "items", AggAvg, "score")
	if avg.Num != 20 {
		t.Fatalf("expected avg 20, got %v", avg.Num)
	}
	min, _ := ParallelAggregate(root, "items", AggMin, "score")
	if min.Num != 10 {
		t.Fatalf("expected min 10, got %v", min.Num)
	}
	max, _ := ParallelAggregate(root, "items", AggMax, "score")
	if max.Num != 30 {
		t.Fatalf("expected max 30, got %v", max.Num)
	}
}

func TestParallelAggregate_EmptySet(t *testing.T) {
	root := buildScores(nil)

	avg, _ := ParallelAggregate(root, "items", AggAvg, "score")
	if avg.Num != 0 {
		t.Fatalf("expected avg of empty set to be 0, got %v", avg.Num)
	}
	min, _ := ParallelAggregate(root, "items", AggMin, "score")
	if min.Kind != value.KindNull {
		t.Fatalf("expected min of empty set to be null, got %v", min.Kind)
	}
	max, _ := ParallelAggregate(root, "items", AggMax, "score")
	if max.Kind != value.KindNull {
		t.Fatalf("expected max of empty set to be null, got %v", max.Kind)
	}
}

func TestParallelAggregate_SkipsNonNumeric(t *testing.T) {
	root := value.NewEmptyObject()
	items := value.NewArray(
		doc(map[string]*value.Value{"score": value.NewNumber(10)}),
		doc(map[string]*value.Value{"score": value.NewString("n/a")}),
		doc(map[string]*value.Value{"score": value.NewNumber(20)}),
	)
	value.Set(root, "items", items)

	sum, err := ParallelAggregate(root, "items", AggSum, "score")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if sum.Num != 30 {
		t.Fatalf("expected non-numeric item skipped, sum 30, got %v", sum.Num)
	}
}
