package query

import (
	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
)

// AggregateOp names one of the supported reductions over a collection.
type AggregateOp string

const (
	AggCount AggregateOp = "count"
	AggSum   AggregateOp = "sum"
	AggAvg   AggregateOp = "avg"
	AggMin   AggregateOp = "min"
	AggMax   AggregateOp = "max"
)

// ParallelAggregate resolves collectionPath under root and reduces it
// with op. field is the dotted sub-path projected to a number for
// sum/avg/min/max; it is ignored by count. Non-numeric or absent
// projections are skipped rather than treated as errors.
func ParallelAggregate(root *value.Value, collectionPath string, op AggregateOp, field string) (*value.Value, error) {
	coll, err := value.Get(root, collectionPath)
	if err != nil {
		return nil, err
	}
	items := collectionItems(coll)

	if op == AggCount {
		return value.NewNumber(float64(len(items))), nil
	}

	nums := projectNumbers(items, field)

	switch op {
	case AggSum:
		return value.NewNumber(sum(nums)), nil
	case AggAvg:
		if len(nums) == 0 {
			return value.NewNumber(0), nil
		}
		return value.NewNumber(sum(nums) / float64(len(nums))), nil
	case AggMin:
		if len(nums) == 0 {
			return value.NewNull(), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return value.NewNumber(m), nil
	case AggMax:
		if len(nums) == 0 {
			return value.NewNull(), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return value.NewNumber(m), nil
	default:
		return nil, &jsonerr.InvalidPathError{Path: string(op)}
	}
}

func projectNumbers(items []*value.Value, field string) []float64 {
	out := make([]float64, 0, len(items))
	for _, it := range items {
		fieldVal := it
		if field != "" {
			v, err := value.Get(it, field)
			if err != nil {
				continue
			}
			fieldVal = v
		}
		if n, ok := asFloat(fieldVal); ok {
			out = append(out, n)
		}
	}
	return out
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}
