package dataset

import (
	"cmp"
	"slices"
	"strings"

	"sales-dashboard/internal/models"
)

type Reduce string

const (
	ReduceSum  Reduce = "sum"
	ReduceMean Reduce = "mean"
)

type Order string

const (
	ValueDesc Order = "value_desc"
	ValueAsc  Order = "value_asc"
	KeyAsc    Order = "key_asc"
)

// Query configures one group → reduce → sort → limit pass.
type Query struct {
	GroupBy []string `json:"group_by"`
	Value   string   `json:"value"`
	Reduce  Reduce   `json:"reduce"`
	Order   Order    `json:"order"`
	// Limit keeps the first N groups after sorting; zero keeps all.
	Limit int `json:"limit,omitempty"`
}

type ResultRow struct {
	Key []Value `json:"key"`
	// Value is nil for a mean over a group with no non-null values.
	Value *float64 `json:"value"`
}

// Label joins the key parts for display.
func (r ResultRow) Label() string {
	parts := make([]string, len(r.Key))
	for i, k := range r.Key {
		if k.Null {
			parts[i] = "(null)"
			continue
		}
		parts[i] = k.String()
	}
	return strings.Join(parts, " / ")
}

type ResultTable struct {
	GroupBy []string    `json:"group_by"`
	Value   string      `json:"value"`
	Rows    []ResultRow `json:"rows"`
}

func (t ResultTable) Len() int {
	return len(t.Rows)
}

func (t ResultTable) Empty() bool {
	return len(t.Rows) == 0
}

// Top returns the first row, if any.
func (t ResultTable) Top() (ResultRow, bool) {
	if len(t.Rows) == 0 {
		return ResultRow{}, false
	}
	return t.Rows[0], true
}

type group struct {
	key   []Value
	sum   float64
	count int
}

// Aggregate partitions rows by the GroupBy columns, reduces the Value column
// within each partition, orders the partitions and applies the limit. Null
// keys form their own group. Sum skips nulls; mean averages non-null values
// and is nil when there are none. Ties keep the order in which groups were
// first seen.
func Aggregate(d Dataset, q Query) (ResultTable, error) {
	keyCols, valueCol, err := q.columns()
	if err != nil {
		return ResultTable{}, err
	}

	table := ResultTable{
		GroupBy: slices.Clone(q.GroupBy),
		Value:   q.Value,
		Rows:    []ResultRow{},
	}
	if d.Len() == 0 {
		return table, nil
	}

	index := make(map[string]int)
	groups := make([]*group, 0)
	var sb strings.Builder

	for _, r := range d.records {
		sb.Reset()
		for i, c := range keyCols {
			if i > 0 {
				sb.WriteByte(0x1f)
			}
			sb.WriteString(c.Value(r).groupKey())
		}
		k := sb.String()

		gi, ok := index[k]
		if !ok {
			key := make([]Value, len(keyCols))
			for i, c := range keyCols {
				key[i] = c.Value(r)
			}
			gi = len(groups)
			index[k] = gi
			groups = append(groups, &group{key: key})
		}

		if n, ok := valueCol.Value(r).Number(); ok {
			groups[gi].sum += n
			groups[gi].count++
		}
	}

	table.Rows = make([]ResultRow, len(groups))
	for i, g := range groups {
		table.Rows[i] = ResultRow{Key: g.key, Value: reduce(q.Reduce, g)}
	}

	slices.SortStableFunc(table.Rows, rowOrder(q.Order))

	if q.Limit > 0 && len(table.Rows) > q.Limit {
		table.Rows = table.Rows[:q.Limit]
	}
	return table, nil
}

func (q Query) columns() ([]Column, Column, error) {
	if len(q.GroupBy) == 0 {
		return nil, Column{}, &ConfigError{Op: "aggregate", Reason: "no grouping columns"}
	}
	keyCols := make([]Column, len(q.GroupBy))
	for i, name := range q.GroupBy {
		c, err := lookupColumn("aggregate", name)
		if err != nil {
			return nil, Column{}, err
		}
		keyCols[i] = c
	}
	valueCol, err := lookupColumn("aggregate", q.Value)
	if err != nil {
		return nil, Column{}, err
	}
	if !valueCol.Kind.Numeric() {
		return nil, Column{}, &ConfigError{Op: "aggregate", Column: q.Value, Reason: "value column is not numeric"}
	}
	switch q.Reduce {
	case ReduceSum, ReduceMean:
	default:
		return nil, Column{}, &ConfigError{Op: "aggregate", Reason: "unknown reduction " + string(q.Reduce)}
	}
	switch q.Order {
	case ValueDesc, ValueAsc, KeyAsc:
	default:
		return nil, Column{}, &ConfigError{Op: "aggregate", Reason: "unknown order " + string(q.Order)}
	}
	if q.Limit < 0 {
		return nil, Column{}, &ConfigError{Op: "aggregate", Reason: "negative limit"}
	}
	return keyCols, valueCol, nil
}

func reduce(fn Reduce, g *group) *float64 {
	switch fn {
	case ReduceMean:
		if g.count == 0 {
			return nil
		}
		v := g.sum / float64(g.count)
		return &v
	default:
		v := g.sum
		return &v
	}
}

func rowOrder(order Order) func(a, b ResultRow) int {
	switch order {
	case KeyAsc:
		return func(a, b ResultRow) int {
			for i := range a.Key {
				if c := CompareValues(a.Key[i], b.Key[i]); c != 0 {
					return c
				}
			}
			return 0
		}
	case ValueAsc:
		return func(a, b ResultRow) int { return compareResult(a.Value, b.Value, false) }
	default:
		return func(a, b ResultRow) int { return compareResult(a.Value, b.Value, true) }
	}
}

// compareResult orders reduced values; nil sorts last in either direction.
func compareResult(a, b *float64, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if desc {
		return cmp.Compare(*b, *a)
	}
	return cmp.Compare(*a, *b)
}

// Sum totals a numeric column, skipping nulls.
func Sum(d Dataset, column string) (float64, error) {
	c, err := lookupColumn("sum", column)
	if err != nil {
		return 0, err
	}
	if !c.Kind.Numeric() {
		return 0, &ConfigError{Op: "sum", Column: column, Reason: "value column is not numeric"}
	}
	var total float64
	for _, r := range d.records {
		if n, ok := c.Value(r).Number(); ok {
			total += n
		}
	}
	return total, nil
}

// DistinctValues returns the non-null values of a column in ascending order.
func DistinctValues(d Dataset, column string) ([]Value, error) {
	c, err := lookupColumn("distinct", column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	values := make([]Value, 0)
	for _, r := range d.records {
		v := c.Value(r)
		if v.Null {
			continue
		}
		k := v.groupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, v)
	}
	slices.SortFunc(values, CompareValues)
	return values, nil
}

// CountDistinct counts the non-null distinct values of a column.
func CountDistinct(d Dataset, column string) (int, error) {
	values, err := DistinctValues(d, column)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// DistinctBy keeps the first row for each distinct combination of columns.
// Transactions are recorded once per store-day but repeated on every product
// family row, so they must be collapsed this way before summing.
func DistinctBy(d Dataset, columns ...string) (Dataset, error) {
	if len(columns) == 0 {
		return Dataset{}, &ConfigError{Op: "distinct", Reason: "no key columns"}
	}
	cols := make([]Column, len(columns))
	for i, name := range columns {
		c, err := lookupColumn("distinct", name)
		if err != nil {
			return Dataset{}, err
		}
		cols[i] = c
	}

	seen := make(map[string]struct{}, len(d.records)/8)
	out := make([]*models.Record, 0, len(d.records)/8)
	var sb strings.Builder
	for _, r := range d.records {
		sb.Reset()
		for i, c := range cols {
			if i > 0 {
				sb.WriteByte(0x1f)
			}
			sb.WriteString(c.Value(r).groupKey())
		}
		k := sb.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return Dataset{records: out}, nil
}
