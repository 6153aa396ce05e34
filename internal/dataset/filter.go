package dataset

import (
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

type rangeKind int

const (
	rangeNone rangeKind = iota
	rangeBounded
	rangeInvalid
)

// DateRange is the resolved form of a date selection: no filter, a complete
// inclusive [Start, End] pair, or an incomplete/unreadable selection. Only a
// complete pair narrows the data.
type DateRange struct {
	kind  rangeKind
	Start time.Time
	End   time.Time
}

func NoDateRange() DateRange {
	return DateRange{kind: rangeNone}
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{kind: rangeBounded, Start: truncateDay(start), End: truncateDay(end)}
}

// ParseDateRange resolves raw boundary input. Both bounds empty means no
// filter; both readable as YYYY-MM-DD gives a range; anything else, such as a
// single bound while a picker is mid-selection, is invalid and filters nothing.
func ParseDateRange(start, end string) DateRange {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return NoDateRange()
	}
	s, errS := time.Parse(dateLayout, start)
	e, errE := time.Parse(dateLayout, end)
	if errS != nil || errE != nil {
		return DateRange{kind: rangeInvalid}
	}
	return NewDateRange(s, e)
}

func (r DateRange) Bounded() bool {
	return r.kind == rangeBounded
}

func (r DateRange) Invalid() bool {
	return r.kind == rangeInvalid
}

func (r DateRange) String() string {
	switch r.kind {
	case rangeBounded:
		return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
	case rangeInvalid:
		return "invalid"
	default:
		return "all"
	}
}

func (r DateRange) contains(d *time.Time) bool {
	if d == nil {
		return false
	}
	return !d.Before(r.Start) && !d.After(r.End)
}

// FilterByDateRange keeps rows whose date lies in the range, inclusive at both
// ends. Rows without a date never match a bounded range. An unbounded or
// invalid range returns the dataset unchanged.
func FilterByDateRange(d Dataset, r DateRange) Dataset {
	if !r.Bounded() {
		return d
	}
	return Where(d, func(rec *models.Record) bool { return r.contains(rec.Date) })
}

// FilterByDimension keeps rows whose column renders exactly as value. Null
// cells never match. A value with no matching rows yields an empty dataset.
func FilterByDimension(d Dataset, column, value string) (Dataset, error) {
	c, err := lookupColumn("filter", column)
	if err != nil {
		return Dataset{}, err
	}
	return Where(d, func(rec *models.Record) bool {
		v := c.Value(rec)
		return !v.Null && v.String() == value
	}), nil
}

// Where keeps the rows for which keep returns true, in order.
func Where(d Dataset, keep func(*models.Record) bool) Dataset {
	out := make([]*models.Record, 0, len(d.records)/4)
	for _, r := range d.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return Dataset{records: out}
}

// OnPromotion is the row predicate for promotion-only views.
func OnPromotion(r *models.Record) bool {
	return r.OnPromotion > 0
}
