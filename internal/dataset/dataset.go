package dataset

import (
	"slices"
	"time"

	"sales-dashboard/internal/models"
)

// Dataset is an immutable, ordered view over loaded records. Filters return
// new Datasets that share the underlying records; nothing mutates a record
// once it has been loaded.
type Dataset struct {
	records []*models.Record
}

// New builds a Dataset from record values, computing the derived columns the
// same way the loader does.
func New(records ...models.Record) Dataset {
	out := make([]*models.Record, len(records))
	for i := range records {
		r := records[i]
		derive(&r)
		out[i] = &r
	}
	return Dataset{records: out}
}

func (d Dataset) Len() int {
	return len(d.records)
}

func (d Dataset) At(i int) *models.Record {
	return d.records[i]
}

// Records returns the rows in order. The slice is a copy; the records are shared.
func (d Dataset) Records() []*models.Record {
	return slices.Clone(d.records)
}

func (d Dataset) concat(other Dataset) Dataset {
	return Dataset{records: append(slices.Clip(d.records), other.records...)}
}

// DateBounds returns the earliest and latest non-null dates.
func DateBounds(d Dataset) (minDate, maxDate time.Time, ok bool) {
	for _, r := range d.records {
		if r.Date == nil {
			continue
		}
		if !ok || r.Date.Before(minDate) {
			minDate = *r.Date
		}
		if !ok || r.Date.After(maxDate) {
			maxDate = *r.Date
		}
		ok = true
	}
	return minDate, maxDate, ok
}
