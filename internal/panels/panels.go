// Package panels holds the fixed catalog of dashboard aggregations. Each
// panel is one Aggregate configuration plus the row-level steps that must run
// before it.
package panels

import (
	"errors"
	"fmt"

	"sales-dashboard/internal/dataset"
)

type Section string

const (
	SectionGlobal Section = "global"
	SectionStore  Section = "store"
	SectionState  Section = "state"
	SectionExtra  Section = "extra"
)

var Sections = []Section{SectionGlobal, SectionStore, SectionState, SectionExtra}

func ParseSection(s string) (Section, bool) {
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, true
		}
	}
	return "", false
}

// Scope returns the dimension a section is narrowed by, or "" for none.
func (s Section) Scope() string {
	switch s {
	case SectionStore:
		return dataset.ColStoreNbr
	case SectionState:
		return dataset.ColState
	default:
		return ""
	}
}

var ErrUnknownPanel = errors.New("unknown panel")

type Panel struct {
	ID      string        `json:"id"`
	Label   string        `json:"label"`
	Section Section       `json:"section"`
	Query   dataset.Query `json:"query"`

	// PromotionOnly drops rows without items on promotion before aggregating.
	PromotionOnly bool `json:"promotion_only,omitempty"`
	// DistinctBy collapses rows to one per key before aggregating.
	DistinctBy []string `json:"distinct_by,omitempty"`
}

var catalog = []Panel{
	{
		ID:      "top-products",
		Label:   "Top 10 best-selling product families",
		Section: SectionGlobal,
		Query:   sumBy(dataset.ColFamily, dataset.ValueDesc, 10),
	},
	{
		ID:      "sales-by-store",
		Label:   "Total sales by store",
		Section: SectionGlobal,
		Query:   sumBy(dataset.ColStoreNbr, dataset.ValueDesc, 0),
	},
	{
		ID:            "top-promo-stores",
		Label:         "Top 10 stores by sales on promotion",
		Section:       SectionGlobal,
		Query:         sumBy(dataset.ColStoreNbr, dataset.ValueDesc, 10),
		PromotionOnly: true,
	},
	{
		ID:      "weekday-avg",
		Label:   "Average sales by day of week",
		Section: SectionGlobal,
		Query:   meanBy(dataset.ColDayOfWeek, dataset.ValueDesc),
	},
	{
		ID:      "week-avg",
		Label:   "Average sales by week of year",
		Section: SectionGlobal,
		Query:   meanBy(dataset.ColWeek, dataset.KeyAsc),
	},
	{
		ID:      "month-avg",
		Label:   "Average sales by month",
		Section: SectionGlobal,
		Query:   meanBy(dataset.ColMonth, dataset.KeyAsc),
	},
	{
		ID:      "store-sales-by-year",
		Label:   "Total sales by year",
		Section: SectionStore,
		Query:   sumBy(dataset.ColYear, dataset.KeyAsc, 0),
	},
	{
		ID:      "state-transactions-by-year",
		Label:   "Total transactions by year",
		Section: SectionState,
		Query: dataset.Query{
			GroupBy: []string{dataset.ColYear},
			Value:   dataset.ColTransactions,
			Reduce:  dataset.ReduceSum,
			Order:   dataset.KeyAsc,
		},
		// A store-day whose first row has no count still contributes the
		// count found on its other rows.
		DistinctBy: []string{dataset.ColDate, dataset.ColStoreNbr, dataset.ColYear, dataset.ColTransactions},
	},
	{
		ID:      "state-top-stores",
		Label:   "Top 10 stores by sales in the state",
		Section: SectionState,
		Query:   sumBy(dataset.ColStoreNbr, dataset.ValueDesc, 10),
	},
	{
		ID:      "state-top-product",
		Label:   "Best-selling product family in the state",
		Section: SectionState,
		Query:   sumBy(dataset.ColFamily, dataset.ValueDesc, 1),
	},
	{
		ID:      "promo-vs-regular",
		Label:   "Average sales with and without promotion",
		Section: SectionExtra,
		Query:   meanBy(dataset.ColPromoFlag, dataset.ValueDesc),
	},
	{
		ID:      "monthly-sales",
		Label:   "Monthly total sales",
		Section: SectionExtra,
		Query:   sumBy(dataset.ColYearMonth, dataset.KeyAsc, 0),
	},
}

func sumBy(column string, order dataset.Order, limit int) dataset.Query {
	return dataset.Query{
		GroupBy: []string{column},
		Value:   dataset.ColSales,
		Reduce:  dataset.ReduceSum,
		Order:   order,
		Limit:   limit,
	}
}

func meanBy(column string, order dataset.Order) dataset.Query {
	return dataset.Query{
		GroupBy: []string{column},
		Value:   dataset.ColSales,
		Reduce:  dataset.ReduceMean,
		Order:   order,
	}
}

// Catalog returns every panel in display order.
func Catalog() []Panel {
	out := make([]Panel, len(catalog))
	copy(out, catalog)
	return out
}

func InSection(section Section) []Panel {
	var out []Panel
	for _, p := range catalog {
		if p.Section == section {
			out = append(out, p)
		}
	}
	return out
}

func Lookup(id string) (Panel, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Panel{}, fmt.Errorf("%w: %q", ErrUnknownPanel, id)
}

// Run applies the panel's row steps to an already scoped dataset and
// aggregates it.
func Run(d dataset.Dataset, p Panel) (dataset.ResultTable, error) {
	if p.PromotionOnly {
		d = dataset.Where(d, dataset.OnPromotion)
	}
	if len(p.DistinctBy) > 0 {
		var err error
		d, err = dataset.DistinctBy(d, p.DistinctBy...)
		if err != nil {
			return dataset.ResultTable{}, fmt.Errorf("panel %s: %w", p.ID, err)
		}
	}
	table, err := dataset.Aggregate(d, p.Query)
	if err != nil {
		return dataset.ResultTable{}, fmt.Errorf("panel %s: %w", p.ID, err)
	}
	return table, nil
}
