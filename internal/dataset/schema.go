package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

const (
	ColID           = "id"
	ColDate         = "date"
	ColStoreNbr     = "store_nbr"
	ColFamily       = "family"
	ColSales        = "sales"
	ColOnPromotion  = "onpromotion"
	ColHolidayType  = "holiday_type"
	ColLocale       = "locale"
	ColLocaleName   = "locale_name"
	ColDescription  = "description"
	ColTransferred  = "transferred"
	ColOilPrice     = "dcoilwtico"
	ColCity         = "city"
	ColState        = "state"
	ColStoreType    = "store_type"
	ColCluster      = "cluster"
	ColTransactions = "transactions"
	ColYear         = "year"
	ColMonth        = "month"
	ColWeek         = "week"
	ColQuarter      = "quarter"
	ColDayOfWeek    = "day_of_week"

	ColYearMonth = "year_month"
	ColPromoFlag = "promo_flag"
)

// Column describes one schema column. Source columns carry a parser that
// writes the raw cell into the record and reports false when the cell was
// present but unusable; derived columns are computed after parsing.
type Column struct {
	Name    string
	Kind    Kind
	Derived bool

	get   func(*models.Record) Value
	parse func(r *models.Record, raw string, in *interner) bool
}

func (c Column) Value(r *models.Record) Value {
	return c.get(r)
}

var schema = []Column{
	intColumn(ColID, func(r *models.Record) **int64 { return &r.ID }),
	{
		Name: ColDate,
		Kind: KindDate,
		get:  func(r *models.Record) Value { return dateValue(r.Date) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			d, ok := parseDate(raw)
			r.Date = d
			return ok
		},
	},
	intColumn(ColStoreNbr, func(r *models.Record) **int64 { return &r.StoreNbr }),
	categoryColumn(ColFamily, func(r *models.Record) *string { return &r.Family }),
	{
		Name: ColSales,
		Kind: KindFloat,
		get:  func(r *models.Record) Value { return Value{Kind: KindFloat, Float: r.Sales} },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			f, ok := parseFloat(raw)
			if f == nil || *f < 0 {
				r.Sales = 0
				return ok && f == nil
			}
			r.Sales = *f
			return true
		},
	},
	{
		Name: ColOnPromotion,
		Kind: KindInt,
		get:  func(r *models.Record) Value { return Value{Kind: KindInt, Int: r.OnPromotion} },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			n, ok := parseInt(raw)
			if n == nil || *n < 0 {
				r.OnPromotion = 0
				return ok && n == nil
			}
			r.OnPromotion = *n
			return true
		},
	},
	categoryColumn(ColHolidayType, func(r *models.Record) *string { return &r.HolidayType }),
	categoryColumn(ColLocale, func(r *models.Record) *string { return &r.Locale }),
	categoryColumn(ColLocaleName, func(r *models.Record) *string { return &r.LocaleName }),
	{
		Name: ColDescription,
		Kind: KindString,
		get:  func(r *models.Record) Value { return textValue(KindString, r.Description) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			r.Description = strings.TrimSpace(raw)
			return true
		},
	},
	{
		Name: ColTransferred,
		Kind: KindBool,
		get:  func(r *models.Record) Value { return boolValue(r.Transferred) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			b, ok := parseBool(raw)
			r.Transferred = b
			return ok
		},
	},
	floatColumn(ColOilPrice, func(r *models.Record) **float64 { return &r.OilPrice }),
	categoryColumn(ColCity, func(r *models.Record) *string { return &r.City }),
	categoryColumn(ColState, func(r *models.Record) *string { return &r.State }),
	categoryColumn(ColStoreType, func(r *models.Record) *string { return &r.StoreType }),
	intColumn(ColCluster, func(r *models.Record) **int64 { return &r.Cluster }),
	{
		Name: ColTransactions,
		Kind: KindFloat,
		get:  func(r *models.Record) Value { return floatValue(r.Transactions) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			f, ok := parseFloat(raw)
			if f != nil && *f < 0 {
				r.Transactions = nil
				return false
			}
			r.Transactions = f
			return ok
		},
	},
	intColumn(ColYear, func(r *models.Record) **int64 { return &r.Year }),
	intColumn(ColMonth, func(r *models.Record) **int64 { return &r.Month }),
	intColumn(ColWeek, func(r *models.Record) **int64 { return &r.Week }),
	intColumn(ColQuarter, func(r *models.Record) **int64 { return &r.Quarter }),
	categoryColumn(ColDayOfWeek, func(r *models.Record) *string { return &r.DayOfWeek }),

	{
		Name:    ColYearMonth,
		Kind:    KindString,
		Derived: true,
		get:     func(r *models.Record) Value { return textValue(KindString, r.YearMonth) },
	},
	{
		Name:    ColPromoFlag,
		Kind:    KindCategory,
		Derived: true,
		get:     func(r *models.Record) Value { return textValue(KindCategory, r.PromoFlag()) },
	},
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(schema))
	for i, c := range schema {
		idx[c.Name] = i
	}
	return idx
}()

// Lookup returns the schema column with the given name.
func Lookup(name string) (Column, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return schema[i], true
}

// SourceColumns lists the columns every input file must provide, in export order.
func SourceColumns() []string {
	names := make([]string, 0, len(schema))
	for _, c := range schema {
		if !c.Derived {
			names = append(names, c.Name)
		}
	}
	return names
}

// derive fills the computed columns and re-applies the non-null invariants.
func derive(r *models.Record) {
	if r.Date != nil {
		d := truncateDay(*r.Date)
		r.Date = &d
		r.YearMonth = d.Format("2006-01")
	} else {
		r.YearMonth = ""
	}
	if r.Sales < 0 || math.IsNaN(r.Sales) || math.IsInf(r.Sales, 0) {
		r.Sales = 0
	}
	if r.OnPromotion < 0 {
		r.OnPromotion = 0
	}
	if r.Transactions != nil && (*r.Transactions < 0 || math.IsNaN(*r.Transactions) || math.IsInf(*r.Transactions, 0)) {
		r.Transactions = nil
	}
}

func intColumn(name string, field func(*models.Record) **int64) Column {
	return Column{
		Name: name,
		Kind: KindInt,
		get:  func(r *models.Record) Value { return intValue(*field(r)) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			n, ok := parseInt(raw)
			*field(r) = n
			return ok
		},
	}
}

func floatColumn(name string, field func(*models.Record) **float64) Column {
	return Column{
		Name: name,
		Kind: KindFloat,
		get:  func(r *models.Record) Value { return floatValue(*field(r)) },
		parse: func(r *models.Record, raw string, _ *interner) bool {
			f, ok := parseFloat(raw)
			*field(r) = f
			return ok
		},
	}
}

func categoryColumn(name string, field func(*models.Record) *string) Column {
	return Column{
		Name: name,
		Kind: KindCategory,
		get:  func(r *models.Record) Value { return textValue(KindCategory, *field(r)) },
		parse: func(r *models.Record, raw string, in *interner) bool {
			*field(r) = in.intern(strings.TrimSpace(raw))
			return true
		},
	}
}

func isMissing(raw string) bool {
	switch raw {
	case "", "NaN", "nan", "NA", "null", "NULL", "None":
		return true
	}
	return false
}

// The parsers return (nil, true) for an empty cell and (nil, false) for a
// cell that was present but could not be read.

func parseInt(raw string) (*int64, bool) {
	raw = strings.TrimSpace(raw)
	if isMissing(raw) {
		return nil, true
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	n := int64(f)
	return &n, true
}

func parseFloat(raw string) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if isMissing(raw) {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

func parseBool(raw string) (*bool, bool) {
	raw = strings.TrimSpace(raw)
	if isMissing(raw) {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}

var dateLayouts = []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339}

func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if isMissing(raw) {
		return nil, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := truncateDay(t)
			return &d, true
		}
	}
	return nil, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// interner keeps one copy of each categorical string per load.
type interner struct {
	seen map[string]string
}

func newInterner() *interner {
	return &interner{seen: make(map[string]string)}
}

func (in *interner) intern(s string) string {
	if isMissing(s) {
		return ""
	}
	if v, ok := in.seen[s]; ok {
		return v
	}
	in.seen[s] = s
	return s
}
