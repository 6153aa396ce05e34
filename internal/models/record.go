package models

import "time"

const (
	PromoFlagPromotion   = "promotion"
	PromoFlagNoPromotion = "no promotion"
)

// Record is one row of the merged sales extract. Pointer fields are nil when
// the source cell was missing or could not be parsed; empty strings play the
// same role for categorical columns.
type Record struct {
	ID          *int64
	Date        *time.Time
	StoreNbr    *int64
	Family      string
	Sales       float64
	OnPromotion int64

	HolidayType string
	Locale      string
	LocaleName  string
	Description string
	Transferred *bool
	OilPrice    *float64

	City      string
	State     string
	StoreType string
	Cluster   *int64

	Transactions *float64

	Year      *int64
	Month     *int64
	Week      *int64
	Quarter   *int64
	DayOfWeek string

	// YearMonth is derived from Date at load time ("2017-03"), empty when Date is nil.
	YearMonth string
}

// PromoFlag buckets a row by whether any item was on promotion.
func (r *Record) PromoFlag() string {
	return PromoFlag(r.OnPromotion)
}

func PromoFlag(onPromotion int64) string {
	if onPromotion > 0 {
		return PromoFlagPromotion
	}
	return PromoFlagNoPromotion
}

// Overview holds the headline KPIs of the global section.
type Overview struct {
	Stores   int `json:"stores"`
	Families int `json:"families"`
	States   int `json:"states"`
	Months   int `json:"months"`
	Rows     int `json:"rows"`
}

type StoreSummary struct {
	Store      string  `json:"store"`
	TotalSales float64 `json:"total_sales"`
	PromoSales float64 `json:"promo_sales"`
	Families   int     `json:"families"`
}

type Options struct {
	Stores    []string `json:"stores"`
	States    []string `json:"states"`
	MinDate   string   `json:"min_date,omitempty"`
	MaxDate   string   `json:"max_date,omitempty"`
	Store     string   `json:"store,omitempty"`
	State     string   `json:"state,omitempty"`
	RowsInUse int      `json:"rows_in_use"`
}
