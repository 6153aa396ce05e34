package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/panels"
)

// Selection is what the presentation layer passes down: an optional date
// range and the store and state picked in their sections.
type Selection struct {
	Range dataset.DateRange
	Store string
	State string
}

type PanelResult struct {
	Panel panels.Panel        `json:"panel"`
	Scope string              `json:"scope,omitempty"`
	Table dataset.ResultTable `json:"table"`
}

// Analytics owns the loaded dataset and answers every dashboard query from it.
// The dataset is replaced wholesale on load and never mutated, so readers
// only hold the lock long enough to copy the handle.
type Analytics struct {
	mu       sync.RWMutex
	data     dataset.Dataset
	stats    dataset.LoadStats
	sources  []string
	loadedAt time.Time
	loader   *dataset.Loader
	logger   *slog.Logger
}

func NewAnalytics(loader *dataset.Loader) *Analytics {
	logger := slog.Default()
	if loader == nil {
		loader = dataset.NewLoader(logger, 0)
	}
	return &Analytics{
		loader: loader,
		logger: logger,
	}
}

// SetData replaces the dataset with in-memory records.
func (a *Analytics) SetData(records []models.Record) {
	data := dataset.New(records...)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.data = data
	a.stats = dataset.LoadStats{Rows: data.Len(), BadCells: map[string]int{}}
	a.sources = nil
	a.loadedAt = time.Now()
}

func (a *Analytics) LoadFromCSV(ctx context.Context, paths ...string) error {
	data, stats, err := a.loader.Load(ctx, paths...)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	a.mu.Lock()
	a.data = data
	a.stats = stats
	a.sources = append([]string(nil), paths...)
	a.loadedAt = time.Now()
	a.mu.Unlock()

	observability.RecordDatasetLoad(stats.Rows, stats.Duration, stats.BadCells)
	return nil
}

func (a *Analytics) snapshot() dataset.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// dated applies the date range only.
func (a *Analytics) dated(sel Selection) dataset.Dataset {
	return dataset.FilterByDateRange(a.snapshot(), sel.Range)
}

// scope narrows the date-filtered rows to the section's dimension. An empty
// selection falls back to the first value available, the same default a
// picker shows before the user chooses.
func (a *Analytics) scope(sel Selection, section panels.Section) (dataset.Dataset, string, error) {
	data := a.dated(sel)

	column := section.Scope()
	if column == "" {
		return data, "", nil
	}

	value := sel.Store
	if column == dataset.ColState {
		value = sel.State
	}
	if value == "" {
		values, err := dataset.DistinctValues(data, column)
		if err != nil {
			return dataset.Dataset{}, "", err
		}
		if len(values) == 0 {
			return dataset.Dataset{}, "", nil
		}
		value = values[0].String()
	}

	scoped, err := dataset.FilterByDimension(data, column, value)
	if err != nil {
		return dataset.Dataset{}, "", err
	}
	return scoped, value, nil
}

func (a *Analytics) Panel(ctx context.Context, id string, sel Selection) (PanelResult, error) {
	p, err := panels.Lookup(id)
	if err != nil {
		return PanelResult{}, err
	}
	return a.runPanel(ctx, p, sel)
}

func (a *Analytics) runPanel(ctx context.Context, p panels.Panel, sel Selection) (PanelResult, error) {
	_, span := observability.StartSpan(ctx, "panel "+p.ID)
	span.SetTag("range", sel.Range.String())

	data, scopeValue, err := a.scope(sel, p.Section)
	var table dataset.ResultTable
	if err == nil {
		table, err = panels.Run(data, p)
	}
	if err != nil {
		span.SetError(err)
	}
	span.SetTag("rows_in", fmt.Sprint(data.Len()))
	span.SetTag("rows_out", fmt.Sprint(table.Len()))

	duration := span.Finish()
	observability.ObservePanelQuery(p.ID, duration, err)
	a.logger.Debug("panel computed", "span", span)

	if err != nil {
		return PanelResult{}, err
	}
	return PanelResult{Panel: p, Scope: scopeValue, Table: table}, nil
}

// Section computes every panel of one dashboard section in catalog order.
func (a *Analytics) Section(ctx context.Context, section panels.Section, sel Selection) ([]PanelResult, error) {
	list := panels.InSection(section)
	results := make([]PanelResult, 0, len(list))
	for _, p := range list {
		res, err := a.runPanel(ctx, p, sel)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Overview counts distinct stores, families, states and calendar months in
// the date-filtered rows.
func (a *Analytics) Overview(sel Selection) (models.Overview, error) {
	data := a.dated(sel)

	counts := make([]int, 4)
	for i, column := range []string{dataset.ColStoreNbr, dataset.ColFamily, dataset.ColState, dataset.ColYearMonth} {
		n, err := dataset.CountDistinct(data, column)
		if err != nil {
			return models.Overview{}, err
		}
		counts[i] = n
	}

	return models.Overview{
		Stores:   counts[0],
		Families: counts[1],
		States:   counts[2],
		Months:   counts[3],
		Rows:     data.Len(),
	}, nil
}

func (a *Analytics) StoreSummary(sel Selection) (models.StoreSummary, error) {
	data, store, err := a.scope(sel, panels.SectionStore)
	if err != nil {
		return models.StoreSummary{}, err
	}

	total, err := dataset.Sum(data, dataset.ColSales)
	if err != nil {
		return models.StoreSummary{}, err
	}
	promo, err := dataset.Sum(dataset.Where(data, dataset.OnPromotion), dataset.ColSales)
	if err != nil {
		return models.StoreSummary{}, err
	}
	families, err := dataset.CountDistinct(data, dataset.ColFamily)
	if err != nil {
		return models.StoreSummary{}, err
	}

	return models.StoreSummary{
		Store:      store,
		TotalSales: total,
		PromoSales: promo,
		Families:   families,
	}, nil
}

// StoreRows returns the selected store's rows for download along with the
// store that was resolved.
func (a *Analytics) StoreRows(sel Selection) (dataset.Dataset, string, error) {
	return a.scope(sel, panels.SectionStore)
}

// Options lists the values the store and state pickers offer for the current
// date range, plus the full dataset's date bounds.
func (a *Analytics) Options(sel Selection) (models.Options, error) {
	data := a.dated(sel)

	stores, err := dataset.DistinctValues(data, dataset.ColStoreNbr)
	if err != nil {
		return models.Options{}, err
	}
	states, err := dataset.DistinctValues(data, dataset.ColState)
	if err != nil {
		return models.Options{}, err
	}

	opts := models.Options{
		Stores:    renderValues(stores),
		States:    renderValues(states),
		Store:     sel.Store,
		State:     sel.State,
		RowsInUse: data.Len(),
	}
	if opts.Store == "" && len(opts.Stores) > 0 {
		opts.Store = opts.Stores[0]
	}
	if opts.State == "" && len(opts.States) > 0 {
		opts.State = opts.States[0]
	}
	if minDate, maxDate, ok := dataset.DateBounds(a.snapshot()); ok {
		opts.MinDate = minDate.Format(time.DateOnly)
		opts.MaxDate = maxDate.Format(time.DateOnly)
	}
	return opts, nil
}

func renderValues(values []dataset.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// Stats reports what was loaded, for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"record_count":  a.data.Len(),
		"sources":       a.sources,
		"loaded_at":     a.loadedAt,
		"skipped_lines": a.stats.SkippedLines,
		"bad_cells":     a.stats.BadCells,
		"load_duration": a.stats.Duration.String(),
		"panels":        len(panels.Catalog()),
	}
}
