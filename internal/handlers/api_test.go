package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(nil)
	a.SetData([]models.Record{
		{ID: ptr(int64(1)), Date: day(2017, 1, 1), StoreNbr: ptr(int64(1)), Family: "GROCERY I", Sales: 100, State: "Pichincha", Year: ptr(int64(2017))},
		{ID: ptr(int64(2)), Date: day(2017, 1, 1), StoreNbr: ptr(int64(1)), Family: "BEVERAGES", Sales: 50, OnPromotion: 2, State: "Pichincha", Year: ptr(int64(2017))},
		{ID: ptr(int64(3)), Date: day(2017, 2, 1), StoreNbr: ptr(int64(2)), Family: "GROCERY I", Sales: 30, State: "Guayas", Year: ptr(int64(2017))},
	})
	return a
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

type panelPayload struct {
	Panel struct {
		ID string `json:"id"`
	} `json:"panel"`
	Scope string `json:"scope"`
	Table struct {
		Rows []struct {
			Key   []any    `json:"key"`
			Value *float64 `json:"value"`
		} `json:"rows"`
	} `json:"table"`
}

func TestNewAPIHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, slog.Default())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.analytics != analytics {
		t.Error("NewAPIHandlers() should set analytics field")
	}
}

func TestSelectionFromQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantBounded bool
		wantStore   string
		wantState   string
	}{
		{name: "empty", query: ""},
		{name: "full range", query: "start=2017-01-01&end=2017-01-31", wantBounded: true},
		{name: "half range", query: "start=2017-01-01"},
		{name: "dimensions", query: "store=5&state=Guayas", wantStore: "5", wantState: "Guayas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/overview?"+tt.query, nil)
			sel := selectionFromQuery(req)
			if sel.Range.Bounded() != tt.wantBounded {
				t.Errorf("Bounded() = %v, want %v", sel.Range.Bounded(), tt.wantBounded)
			}
			if sel.Store != tt.wantStore || sel.State != tt.wantState {
				t.Errorf("store/state = %q/%q, want %q/%q", sel.Store, sel.State, tt.wantStore, tt.wantState)
			}
		})
	}
}

func TestAPIHandlers_HandlePanel(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	tests := []struct {
		name     string
		id       string
		query    string
		wantKeys []string
		wantVals []float64
	}{
		{
			name:     "top products",
			id:       "top-products",
			wantKeys: []string{"GROCERY I", "BEVERAGES"},
			wantVals: []float64{130, 50},
		},
		{
			name:     "top products in january",
			id:       "top-products",
			query:    "start=2017-01-01&end=2017-01-31",
			wantKeys: []string{"GROCERY I", "BEVERAGES"},
			wantVals: []float64{100, 50},
		},
		{
			name:     "state panel scoped by query",
			id:       "state-top-stores",
			query:    "state=Guayas",
			wantKeys: []string{"2"},
			wantVals: []float64{30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/panels/"+tt.id+"?"+tt.query, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()

			handlers.HandlePanel(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
			}
			if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
				t.Errorf("expected cache-control 'public, max-age=300', got %q", cc)
			}

			env := decodeEnvelope(t, w)
			if !env.Success {
				t.Fatal("expected success=true in response")
			}
			var payload panelPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				t.Fatalf("failed to decode panel: %v", err)
			}
			if payload.Panel.ID != tt.id {
				t.Errorf("panel id = %q, want %q", payload.Panel.ID, tt.id)
			}

			var keys []string
			var vals []float64
			for _, r := range payload.Table.Rows {
				keys = append(keys, fmt.Sprint(r.Key[0]))
				vals = append(vals, *r.Value)
			}
			if diff := cmp.Diff(tt.wantKeys, keys); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantVals, vals); diff != "" {
				t.Errorf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAPIHandlers_HandlePanel_Unknown(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/panels/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	handlers.HandlePanel(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Success || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error envelope: %+v", env)
	}
}

func TestAPIHandlers_HandlePanels(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/panels", nil)
	w := httptest.NewRecorder()

	handlers.HandlePanels(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var catalog []map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &catalog); err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 12 {
		t.Errorf("expected 12 panels, got %d", len(catalog))
	}
}

func TestAPIHandlers_HandleSection(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	tests := []struct {
		section    string
		wantStatus int
		wantCount  int
	}{
		{section: "global", wantStatus: http.StatusOK, wantCount: 6},
		{section: "store", wantStatus: http.StatusOK, wantCount: 1},
		{section: "state", wantStatus: http.StatusOK, wantCount: 3},
		{section: "extra", wantStatus: http.StatusOK, wantCount: 2},
		{section: "regional", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sections/"+tt.section, nil)
			req.SetPathValue("section", tt.section)
			w := httptest.NewRecorder()

			handlers.HandleSection(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var results []panelPayload
			if err := json.Unmarshal(decodeEnvelope(t, w).Data, &results); err != nil {
				t.Fatal(err)
			}
			if len(results) != tt.wantCount {
				t.Errorf("expected %d panels, got %d", tt.wantCount, len(results))
			}
		})
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/overview?start=2017-02-01&end=2017-02-28", nil)
	w := httptest.NewRecorder()

	handlers.HandleOverview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var got models.Overview
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	want := models.Overview{Stores: 1, Families: 1, States: 1, Months: 1, Rows: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overview mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	w := httptest.NewRecorder()

	handlers.HandleOptions(w, req)

	var got models.Options
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "2"}, got.Stores); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Guayas", "Pichincha"}, got.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if got.MinDate != "2017-01-01" || got.MaxDate != "2017-02-01" {
		t.Errorf("date bounds = %s..%s", got.MinDate, got.MaxDate)
	}
}

func TestAPIHandlers_HandleStoreSummary(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/stores/summary?store=1", nil)
	w := httptest.NewRecorder()

	handlers.HandleStoreSummary(w, req)

	var got models.StoreSummary
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	want := models.StoreSummary{Store: "1", TotalSales: 150, PromoSales: 50, Families: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleStoreExport(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	t.Run("csv", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stores/export/csv?store=1", nil)
		req.SetPathValue("format", "csv")
		w := httptest.NewRecorder()

		handlers.HandleStoreExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="store_1.csv"` {
			t.Errorf("unexpected Content-Disposition %q", cd)
		}
		records, err := csv.NewReader(w.Body).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header + 2 rows, got %d lines", len(records))
		}
		if diff := cmp.Diff(dataset.SourceColumns(), records[0]); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stores/export/xlsx?store=2", nil)
		req.SetPathValue("format", "xlsx")
		w := httptest.NewRecorder()

		handlers.HandleStoreExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		if err != nil {
			t.Fatalf("response is not a workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows("store_2")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 2 {
			t.Errorf("expected header + 1 row, got %d", len(rows))
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stores/export/pdf", nil)
		req.SetPathValue("format", "pdf")
		w := httptest.NewRecorder()

		handlers.HandleStoreExport(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestAPIHandlers_HandleStoreExport_UnmatchedStore(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())
	long := strings.Repeat("9", 36)

	tests := []struct {
		name      string
		store     string
		format    string
		wantSheet string
		wantFile  string
	}{
		{name: "csv with sheet-hostile characters", store: "no/such[store]", format: "csv", wantFile: "store_no_such_store_.csv"},
		{name: "xlsx with sheet-hostile characters", store: "no/such[store]", format: "xlsx", wantSheet: "store_no_such_store_", wantFile: "store_no_such_store_.xlsx"},
		{name: "xlsx with a long store value", store: long, format: "xlsx", wantSheet: "store_" + long[:25], wantFile: "store_" + long[:25] + ".xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/stores/export/" + tt.format + "?store=" + url.QueryEscape(tt.store)
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.SetPathValue("format", tt.format)
			w := httptest.NewRecorder()

			handlers.HandleStoreExport(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if w.Body.Len() == 0 {
				t.Fatal("export body is empty")
			}
			if cd := w.Header().Get("Content-Disposition"); cd != fmt.Sprintf("attachment; filename=%q", tt.wantFile) {
				t.Errorf("unexpected Content-Disposition %q", cd)
			}

			if tt.format == "csv" {
				records, err := csv.NewReader(w.Body).ReadAll()
				if err != nil {
					t.Fatal(err)
				}
				if len(records) != 1 {
					t.Errorf("expected header only, got %d lines", len(records))
				}
				return
			}

			f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
			if err != nil {
				t.Fatalf("response is not a workbook: %v", err)
			}
			defer f.Close()
			rows, err := f.GetRows(tt.wantSheet)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 1 {
				t.Errorf("expected header only, got %d rows", len(rows))
			}
		})
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var data map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["status"] != "healthy" {
		t.Errorf("expected status=healthy, got %q", data["status"])
	}
	if _, err := time.Parse(time.RFC3339, data["timestamp"]); err != nil {
		t.Errorf("timestamp %q is not RFC3339", data["timestamp"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	handlers.HandleStats(w, req)

	var data map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["record_count"] != float64(3) {
		t.Errorf("expected record_count 3, got %v", data["record_count"])
	}
	if data["panels"] != float64(12) {
		t.Errorf("expected 12 panels, got %v", data["panels"])
	}
}

func BenchmarkAPIHandlers_HandlePanel(b *testing.B) {
	handlers := NewAPIHandlers(createTestAnalytics(), slog.Default())

	for b.Loop() {
		req := httptest.NewRequest(http.MethodGet, "/api/panels/top-products", nil)
		req.SetPathValue("id", "top-products")
		w := httptest.NewRecorder()
		handlers.HandlePanel(w, req)
	}
}
