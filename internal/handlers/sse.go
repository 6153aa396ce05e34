package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/panels"
	"sales-dashboard/internal/services"
)

const maxTableRows = 60

var panelTemplate = template.Must(template.New("panel").Funcs(template.FuncMap{
	"join": func(cols []string) string { return strings.Join(cols, " / ") },
	"amount": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
}).Parse(`
<div id="panel-{{.Panel.ID}}" class="panel">
<h3>{{.Panel.Label}}{{if .Scope}} <small>{{.Scope}}</small>{{end}}</h3>
{{if .Table.Empty}}<p class="no-data">No data for the current selection</p>{{else}}
<table class="modern-table">
<thead><tr><th>{{join .Table.GroupBy}}</th><th>{{.Table.Value}}</th></tr></thead>
<tbody>
{{range $i, $row := .Table.Rows}}{{if lt $i $.MaxRows}}<tr>
<td>{{$row.Label}}</td>
<td><strong>{{amount $row.Value}}</strong></td>
</tr>{{end}}{{end}}
</tbody>
</table>{{end}}
</div>`))

var overviewTemplate = template.Must(template.New("overview").Parse(`
<div id="overview" class="kpis">
<div class="kpi"><span>Stores</span><strong>{{.Stores}}</strong></div>
<div class="kpi"><span>Product families</span><strong>{{.Families}}</strong></div>
<div class="kpi"><span>States</span><strong>{{.States}}</strong></div>
<div class="kpi"><span>Months with data</span><strong>{{.Months}}</strong></div>
<div class="kpi"><span>Filtered rows</span><strong>{{.Rows}}</strong></div>
</div>`))

// pickerTemplate renders the store and state selects. Datastar morphs them in
// place, so the bindings survive each refresh.
var pickerTemplate = template.Must(template.New("pickers").Parse(`
<select id="store-picker" data-bind-store data-on-change="@get('/sse/refresh-all')">
{{range .Stores}}<option value="{{.}}"{{if eq . $.Store}} selected{{end}}>{{.}}</option>
{{end}}</select>
<select id="state-picker" data-bind-state data-on-change="@get('/sse/refresh-all')">
{{range .States}}<option value="{{.}}"{{if eq . $.State}} selected{{end}}>{{.}}</option>
{{end}}</select>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// selectionSignals mirrors the filter signals held by the page.
type selectionSignals struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Store string `json:"store"`
	State string `json:"state"`
}

// readSelection prefers datastar signals and falls back to plain query
// parameters so the endpoints can be exercised without a browser.
func (h *SSEHandlers) readSelection(r *http.Request) services.Selection {
	if r.URL.Query().Has("datastar") {
		var sig selectionSignals
		if err := datastar.ReadSignals(r, &sig); err == nil {
			return services.Selection{
				Range: dataset.ParseDateRange(sig.Start, sig.End),
				Store: sig.Store,
				State: sig.State,
			}
		} else {
			h.logger.Warn("unreadable datastar signals", "error", err)
		}
	}
	return selectionFromQuery(r)
}

type panelView struct {
	services.PanelResult
	MaxRows int
}

func (h *SSEHandlers) renderPanel(result services.PanelResult) (string, error) {
	var buf strings.Builder
	err := panelTemplate.Execute(&buf, panelView{PanelResult: result, MaxRows: maxTableRows})
	return buf.String(), err
}

// patchSection sends one fragment per panel and returns the tables keyed by
// panel id for the signal patch.
func (h *SSEHandlers) patchSection(sse *datastar.ServerSentEventGenerator, r *http.Request, section panels.Section, sel services.Selection) (map[string]dataset.ResultTable, error) {
	results, err := h.analytics.Section(r.Context(), section, sel)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]dataset.ResultTable, len(results))
	for _, res := range results {
		html, err := h.renderPanel(res)
		if err != nil {
			return nil, fmt.Errorf("render panel %s: %w", res.Panel.ID, err)
		}
		if err := sse.PatchElements(html); err != nil {
			return nil, err
		}
		tables[res.Panel.ID] = res.Table
	}
	return tables, nil
}

func (h *SSEHandlers) HandleSection(w http.ResponseWriter, r *http.Request) {
	section, ok := panels.ParseSection(r.PathValue("section"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	sel := h.readSelection(r)
	sse := datastar.NewSSE(w, r)

	tables, err := h.patchSection(sse, r, section, sel)
	if err != nil {
		h.logger.Error("patch section", "section", section, "error", err)
		return
	}

	signals, err := json.Marshal(map[string]any{"panels": tables})
	if err != nil {
		h.logger.Error("marshal section signals", "section", section, "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sel := h.readSelection(r)
	sse := datastar.NewSSE(w, r)

	overview, err := h.analytics.Overview(sel)
	if err != nil {
		h.logger.Error("compute overview", "error", err)
		return
	}
	var buf strings.Builder
	if err := overviewTemplate.Execute(&buf, overview); err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	opts, err := h.analytics.Options(sel)
	if err != nil {
		h.logger.Error("list options", "error", err)
		return
	}
	buf.Reset()
	if err := pickerTemplate.Execute(&buf, opts); err != nil {
		h.logger.Error("render pickers", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	tables := make(map[string]dataset.ResultTable)
	for _, section := range panels.Sections {
		sectionTables, err := h.patchSection(sse, r, section, sel)
		if err != nil {
			h.logger.Error("patch section", "section", section, "error", err)
			return
		}
		for id, t := range sectionTables {
			tables[id] = t
		}
	}

	allSignals, err := json.Marshal(map[string]any{
		"panels":   tables,
		"overview": overview,
		"options":  opts,
	})
	if err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
