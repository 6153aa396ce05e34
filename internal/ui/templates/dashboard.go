package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"sales-dashboard/internal/panels"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

var sectionTitles = map[panels.Section]string{
	panels.SectionGlobal: "Global overview",
	panels.SectionStore:  "By store",
	panels.SectionState:  "By state",
	panels.SectionExtra:  "Insights",
}

// Dashboard is the single page shell. Every section loads itself over SSE and
// re-requests whenever a filter signal changes.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sales Dashboard</title>
<script type="module" src="`+templ.EscapeString(datastarScript)+`"></script>
</head>
<body data-signals="{start: '', end: '', store: '', state: '', panels: {}, options: {}}" data-on-load="@get('/sse/refresh-all')">
<header><h1>Sales Dashboard</h1></header>
<aside class="filters">
<label>From <input type="date" data-bind-start data-attr-min="$options.min_date" data-attr-max="$options.max_date"></label>
<label>To <input type="date" data-bind-end data-attr-min="$options.min_date" data-attr-max="$options.max_date"></label>
<label>Store <select id="store-picker" data-bind-store></select></label>
<label>State <select id="state-picker" data-bind-state></select></label>
<button data-on-click="@get('/sse/refresh-all')">Apply</button>
</aside>
<main>
<div id="overview"></div>
`); err != nil {
			return err
		}

		for _, section := range panels.Sections {
			if err := renderSection(w, section); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `<p><a data-attr-href="'/api/stores/export/csv?store=' + $store + '&start=' + $start + '&end=' + $end">Download store CSV</a>
<a data-attr-href="'/api/stores/export/xlsx?store=' + $store + '&start=' + $start + '&end=' + $end">Download store XLSX</a></p>
</main>
</body>
</html>`)
		return err
	})
}

func renderSection(w io.Writer, section panels.Section) error {
	if _, err := fmt.Fprintf(w, "<section id=\"section-%s\">\n<h2>%s</h2>\n",
		templ.EscapeString(string(section)), templ.EscapeString(sectionTitles[section])); err != nil {
		return err
	}
	for _, p := range panels.InSection(section) {
		if _, err := fmt.Fprintf(w, "<div id=\"panel-%s\" class=\"panel\"><h3>%s</h3></div>\n",
			templ.EscapeString(p.ID), templ.EscapeString(p.Label)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</section>\n")
	return err
}
