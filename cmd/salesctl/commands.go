package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/export"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/panels"
	"sales-dashboard/internal/services"
)

type options struct {
	files    []string
	start    string
	end      string
	store    string
	state    string
	format   string
	logLevel string

	stdout io.Writer
	stderr io.Writer
}

func (o *options) selection() services.Selection {
	return services.Selection{
		Range: dataset.ParseDateRange(o.start, o.end),
		Store: o.store,
		State: o.state,
	}
}

// analytics loads the configured files. Flags win over DATA_FILES.
func (o *options) analytics(ctx context.Context) (*services.Analytics, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	files := o.files
	if len(files) == 0 {
		files = cfg.Data.Files
	}

	logger := observability.NewLoggerTo(o.stderr, config.LoggerConfig{Level: o.logLevel, Format: "text"})
	a := services.NewAnalytics(dataset.NewLoader(logger, cfg.Data.LoadWorkers))

	ctx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
	defer cancel()
	if err := a.LoadFromCSV(ctx, files...); err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "salesctl",
		Short:         "Query the sales dashboard panels from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringSliceVar(&o.files, "data", nil, "CSV partitions to load, in order (default $DATA_FILES)")
	flags.StringVar(&o.start, "start", "", "first day to include (YYYY-MM-DD)")
	flags.StringVar(&o.end, "end", "", "last day to include (YYYY-MM-DD)")
	flags.StringVar(&o.store, "store", "", "store number for store panels")
	flags.StringVar(&o.state, "state", "", "state for state panels")
	flags.StringVarP(&o.format, "format", "o", "table", "output format: table, json or yaml")
	flags.StringVar(&o.logLevel, "log-level", "warn", "log level on stderr")

	root.AddCommand(
		newPanelsCmd(o),
		newRunCmd(o),
		newOverviewCmd(o),
		newExportCmd(o),
	)
	return root
}

func newPanelsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "panels",
		Short: "List the panel catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := panels.Catalog()
			if o.format != "table" {
				return o.encode(catalog)
			}
			t := newTable("ID", "SECTION", "LABEL")
			for _, p := range catalog {
				t.Row(p.ID, string(p.Section), p.Label)
			}
			_, err := fmt.Fprintln(o.stdout, t.String())
			return err
		},
	}
}

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <panel-id>...",
		Short: "Compute one or more panels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if _, err := panels.Lookup(id); err != nil {
					return err
				}
			}

			a, err := o.analytics(cmd.Context())
			if err != nil {
				return err
			}

			results := make([]services.PanelResult, 0, len(args))
			for _, id := range args {
				res, err := a.Panel(cmd.Context(), id, o.selection())
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			if o.format != "table" {
				return o.encode(results)
			}
			for _, res := range results {
				if err := o.printResult(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newOverviewCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show the headline KPIs for the date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.analytics(cmd.Context())
			if err != nil {
				return err
			}
			ov, err := a.Overview(o.selection())
			if err != nil {
				return err
			}
			if o.format != "table" {
				return o.encode(ov)
			}
			t := newTable("STORES", "FAMILIES", "STATES", "MONTHS", "ROWS")
			t.Row(fmt.Sprint(ov.Stores), fmt.Sprint(ov.Families), fmt.Sprint(ov.States), fmt.Sprint(ov.Months), fmt.Sprint(ov.Rows))
			_, err = fmt.Fprintln(o.stdout, t.String())
			return err
		},
	}
}

func newExportCmd(o *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the selected store's rows to a .csv or .xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext := strings.ToLower(filepath.Ext(output))
			if ext != ".csv" && ext != ".xlsx" {
				return fmt.Errorf("output must end in .csv or .xlsx, got %q", output)
			}

			a, err := o.analytics(cmd.Context())
			if err != nil {
				return err
			}
			rows, store, err := a.StoreRows(o.selection())
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if ext == ".csv" {
				err = export.CSV(f, rows)
			} else {
				err = export.XLSX(f, rows, "store_"+store)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("export store %s: %w", store, err)
			}

			fmt.Fprintf(o.stderr, "wrote %d rows for store %s to %s\n", rows.Len(), store, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "out", "store.csv", "destination file")
	return cmd
}

func (o *options) encode(v any) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(o.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(o.stdout)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
}

func (o *options) printResult(res services.PanelResult) error {
	title := res.Panel.Label
	if res.Scope != "" {
		title += " (" + res.Scope + ")"
	}

	if res.Table.Empty() {
		_, err := fmt.Fprintf(o.stdout, "%s\nno data for the current selection\n\n", titleStyle.Render(title))
		return err
	}

	t := newTable(strings.Join(res.Table.GroupBy, " / "), res.Table.Value)
	for _, row := range res.Table.Rows {
		value := "-"
		if row.Value != nil {
			value = fmt.Sprintf("%.2f", *row.Value)
		}
		t.Row(row.Label(), value)
	}
	_, err := fmt.Fprintf(o.stdout, "%s\n%s\n\n", titleStyle.Render(title), t.String())
	return err
}

var titleStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}
