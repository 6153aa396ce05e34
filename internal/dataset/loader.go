package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	readBufferSize    = 1 << 20
	ctxCheckInterval  = 4096
	defaultLoadWorker = 2
)

// LoadStats summarises what the loader had to normalise. Individual rows are
// never reported.
type LoadStats struct {
	Files        int            `json:"files"`
	Rows         int            `json:"rows"`
	SkippedLines int            `json:"skipped_lines"`
	BadCells     map[string]int `json:"bad_cells"`
	Duration     time.Duration  `json:"duration"`
}

func (s *LoadStats) merge(other LoadStats) {
	s.Files += other.Files
	s.Rows += other.Rows
	s.SkippedLines += other.SkippedLines
	if s.BadCells == nil {
		s.BadCells = make(map[string]int)
	}
	for col, n := range other.BadCells {
		s.BadCells[col] += n
	}
}

type loadResult struct {
	data  Dataset
	stats LoadStats
}

// Loader reads partitioned CSV extracts into a Dataset. Results are kept for
// the life of the process, keyed by the ordered list of paths.
type Loader struct {
	mu      sync.Mutex
	cache   map[string]*loadResult
	workers int
	logger  *slog.Logger
}

func NewLoader(logger *slog.Logger, workers int) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = defaultLoadWorker
	}
	return &Loader{
		cache:   make(map[string]*loadResult),
		workers: workers,
		logger:  logger,
	}
}

// Load reads every path, concatenates the partitions in argument order and
// derives the computed columns. A second call with the same paths returns the
// cached Dataset without reading the files again.
func (l *Loader) Load(ctx context.Context, paths ...string) (Dataset, LoadStats, error) {
	if len(paths) == 0 {
		return Dataset{}, LoadStats{}, fmt.Errorf("load: no source files")
	}

	key := strings.Join(paths, "\x1f")

	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.cache[key]; ok {
		l.logger.Debug("dataset served from cache", "files", paths, "rows", cached.data.Len())
		return cached.data, cached.stats, nil
	}

	start := time.Now()
	parts := make([]loadResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		g.Go(func() error {
			data, stats, err := readFile(gctx, path)
			if err != nil {
				return err
			}
			parts[i] = loadResult{data: data, stats: stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, LoadStats{}, err
	}

	var data Dataset
	stats := LoadStats{BadCells: make(map[string]int)}
	for _, p := range parts {
		data = data.concat(p.data)
		stats.merge(p.stats)
	}
	stats.Duration = time.Since(start)

	l.logger.Info("dataset loaded",
		"files", paths,
		"rows", stats.Rows,
		"skipped_lines", stats.SkippedLines,
		"bad_cells", stats.BadCells,
		"duration", stats.Duration,
	)

	l.cache[key] = &loadResult{data: data, stats: stats}
	return data, stats, nil
}

func readFile(ctx context.Context, path string) (Dataset, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, LoadStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(ctx, bufio.NewReaderSize(f, readBufferSize), path)
}

// Decode parses one CSV partition. Only schema columns are kept; a cell that
// cannot be parsed becomes null (or the column default) and is counted in the
// returned stats. A missing schema column fails the whole partition.
func Decode(ctx context.Context, r io.Reader, source string) (Dataset, LoadStats, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, LoadStats{}, fmt.Errorf("%s: empty file", source)
	}
	if err != nil {
		return Dataset{}, LoadStats{}, fmt.Errorf("%s: read header: %w", source, err)
	}

	positions, err := mapHeader(header, source)
	if err != nil {
		return Dataset{}, LoadStats{}, err
	}

	columns := make([]Column, 0, len(positions))
	for _, name := range SourceColumns() {
		c, _ := Lookup(name)
		columns = append(columns, c)
	}

	stats := LoadStats{Files: 1, BadCells: make(map[string]int)}
	in := newInterner()
	records := make([]*models.Record, 0, 1024)
	width := len(header)

	for line := 0; ; line++ {
		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Dataset{}, LoadStats{}, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.SkippedLines++
				continue
			}
			return Dataset{}, LoadStats{}, fmt.Errorf("%s: read: %w", source, err)
		}
		if len(row) != width {
			stats.SkippedLines++
			continue
		}

		rec := &models.Record{}
		for i, c := range columns {
			if !c.parse(rec, row[positions[i]], in) {
				stats.BadCells[c.Name]++
			}
		}
		derive(rec)
		records = append(records, rec)
	}

	stats.Rows = len(records)
	return Dataset{records: records}, stats, nil
}

// mapHeader returns, for each source column in schema order, its position in
// the file header.
func mapHeader(header []string, source string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimPrefix(h, "\ufeff")
		name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	names := SourceColumns()
	positions := make([]int, len(names))
	var missing []string
	for i, name := range names {
		pos, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", source, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return positions, nil
}
