package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/transform"
)

// CSVSource is one CSV file of daily bars and the symbol its rows belong to.
type CSVSource struct {
	Symbol string
	Path   string
}

// CSVSources pairs files with symbols. A non-empty sym applies to a single
// file; otherwise the base name without extension is the symbol, so
// "600519.SH.csv" imports as 600519.SSE.
func CSVSources(files []string, sym string) ([]CSVSource, error) {
	if sym != "" && len(files) != 1 {
		return nil, &domain.ConfigError{Field: "import.symbol", Value: sym}
	}
	out := make([]CSVSource, 0, len(files))
	for _, f := range files {
		s := sym
		if s == "" {
			base := filepath.Base(f)
			s = strings.TrimSuffix(base, filepath.Ext(base))
		}
		out = append(out, CSVSource{Symbol: s, Path: f})
	}
	return out, nil
}

// ImportResult totals one import.
type ImportResult struct {
	Files   int
	Bars    int
	Written int
}

// Importer loads CSV exports of daily bars directly into the bar store,
// bypassing the source table.
type Importer struct {
	bars        domain.BarStore
	transformer *transform.Transformer
	logger      *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(bars domain.BarStore, tr *transform.Transformer, logger *slog.Logger) *Importer {
	return &Importer{
		bars:        bars,
		transformer: tr,
		logger:      logger.With(slog.String("component", "csv_importer")),
	}
}

// Import reads every file before writing anything, so one malformed file
// leaves the store untouched.
func (im *Importer) Import(ctx context.Context, sources []CSVSource) (ImportResult, error) {
	items := make([]transform.Item, 0, len(sources))
	for _, src := range sources {
		tbl, err := readCSVFile(src.Path)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import: %w", err)
		}
		im.logger.Debug("csv read", slog.String("path", src.Path), slog.Int("rows", tbl.Len()))
		items = append(items, transform.Item{Symbol: src.Symbol, Table: tbl})
	}

	bars, err := im.transformer.TransformMany(items)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	res := ImportResult{Files: len(sources), Bars: len(bars)}
	if len(bars) == 0 {
		return res, nil
	}

	n, err := im.bars.UpsertBars(ctx, bars)
	if err != nil {
		return res, fmt.Errorf("import: upsert: %w", err)
	}
	res.Written = n

	im.logger.Info("csv import complete",
		slog.Int("files", res.Files),
		slog.Int("bars", res.Bars),
		slog.Int("written", res.Written),
		slog.String("volume_unit", string(im.transformer.Unit())),
	)
	return res, nil
}

func readCSVFile(path string) (transform.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return transform.Table{}, err
	}
	defer f.Close()

	tbl, err := transform.ReadCSV(f)
	if err != nil {
		return transform.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}
