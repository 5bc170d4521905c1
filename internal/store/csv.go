package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"flowdesk/internal/domain"
)

// Compile-time interface check.
var _ TradeExporter = (*CSVExporter)(nil)

// CSVExporter writes trades as a CSV file with a header row.
type CSVExporter struct{}

// NewCSVExporter creates a CSVExporter.
func NewCSVExporter() *CSVExporter { return &CSVExporter{} }

// Ext returns "csv".
func (e *CSVExporter) Ext() string { return "csv" }

// Export writes trades to path, replacing any existing file.
func (e *CSVExporter) Export(ctx context.Context, path string, trades []domain.OptionTrade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	records := toRecords(trades)
	if err := gocsv.MarshalFile(&records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Read loads the trades stored at path.
func (e *CSVExporter) Read(ctx context.Context, path string) ([]domain.OptionTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []TradeRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return fromRecords(records), nil
}
