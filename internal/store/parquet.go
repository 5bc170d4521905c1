package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"flowdesk/internal/domain"
)

// Compile-time interface check.
var _ TradeExporter = (*ParquetExporter)(nil)

// ParquetExporter writes trades as a single Parquet file.
type ParquetExporter struct{}

// NewParquetExporter creates a ParquetExporter.
func NewParquetExporter() *ParquetExporter { return &ParquetExporter{} }

// Ext returns "parquet".
func (e *ParquetExporter) Ext() string { return "parquet" }

// Export writes trades to path, replacing any existing file.
func (e *ParquetExporter) Export(ctx context.Context, path string, trades []domain.OptionTrade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeParquetFile(path, toRecords(trades)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Read loads the trades stored at path.
func (e *ParquetExporter) Read(ctx context.Context, path string) ([]domain.OptionTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := readParquetFile[TradeRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return fromRecords(records), nil
}

// ---------------------------------------------------------------------------
// Parquet I/O helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
