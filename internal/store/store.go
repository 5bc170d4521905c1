// Package store exports parsed option trades to Parquet and CSV files for
// offline analysis. Exports are one-way snapshots; the desk never reads
// them back on startup.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flowdesk/internal/domain"
)

// TradeExporter writes and reads trade files in one format.
type TradeExporter interface {
	// Ext returns the file extension without the dot.
	Ext() string

	// Export writes trades to path, creating parent directories.
	Export(ctx context.Context, path string, trades []domain.OptionTrade) error

	// Read loads trades previously written by Export.
	Read(ctx context.Context, path string) ([]domain.OptionTrade, error)
}

// ExporterFor returns the exporter for "parquet" or "csv".
func ExporterFor(format string) (TradeExporter, error) {
	switch strings.ToLower(format) {
	case "parquet", "":
		return NewParquetExporter(), nil
	case "csv":
		return NewCSVExporter(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// ExportPath lays export files out as
//
//	<dir>/<YYYY-MM-DD>/flow-<HHMMSS>-<batch>.<ext>
func ExportPath(dir, batchID, ext string, at time.Time) string {
	if batchID == "" {
		batchID = "adhoc"
	}
	name := fmt.Sprintf("flow-%s-%s.%s", at.Format("150405"), batchID, ext)
	return filepath.Join(dir, at.Format("2006-01-02"), name)
}

// ---------------------------------------------------------------------------
// On-disk schema
// ---------------------------------------------------------------------------

// TradeRecord is the flat file schema shared by the Parquet and CSV
// exporters. Premium is derived and ignored on read.
type TradeRecord struct {
	Timestamp       string  `parquet:"timestamp" csv:"timestamp"`
	Contract        string  `parquet:"contract" csv:"contract"`
	Type            string  `parquet:"type" csv:"type"`
	Strike          float64 `parquet:"strike" csv:"strike"`
	Quantity        int64   `parquet:"quantity" csv:"quantity"`
	Price           float64 `parquet:"price" csv:"price"`
	Exchange        string  `parquet:"exchange" csv:"exchange"`
	BidAsk          string  `parquet:"bid_ask" csv:"bid_ask"`
	Delta           string  `parquet:"delta" csv:"delta"`
	AbsDelta        float64 `parquet:"abs_delta" csv:"abs_delta"`
	IV              string  `parquet:"iv" csv:"iv"`
	UnderlyingPrice float64 `parquet:"underlying_price" csv:"underlying_price"`
	Breakeven       float64 `parquet:"breakeven" csv:"breakeven"`
	Premium         float64 `parquet:"premium" csv:"premium"`
	TimeOnly        bool    `parquet:"time_only" csv:"time_only"`
}

func toRecords(trades []domain.OptionTrade) []TradeRecord {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Timestamp:       t.Timestamp,
			Contract:        t.Contract,
			Type:            string(t.Type),
			Strike:          t.Strike,
			Quantity:        int64(t.Quantity),
			Price:           t.Price,
			Exchange:        t.Exchange,
			BidAsk:          t.BidAsk,
			Delta:           t.Delta,
			AbsDelta:        t.AbsDelta,
			IV:              t.IV,
			UnderlyingPrice: t.UnderlyingPrice,
			Breakeven:       t.Breakeven,
			Premium:         t.Premium(),
			TimeOnly:        t.IsTimeOnly,
		}
	}
	return records
}

func fromRecords(records []TradeRecord) []domain.OptionTrade {
	trades := make([]domain.OptionTrade, len(records))
	for i, r := range records {
		trades[i] = domain.OptionTrade{
			Timestamp:       r.Timestamp,
			IsTimeOnly:      r.TimeOnly,
			Contract:        r.Contract,
			Quantity:        int(r.Quantity),
			Price:           r.Price,
			Exchange:        r.Exchange,
			BidAsk:          r.BidAsk,
			Delta:           r.Delta,
			AbsDelta:        r.AbsDelta,
			IV:              r.IV,
			UnderlyingPrice: r.UnderlyingPrice,
			Type:            domain.OptionType(r.Type),
			Strike:          r.Strike,
			Breakeven:       r.Breakeven,
		}
	}
	return trades
}
