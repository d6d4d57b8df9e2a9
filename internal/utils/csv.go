package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"forexBot/internal/domain"
)

// WriteSeriesToCSV writes the candles of series to filename, creating parent directories.
func WriteSeriesToCSV(series *domain.PriceSeries, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteSeries(file, series)
}

// WriteSeries writes a header row followed by one row per candle.
func WriteSeries(w io.Writer, series *domain.PriceSeries) error {
	writer := csv.NewWriter(w)

	// Write header
	writer.Write([]string{"datetime", "symbol", "interval", "open", "high", "low", "close"})

	for _, c := range series.Values {
		writer.Write([]string{
			c.Datetime,
			series.Meta.Symbol,
			series.Meta.Interval,
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
		})
	}
	writer.Flush()
	return writer.Error()
}
