package csvsource

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

	"golang.org/x/text/encoding/charmap"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/source"
)

// AriaCSV reads the ARIA accident export: Windows-1252, ';'-separated,
// preceded by a free-text preamble.
type AriaCSV struct {
	path      string
	skipLines int
	logger    *slog.Logger
}

var _ source.Source = (*AriaCSV)(nil)

// NewAriaCSV wires the export path and the number of preamble lines before the header.
func NewAriaCSV(path string, skipLines int, logger *slog.Logger) *AriaCSV {
	if skipLines < 0 {
		skipLines = 0
	}
	return &AriaCSV{path: path, skipLines: skipLines, logger: logger}
}

// Name identifies the source inside the registry.
func (a *AriaCSV) Name() string {
	return "aria-csv"
}

// Fetch decodes the export file.
func (a *AriaCSV) Fetch(ctx context.Context, req source.Request) ([]domain.RawRecord, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open aria export: %w", err)
	}
	defer f.Close()

	records, err := Decode(ctx, f, a.skipLines, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("aria export %s: %w", a.path, err)
	}

	if a.logger != nil {
		a.logger.Debug("aria rows decoded", "path", a.path, "count", len(records))
	}
	return records, nil
}

// Decode reads Windows-1252 CSV rows keyed by header label. A zero limit reads everything.
func Decode(ctx context.Context, r io.Reader, skipLines, limit int) ([]domain.RawRecord, error) {
	buffered := bufio.NewReader(charmap.Windows1252.NewDecoder().Reader(r))
	for i := 0; i < skipLines; i++ {
		if _, err := buffered.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("skip preamble line %d: %w", i+1, err)
		}
	}

	reader := csv.NewReader(buffered)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []domain.RawRecord
	for limit <= 0 || len(records) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}

		record := make(domain.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}

	return records, nil
}
