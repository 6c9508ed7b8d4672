package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"profitcalc/internal/core"
)

// Default limits applied to uploaded files.
const (
	DefaultMaxBytes = 50 << 20
	DefaultMaxRows  = 50_000
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrNoHeader     = errors.New("csv has no header row")
)

// Limits bounds what ReadRecords accepts.
type Limits struct {
	MaxBytes int64
	MaxRows  int
}

// DefaultLimits returns the 50 MB / 50 000 row limits.
func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBytes, MaxRows: DefaultMaxRows}
}

// Table is a decoded CSV file.
type Table struct {
	Header   []string
	Records  []core.Record
	Encoding Encoding
	// Truncated is set when rows past MaxRows were dropped.
	Truncated bool
	// Blank counts skipped rows whose values were all empty.
	Blank int
}

// ReadRecords decodes and parses a CSV stream. Rows wider or narrower than
// the header are cut or padded to the header width.
func ReadRecords(ctx context.Context, r io.Reader, limits Limits) (Table, error) {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultMaxRows
	}

	raw, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	if int64(len(raw)) > limits.MaxBytes {
		return Table{}, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, limits.MaxBytes)
	}
	return Parse(ctx, raw, limits.MaxRows)
}

// Parse decodes raw bytes and reads at most maxRows data rows.
func Parse(ctx context.Context, raw []byte, maxRows int) (Table, error) {
	enc := DetectEncoding(raw)
	text, err := Decode(raw, enc)
	if err != nil {
		return Table{}, fmt.Errorf("decode %s: %w", enc, err)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrNoHeader
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}

	t := Table{Header: header, Encoding: enc}
	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Table{}, err
			}
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if n >= maxRows {
			t.Truncated = true
			break
		}
		rec := core.NewRecord(header, fields)
		if rec.IsEmpty() {
			t.Blank++
			continue
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Columns returns the header with byte-order marks removed.
func (t Table) Columns() []string {
	out := make([]string, len(t.Header))
	for i, h := range t.Header {
		out[i] = core.CleanColumn(h)
	}
	return out
}
