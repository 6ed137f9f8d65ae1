// Package portability moves expense records between a store and the two
// portable serialization formats, tabular CSV and structured JSON.
//
// Exports write everything the store holds. Imports follow a two-tier error
// policy: a file that is unreadable or structurally wrong fails the whole
// operation, while an individual malformed row or entry is silently skipped
// so the rest of the data stays usable.
package portability

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expensetrack/internal/core"
)

var (
	ErrMissingCategoryColumn = errors.New("csv must contain a category column")
	ErrMissingAmountColumn   = errors.New("csv must contain an amount column")
	ErrMissingExpensesField  = errors.New("json must contain an expenses array")
)

// Lister is the read side a source store must provide for exports.
type Lister interface {
	List(ctx context.Context) ([]core.Record, error)
}

// Inserter is the write side a target store must provide for imports.
// Identity and timestamp are regenerated by the store on insert.
type Inserter interface {
	Append(ctx context.Context, r core.Record) (core.Record, error)
}

// Format identifies a portable file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// DetectFormat classifies a file by extension only; there is no content
// sniffing.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// ExportCSV writes a header row followed by one row per record.
func ExportCSV(ctx context.Context, src Lister, path string) error {
	records, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("load records for export: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ID", "Category", "Amount", "Description", "Timestamp"}); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Category,
			strconv.FormatFloat(r.Amount, 'f', -1, 64),
			r.Description,
			formatTimestamp(r.Timestamp),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}

type exportDocument struct {
	ExportDate   string         `json:"export_date"`
	TotalRecords int            `json:"total_records"`
	Expenses     []exportRecord `json:"expenses"`
}

type exportRecord struct {
	ID          int64   `json:"id"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
}

// ExportJSON writes a single document carrying the export time, the record
// count and an array of record objects.
func ExportJSON(ctx context.Context, src Lister, path string) error {
	records, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("load records for export: %w", err)
	}

	doc := exportDocument{
		ExportDate:   time.Now().UTC().Format(time.RFC3339),
		TotalRecords: len(records),
		Expenses:     make([]exportRecord, 0, len(records)),
	}
	for _, r := range records {
		doc.Expenses = append(doc.Expenses, exportRecord{
			ID:          r.ID,
			Category:    r.Category,
			Amount:      r.Amount,
			Description: r.Description,
			Timestamp:   formatTimestamp(r.Timestamp),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// ImportCSV reads a tabular file whose header names a category and an amount
// column (case-insensitive) and inserts each well-formed row into dst. Rows
// with an empty category or amount, or an amount that does not parse as a
// non-negative number, are skipped without error. It returns the number of
// rows actually imported.
func ImportCSV(ctx context.Context, dst Inserter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true
	rows, err := rd.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	if len(rows) == 0 {
		return 0, errors.New("csv file is empty")
	}

	catIdx := columnIndex(rows[0], "category")
	amtIdx := columnIndex(rows[0], "amount")
	descIdx := columnIndex(rows[0], "description")
	if catIdx < 0 {
		return 0, ErrMissingCategoryColumn
	}
	if amtIdx < 0 {
		return 0, ErrMissingAmountColumn
	}

	imported := 0
	for _, row := range rows[1:] {
		category := strings.TrimSpace(field(row, catIdx))
		amountText := strings.TrimSpace(field(row, amtIdx))
		description := strings.TrimSpace(field(row, descIdx))
		if category == "" || amountText == "" {
			continue
		}
		amount, err := core.ParseAmount(amountText)
		if err != nil {
			continue
		}
		if _, err := dst.Append(ctx, core.Record{Category: category, Amount: amount, Description: description}); err != nil {
			continue
		}
		imported++
	}
	return imported, nil
}

// ImportJSON reads a structured export document and inserts each well-formed
// entry into dst, with the same skip policy as ImportCSV. Amounts are
// accepted as either a JSON number or a numeric string. It returns the
// number of entries actually imported.
func ImportJSON(ctx context.Context, dst Inserter, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}

	var doc struct {
		Expenses []json.RawMessage `json:"expenses"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse import file: %w", err)
	}
	if doc.Expenses == nil {
		return 0, ErrMissingExpensesField
	}

	imported := 0
	for _, raw := range doc.Expenses {
		var entry struct {
			Category    string          `json:"category"`
			Amount      json.RawMessage `json:"amount"`
			Description string          `json:"description"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		category := strings.TrimSpace(entry.Category)
		if category == "" || len(entry.Amount) == 0 {
			continue
		}
		amount, ok := coerceAmount(entry.Amount)
		if !ok {
			continue
		}
		if _, err := dst.Append(ctx, core.Record{
			Category:    category,
			Amount:      amount,
			Description: strings.TrimSpace(entry.Description),
		}); err != nil {
			continue
		}
		imported++
	}
	return imported, nil
}

func coerceAmount(raw json.RawMessage) (float64, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		// Not a string, retry as a bare number.
		var num float64
		if err := json.Unmarshal(raw, &num); err != nil || num < 0 {
			return 0, false
		}
		return num, true
	}
	amount, err := core.ParseAmount(text)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
