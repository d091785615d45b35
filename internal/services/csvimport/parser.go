// Package csvimport parses uploaded bank-export CSV files into normalized
// candidates, the same shape the Akahu fetch produces, so both paths share
// the fingerprint-based duplicate filter.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

// Mapping describes how to read one bank's CSV layout.
type Mapping struct {
	DateColumn   string `json:"date_column"`
	AmountColumn string `json:"amount_column"`
	PayeeColumn  string `json:"payee_column"`
	MemoColumn   string `json:"memo_column"`

	// DateFormat is a Go reference layout, e.g. "02/01/2006".
	DateFormat     string `json:"date_format"`
	AmountInverted bool   `json:"amount_inverted"`
	SkipRows       int    `json:"skip_rows"`
}

// Preset bundles a mapping under a bank identifier.
type Preset struct {
	Name    string  `json:"name"`
	Mapping Mapping `json:"mapping"`
}

// Presets for common NZ bank exports, keyed by identifier.
var Presets = map[string]Preset{
	"asb": {
		Name: "ASB Bank",
		Mapping: Mapping{
			DateColumn: "Date", AmountColumn: "Amount",
			PayeeColumn: "Payee", MemoColumn: "Memo",
			DateFormat: "02/01/2006",
		},
	},
	"anz": {
		Name: "ANZ Bank",
		Mapping: Mapping{
			DateColumn: "Date", AmountColumn: "Amount",
			PayeeColumn: "Description", MemoColumn: "Reference",
			DateFormat: "02/01/2006",
		},
	},
	"westpac": {
		Name: "Westpac",
		Mapping: Mapping{
			DateColumn: "Date", AmountColumn: "Amount",
			PayeeColumn: "Other Party", MemoColumn: "Particulars",
			DateFormat: "02/01/2006",
		},
	},
	"bnz": {
		Name: "BNZ",
		Mapping: Mapping{
			DateColumn: "Date", AmountColumn: "Amount",
			PayeeColumn: "Payee", MemoColumn: "Particulars",
			DateFormat: "02/01/2006",
		},
	},
	"kiwibank": {
		Name: "Kiwibank",
		Mapping: Mapping{
			DateColumn: "Date", AmountColumn: "Amount",
			PayeeColumn: "Description", MemoColumn: "Reference",
			DateFormat: "02/01/2006",
		},
	},
}

// Parse reads CSV content using the mapping and returns candidates in row
// order. Rows that fail to parse are skipped, not fatal: bank exports
// routinely carry summary or malformed trailer lines. The error count comes
// back so callers can surface it.
func Parse(r io.Reader, mapping Mapping, sourceAccount string) ([]models.Candidate, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	for i := 0; i < mapping.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, 0, fmt.Errorf("skip header rows: %w", err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	dateIdx, ok := columns[mapping.DateColumn]
	if !ok {
		return nil, 0, fmt.Errorf("date column %q not found", mapping.DateColumn)
	}
	amountIdx, ok := columns[mapping.AmountColumn]
	if !ok {
		return nil, 0, fmt.Errorf("amount column %q not found", mapping.AmountColumn)
	}

	layout := mapping.DateFormat
	if layout == "" {
		layout = "02/01/2006"
	}

	var candidates []models.Candidate
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		candidate, err := parseRow(record, columns, mapping, dateIdx, amountIdx, layout)
		if err != nil {
			skipped++
			continue
		}
		candidate.Source = models.SourceCSV
		candidate.SourceAccount = sourceAccount
		candidates = append(candidates, candidate)
	}
	return candidates, skipped, nil
}

func parseRow(record []string, columns map[string]int, mapping Mapping, dateIdx, amountIdx int, layout string) (models.Candidate, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	occurredAt, err := time.ParseInLocation(layout, field(dateIdx), time.UTC)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("parse date: %w", err)
	}

	amount, err := parseAmount(field(amountIdx))
	if err != nil {
		return models.Candidate{}, err
	}
	if mapping.AmountInverted {
		amount = amount.Neg()
	}

	candidate := models.Candidate{OccurredAt: occurredAt, Amount: amount}
	if mapping.PayeeColumn != "" {
		if idx, ok := columns[mapping.PayeeColumn]; ok {
			candidate.Payee = field(idx)
		}
	}
	if mapping.MemoColumn != "" {
		if idx, ok := columns[mapping.MemoColumn]; ok {
			candidate.Memo = field(idx)
		}
	}
	return candidate, nil
}

// parseAmount strips currency symbols, thousands separators and spaces
// before parsing.
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return amount, nil
}
