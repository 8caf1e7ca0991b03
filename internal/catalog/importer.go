package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"pos-backend/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Spreadsheet columns, in order.
const (
	colName = iota
	colPrice
	colCostPrice
	colBarcodes
	colBrand
	colSpecification
	colManufacturer
	colCategory
	colNote
)

type ImportFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Created int             `json:"created"`
	Failed  []ImportFailure `json:"failed"`
}

// ImportProducts creates one product per row of the first sheet. Every row is
// its own transaction: a bad row is reported and the import continues.
func (s *Store) ImportProducts(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Invalid("file", "unreadable_xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Invalid("file", "no_sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Invalid("file", "unreadable_sheet")
	}

	start := 0
	if len(rows) > 0 && isHeader(rows[0]) {
		start = 1
	}

	res := &ImportResult{Failed: []ImportFailure{}}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		fields, barcodes, err := parseRow(row)
		if err == nil {
			_, err = s.CreateProduct(ctx, fields, barcodes)
		}
		if err != nil {
			if errors.Is(err, apperr.ErrTransaction) {
				slog.ErrorContext(ctx, "product import row failed", "row", i+1, "error", err)
			}
			res.Failed = append(res.Failed, ImportFailure{Row: i + 1, Error: err.Error()})
			continue
		}
		res.Created++
	}

	slog.InfoContext(ctx, "product import finished", "sheet", sheets[0], "created", res.Created, "failed", len(res.Failed))
	return res, nil
}

var nameLabels = map[string]bool{"name": true, "product": true, "product name": true, "item": true, "item name": true}

// isHeader accepts the first row as column labels only when the name cell is a
// known label and the price cell is not an amount.
func isHeader(row []string) bool {
	if !nameLabels[strings.ToLower(cell(row, colName))] {
		return false
	}
	price := cell(row, colPrice)
	if price == "" {
		return true
	}
	_, err := decimal.NewFromString(strings.ReplaceAll(price, ",", "."))
	return err != nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, apperr.Invalid(field, "not_a_number")
	}
	return d, nil
}

func parseRow(row []string) (ProductFields, []string, error) {
	price, err := parseAmount("price", cell(row, colPrice))
	if err != nil {
		return ProductFields{}, nil, err
	}
	cost, err := parseAmount("cost_price", cell(row, colCostPrice))
	if err != nil {
		return ProductFields{}, nil, err
	}

	// The barcode cell is an explicit set: any mix of ; , and whitespace.
	barcodes := strings.FieldsFunc(cell(row, colBarcodes), func(r rune) bool {
		return r == ';' || r == ',' || unicode.IsSpace(r)
	})

	fields := ProductFields{
		Name:          cell(row, colName),
		Price:         price,
		CostPrice:     cost,
		Brand:         cell(row, colBrand),
		Specification: cell(row, colSpecification),
		Manufacturer:  cell(row, colManufacturer),
		Category:      cell(row, colCategory),
		Note:          cell(row, colNote),
	}
	return fields, barcodes, nil
}

