package catalog

import (
	"strings"
	"unicode/utf8"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

const maxTokenLength = 64

// ProductFields are the mutable attributes of a product. Updates overwrite
// all of them.
type ProductFields struct {
	Name          string
	Price         decimal.Decimal
	CostPrice     decimal.Decimal
	ImageRef      string
	Brand         string
	Specification string
	Manufacturer  string
	Category      string
	Note          string
}

func (f *ProductFields) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.ImageRef = strings.TrimSpace(f.ImageRef)
	f.Brand = strings.TrimSpace(f.Brand)
	f.Specification = strings.TrimSpace(f.Specification)
	f.Manufacturer = strings.TrimSpace(f.Manufacturer)
	f.Category = strings.TrimSpace(f.Category)
	f.Note = strings.TrimSpace(f.Note)
}

func (f ProductFields) validate(v apperr.Violations) {
	apperr.Required(v, "name", f.Name)
	if f.Price.IsNegative() {
		v.Add("price", "must_not_be_negative")
	}
	if f.CostPrice.IsNegative() {
		v.Add("cost_price", "must_not_be_negative")
	}
}

func (f ProductFields) apply(p *models.Product) {
	p.Name = f.Name
	p.Price = f.Price.Round(2)
	p.CostPrice = f.CostPrice.Round(2)
	p.ImageRef = f.ImageRef
	p.Brand = f.Brand
	p.Specification = f.Specification
	p.Manufacturer = f.Manufacturer
	p.Category = f.Category
	p.Note = f.Note
}

// normalizeToken validates a single barcode key. Comma joined lists are
// rejected instead of guessing which element was meant.
func normalizeToken(token string) (string, error) {
	t := strings.TrimSpace(token)
	switch {
	case t == "":
		return "", apperr.Invalid("barcode", "required")
	case strings.Contains(t, ","):
		return "", apperr.Invalid("barcode", "must_be_single_token")
	case utf8.RuneCountInString(t) > maxTokenLength:
		return "", apperr.Invalid("barcode", "too_long")
	}
	return t, nil
}

// normalizeTokens validates a barcode set. Repeats within the set are a
// validation error, clashes with the catalog are checked by the store.
func normalizeTokens(tokens []string, v apperr.Violations) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, raw := range tokens {
		t, err := normalizeToken(raw)
		if err != nil {
			v.Add("barcodes", "invalid_token")
			continue
		}
		if _, dup := seen[t]; dup {
			v.Add("barcodes", "duplicate_token")
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
