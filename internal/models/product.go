package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. It may be sold under any number of barcodes.
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CostPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_price"`
	ImageRef      string          `gorm:"size:255" json:"image_ref"`
	Brand         string          `gorm:"size:100" json:"brand"`
	Specification string          `gorm:"size:100" json:"specification"`
	Manufacturer  string          `gorm:"size:100" json:"manufacturer"`
	Category      string          `gorm:"size:100" json:"category"`
	Note          string          `gorm:"size:500" json:"note"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Barcodes []Barcode `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"barcodes"`
}

// Tokens returns the barcode values in their loaded order.
func (p Product) Tokens() []string {
	out := make([]string, 0, len(p.Barcodes))
	for _, b := range p.Barcodes {
		out = append(out, b.Token)
	}
	return out
}

// Barcode is a physical label value. Tokens are unique across the catalog.
type Barcode struct {
	Token     string    `gorm:"primaryKey;size:64" json:"token"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
