package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one completed checkout. Rows are never updated.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	TotalItems     int             `gorm:"not null" json:"total_items"`
	IdempotencyKey *string         `gorm:"size:100;uniqueIndex" json:"-"`
	CreatedAt      time.Time       `gorm:"index;not null" json:"created_at"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}

// OrderLineItem keeps the scanned barcode and a name/price snapshot taken at
// sale time, independent of later catalog changes.
type OrderLineItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"index;not null" json:"order_id"`
	BarcodeToken string          `gorm:"size:64;index;not null" json:"barcode"`
	Name         string          `gorm:"size:200;not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_price"`
	Quantity     int             `gorm:"not null" json:"quantity"`
}
