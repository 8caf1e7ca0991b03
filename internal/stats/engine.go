package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultTopN = 5
	MaxTopN     = 100
)

type DayStats struct {
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
	Cost       decimal.Decimal `json:"cost"`
	Profit     decimal.Decimal `json:"profit"`
}

type TopProduct struct {
	ProductID   uint            `json:"product_id"`
	Name        string          `json:"name"`
	ImageRef    string          `json:"image_ref"`
	TotalSold   int64           `json:"total_sold"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

type ProductStats struct {
	TotalSales int64 `json:"total_sales"`
	TodaySales int64 `json:"today_sales"`
}

// Engine derives sales figures from the stored orders on every call.
type Engine struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// today returns [local midnight, next local midnight) of the engine clock.
func (e *Engine) today() (time.Time, time.Time) {
	now := e.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

type valuedLine struct {
	Quantity  int64           `gorm:"column:quantity"`
	Price     decimal.Decimal `gorm:"column:price"`
	CostPrice decimal.Decimal `gorm:"column:cost_price"`
}

func sum(orderCount int64, lines []valuedLine) DayStats {
	s := DayStats{OrderCount: orderCount, Revenue: decimal.Zero, Cost: decimal.Zero}
	for _, l := range lines {
		q := decimal.NewFromInt(l.Quantity)
		s.Revenue = s.Revenue.Add(l.Price.Mul(q))
		s.Cost = s.Cost.Add(l.CostPrice.Mul(q))
	}
	s.Profit = s.Revenue.Sub(s.Cost)
	return s
}

func (e *Engine) countOrders(db *gorm.DB, start, end time.Time) (int64, error) {
	var n int64
	err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// TodayStats values today's line items at the owning product's current
// price and cost. Lines whose barcode no longer resolves add nothing.
func (e *Engine) TodayStats(ctx context.Context) (DayStats, error) {
	db := e.db.WithContext(ctx)
	start, end := e.today()

	count, err := e.countOrders(db, start, end)
	if err != nil {
		return DayStats{}, err
	}

	var lines []valuedLine
	err = db.Table("order_line_items AS oi").
		Select("oi.quantity, p.price, p.cost_price").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("JOIN barcodes b ON b.token = oi.barcode_token").
		Joins("JOIN products p ON p.id = b.product_id").
		Where("o.created_at >= ? AND o.created_at < ?", start, end).
		Scan(&lines).Error
	if err != nil {
		return DayStats{}, fmt.Errorf("today stats: %w", err)
	}
	return sum(count, lines), nil
}

// TodaySnapshotStats values today's line items at the price and cost
// captured when each sale was recorded.
func (e *Engine) TodaySnapshotStats(ctx context.Context) (DayStats, error) {
	db := e.db.WithContext(ctx)
	start, end := e.today()

	count, err := e.countOrders(db, start, end)
	if err != nil {
		return DayStats{}, err
	}

	var lines []valuedLine
	err = db.Table("order_line_items AS oi").
		Select("oi.quantity, oi.price, oi.cost_price").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.created_at >= ? AND o.created_at < ?", start, end).
		Scan(&lines).Error
	if err != nil {
		return DayStats{}, fmt.Errorf("today snapshot stats: %w", err)
	}
	return sum(count, lines), nil
}

// TopProducts ranks products by all-time quantity sold, ties by product id.
func (e *Engine) TopProducts(ctx context.Context, n int) ([]TopProduct, error) {
	if n < 1 || n > MaxTopN {
		return nil, apperr.Invalid("limit", fmt.Sprintf("must_be_between_1_and_%d", MaxTopN))
	}

	type row struct {
		ProductID uint            `gorm:"column:product_id"`
		Name      string          `gorm:"column:name"`
		ImageRef  string          `gorm:"column:image_ref"`
		Price     decimal.Decimal `gorm:"column:price"`
		CostPrice decimal.Decimal `gorm:"column:cost_price"`
		TotalSold int64           `gorm:"column:total_sold"`
	}
	var rows []row
	err := e.db.WithContext(ctx).Raw(`
		SELECT p.id AS product_id,
		       p.name,
		       COALESCE(p.image_ref, '') AS image_ref,
		       p.price,
		       p.cost_price,
		       CAST(SUM(oi.quantity) AS BIGINT) AS total_sold
		FROM order_line_items oi
		JOIN barcodes b ON b.token = oi.barcode_token
		JOIN products p ON p.id = b.product_id
		GROUP BY p.id, p.name, p.image_ref, p.price, p.cost_price
		ORDER BY total_sold DESC, p.id ASC
		LIMIT ?`, n).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}

	out := make([]TopProduct, 0, len(rows))
	for _, r := range rows {
		margin := r.Price.Sub(r.CostPrice)
		out = append(out, TopProduct{
			ProductID:   r.ProductID,
			Name:        r.Name,
			ImageRef:    r.ImageRef,
			TotalSold:   r.TotalSold,
			TotalProfit: margin.Mul(decimal.NewFromInt(r.TotalSold)),
		})
	}
	return out, nil
}

// ProductStats sums the quantity sold under any barcode of the product.
func (e *Engine) ProductStats(ctx context.Context, productID uint) (ProductStats, error) {
	db := e.db.WithContext(ctx)

	var p models.Product
	err := db.Select("id").Take(&p, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProductStats{}, apperr.NotFound("product %d", productID)
	}
	if err != nil {
		return ProductStats{}, fmt.Errorf("load product %d: %w", productID, err)
	}

	start, end := e.today()
	var out ProductStats
	err = db.Raw(`
		SELECT CAST(COALESCE(SUM(oi.quantity), 0) AS BIGINT) AS total_sales,
		       CAST(COALESCE(SUM(CASE WHEN o.created_at >= ? AND o.created_at < ? THEN oi.quantity ELSE 0 END), 0) AS BIGINT) AS today_sales
		FROM order_line_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN barcodes b ON b.token = oi.barcode_token
		WHERE b.product_id = ?`, start, end, productID).Scan(&out).Error
	if err != nil {
		return ProductStats{}, fmt.Errorf("product stats: %w", err)
	}
	return out, nil
}
