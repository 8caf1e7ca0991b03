package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxQuantity bounds a single line so item counts cannot overflow.
const maxQuantity = 100_000

type LineItemInput struct {
	Barcode  string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

type OrderInput struct {
	TotalAmount    decimal.Decimal
	TotalItems     int
	Items          []LineItemInput
	IdempotencyKey string
}

// Recorded is the outcome of RecordOrder. Replayed is set when the
// idempotency key matched an existing order and nothing was written.
type Recorded struct {
	Order    models.Order
	Replayed bool
}

// Recorder persists checkouts. Each order and its line items are written in
// a single transaction.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

func (in *OrderInput) normalize() {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	for i := range in.Items {
		in.Items[i].Barcode = strings.TrimSpace(in.Items[i].Barcode)
		in.Items[i].Name = strings.TrimSpace(in.Items[i].Name)
		in.Items[i].Price = in.Items[i].Price.Round(2)
	}
}

// validate checks every line and verifies the caller's totals against the
// sums of the lines.
func (in OrderInput) validate() error {
	v := apperr.Violations{}
	amount := decimal.Zero
	count := 0
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		apperr.Required(v, prefix+"barcode", it.Barcode)
		apperr.Required(v, prefix+"name", it.Name)
		if it.Price.IsNegative() {
			v.Add(prefix+"price", "must_not_be_negative")
		}
		switch {
		case it.Quantity <= 0:
			v.Add(prefix+"quantity", "must_be_positive")
		case it.Quantity > maxQuantity:
			v.Add(prefix+"quantity", "too_large")
		}
		amount = amount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	if in.TotalAmount.IsNegative() {
		v.Add("total_amount", "must_not_be_negative")
	}
	if in.TotalItems < 0 {
		v.Add("total_items", "must_not_be_negative")
	}
	if len(in.IdempotencyKey) > 100 {
		v.Add("idempotency_key", "too_long")
	}
	if !v.Empty() {
		return v.Err()
	}
	if !in.TotalAmount.Round(2).Equal(amount.Round(2)) {
		v.Add("total_amount", "does_not_match_items")
	}
	if in.TotalItems != count {
		v.Add("total_items", "does_not_match_items")
	}
	return v.Err()
}

// RecordOrder stores the header and every line item, or nothing.
func (r *Recorder) RecordOrder(ctx context.Context, in OrderInput) (*Recorded, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var key *string
	if in.IdempotencyKey != "" {
		k := in.IdempotencyKey
		key = &k
	}

	db := r.db.WithContext(ctx)
	if key != nil {
		if existing, err := findByKey(db, *key); err != nil || existing != nil {
			if err != nil {
				return nil, apperr.FromStore("record order", err)
			}
			return &Recorded{Order: *existing, Replayed: true}, nil
		}
	}

	order := models.Order{
		TotalAmount:    in.TotalAmount.Round(2),
		TotalItems:     in.TotalItems,
		IdempotencyKey: key,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockOrderClock(tx); err != nil {
			return err
		}
		createdAt, err := r.nextTimestamp(tx)
		if err != nil {
			return err
		}
		order.CreatedAt = createdAt
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}

		costs, err := costSnapshot(tx, in.Items)
		if err != nil {
			return err
		}
		for _, it := range in.Items {
			item := models.OrderLineItem{
				OrderID:      order.ID,
				BarcodeToken: it.Barcode,
				Name:         it.Name,
				Price:        it.Price,
				CostPrice:    costs[it.Barcode],
				Quantity:     it.Quantity,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("insert line item %q: %w", it.Barcode, err)
			}
		}
		return nil
	})
	if err != nil {
		// Lost a race against a concurrent request with the same key.
		if key != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, ferr := findByKey(db, *key); ferr == nil && existing != nil {
				return &Recorded{Order: *existing, Replayed: true}, nil
			}
		}
		return nil, apperr.FromStore("record order", err)
	}
	return &Recorded{Order: order}, nil
}

// orderClockLockKey identifies the transaction-scoped advisory lock that
// orders checkouts on postgres.
const orderClockLockKey = 7_204_001

// lockOrderClock makes concurrent checkouts read the newest order and insert
// one at a time. SQLite already allows a single writer.
func lockOrderClock(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", orderClockLockKey).Error; err != nil {
		return fmt.Errorf("lock order clock: %w", err)
	}
	return nil
}

// nextTimestamp keeps creation times non-decreasing even if the wall clock
// steps backwards. The clock is read after the newest order so a checkout
// that waited on the lock cannot stamp an older time.
func (r *Recorder) nextTimestamp(tx *gorm.DB) (time.Time, error) {
	var last models.Order
	err := tx.Select("id", "created_at").Order("created_at desc, id desc").Limit(1).Take(&last).Error
	now := r.now()
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return now, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("latest order: %w", err)
	}
	if now.Before(last.CreatedAt) {
		return last.CreatedAt, nil
	}
	return now, nil
}

// costSnapshot looks up the current catalog cost for every scanned barcode.
// Barcodes unknown to the catalog keep a zero cost.
func costSnapshot(tx *gorm.DB, items []LineItemInput) (map[string]decimal.Decimal, error) {
	tokens := make([]string, 0, len(items))
	for _, it := range items {
		tokens = append(tokens, it.Barcode)
	}
	out := make(map[string]decimal.Decimal, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	type row struct {
		Token     string          `gorm:"column:token"`
		CostPrice decimal.Decimal `gorm:"column:cost_price"`
	}
	var rows []row
	err := tx.Table("barcodes AS b").
		Select("b.token, p.cost_price").
		Joins("JOIN products p ON p.id = b.product_id").
		Where("b.token IN ?", tokens).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("cost snapshot: %w", err)
	}
	for _, r := range rows {
		out[r.Token] = r.CostPrice
	}
	return out, nil
}

func findByKey(db *gorm.DB, key string) (*models.Order, error) {
	var o models.Order
	err := db.Where("idempotency_key = ?", key).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns all orders, newest first.
func (r *Recorder) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Order("created_at desc, id desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListLineItems returns the items of an order in insertion order. An unknown
// order yields an empty slice.
func (r *Recorder) ListLineItems(ctx context.Context, orderID uint) ([]models.OrderLineItem, error) {
	items := []models.OrderLineItem{}
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return items, nil
}
