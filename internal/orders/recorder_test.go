package orders

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/catalog"
	"pos-backend/internal/database/dbtest"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func colaOrder() OrderInput {
	return OrderInput{
		TotalAmount: dec("7.50"),
		TotalItems:  3,
		Items: []LineItemInput{
			{Barcode: "111", Name: "Cola", Price: dec("3.00"), Quantity: 2},
			{Barcode: "999", Name: "Gum", Price: dec("1.50"), Quantity: 1},
		},
	}
}

func TestRecordOrderRoundTrip(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	_, err := catalog.NewStore(db).CreateProduct(ctx, catalog.ProductFields{
		Name: "Cola", Price: dec("3"), CostPrice: dec("1.20"),
	}, []string{"111"})
	require.NoError(t, err)

	rec := NewRecorder(db)
	res, err := rec.RecordOrder(ctx, colaOrder())
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	require.NotZero(t, res.Order.ID)

	items, err := rec.ListLineItems(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "111", items[0].BarcodeToken)
	assert.Equal(t, "Cola", items[0].Name)
	assert.True(t, items[0].Price.Equal(dec("3")))
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].CostPrice.Equal(dec("1.2")), "cost snapshot from catalog")
	assert.Equal(t, "999", items[1].BarcodeToken)
	assert.True(t, items[1].CostPrice.IsZero(), "unknown barcode has no cost")

	orders, err := rec.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, res.Order.ID, orders[0].ID)
	assert.True(t, orders[0].TotalAmount.Equal(dec("7.5")))
	assert.Equal(t, 3, orders[0].TotalItems)
}

func TestRecordOrderIsAtomic(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	// Fail the insert of one specific line item after the header and the
	// first item went in.
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_line_item", func(tx *gorm.DB) {
		if item, ok := tx.Statement.Dest.(*models.OrderLineItem); ok && item.BarcodeToken == "boom" {
			_ = tx.AddError(errors.New("forced line item failure"))
		}
	})
	require.NoError(t, err)

	rec := NewRecorder(db)
	_, err = rec.RecordOrder(ctx, OrderInput{
		TotalAmount: dec("4"),
		TotalItems:  2,
		Items: []LineItemInput{
			{Barcode: "111", Name: "Cola", Price: dec("3"), Quantity: 1},
			{Barcode: "boom", Name: "Bad", Price: dec("1"), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, apperr.ErrTransaction)

	var orders, items int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderLineItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)

	list, err := rec.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordOrderValidation(t *testing.T) {
	rec := NewRecorder(dbtest.Open(t))
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*OrderInput)
		field  string
	}{
		"zero quantity":    {func(in *OrderInput) { in.Items[0].Quantity = 0 }, "items[0].quantity"},
		"negative price":   {func(in *OrderInput) { in.Items[1].Price = dec("-1") }, "items[1].price"},
		"missing barcode":  {func(in *OrderInput) { in.Items[0].Barcode = " " }, "items[0].barcode"},
		"missing name":     {func(in *OrderInput) { in.Items[1].Name = "" }, "items[1].name"},
		"amount mismatch":  {func(in *OrderInput) { in.TotalAmount = dec("8") }, "total_amount"},
		"count mismatch":   {func(in *OrderInput) { in.TotalItems = 2 }, "total_items"},
		"negative total":   {func(in *OrderInput) { in.TotalAmount = dec("-7.5") }, "total_amount"},
		"negative count":   {func(in *OrderInput) { in.TotalItems = -3 }, "total_items"},
		"huge quantity":    {func(in *OrderInput) { in.Items[0].Quantity = maxQuantity + 1 }, "items[0].quantity"},
		"overflowing quantities": {func(in *OrderInput) {
			in.Items[0].Quantity = math.MaxInt
			in.Items[1].Quantity = math.MaxInt
			in.TotalAmount = decimal.Zero
			in.TotalItems = -2
		}, "items[0].quantity"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := colaOrder()
			tc.mutate(&in)
			_, err := rec.RecordOrder(ctx, in)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Violations, tc.field)
		})
	}

	orders, err := rec.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRecordOrderWithoutItems(t *testing.T) {
	rec := NewRecorder(dbtest.Open(t))
	res, err := rec.RecordOrder(context.Background(), OrderInput{TotalAmount: decimal.Zero})
	require.NoError(t, err)

	items, err := rec.ListLineItems(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecordOrderIdempotencyKey(t *testing.T) {
	db := dbtest.Open(t)
	rec := NewRecorder(db)
	ctx := context.Background()

	in := colaOrder()
	in.IdempotencyKey = "till-1-0001"
	first, err := rec.RecordOrder(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := rec.RecordOrder(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	var items int64
	require.NoError(t, db.Model(&models.OrderLineItem{}).Count(&items).Error)
	assert.EqualValues(t, 2, items)

	// Orders without a key never collide.
	_, err = rec.RecordOrder(ctx, colaOrder())
	require.NoError(t, err)
	_, err = rec.RecordOrder(ctx, colaOrder())
	require.NoError(t, err)
	orders, err := rec.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestCreationTimeNeverGoesBackwards(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	clock := base
	rec := NewRecorder(db).WithClock(func() time.Time { return clock })

	first, err := rec.RecordOrder(ctx, colaOrder())
	require.NoError(t, err)

	clock = base.Add(-time.Hour)
	second, err := rec.RecordOrder(ctx, colaOrder())
	require.NoError(t, err)
	assert.False(t, second.Order.CreatedAt.Before(first.Order.CreatedAt))

	orders, err := rec.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.Order.ID, orders[0].ID, "ties are broken by id, newest first")
}

func TestListLineItemsUnknownOrder(t *testing.T) {
	rec := NewRecorder(dbtest.Open(t))
	items, err := rec.ListLineItems(context.Background(), 12345)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestConcurrentCheckoutsKeepTimeInIDOrder(t *testing.T) {
	db := dbtest.Open(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	// The clock jitters back and forth between calls.
	var ticks atomic.Int64
	rec := NewRecorder(db).WithClock(func() time.Time {
		n := ticks.Add(1)
		return base.Add(time.Duration(n%4-2) * time.Minute)
	})

	const checkouts = 8
	var wg sync.WaitGroup
	errs := make(chan error, checkouts)
	for i := 0; i < checkouts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.RecordOrder(context.Background(), colaOrder())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var stored []models.Order
	require.NoError(t, db.Order("id asc").Find(&stored).Error)
	require.Len(t, stored, checkouts)
	for i := 1; i < len(stored); i++ {
		assert.False(t, stored[i].CreatedAt.Before(stored[i-1].CreatedAt),
			"order %d stamped before order %d", stored[i].ID, stored[i-1].ID)
	}
}
