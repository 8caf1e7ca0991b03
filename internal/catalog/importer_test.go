package catalog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportProducts(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.CreateProduct(ctx, ProductFields{Name: "Existing"}, []string{"500"})
	require.NoError(t, err)

	buf := workbook(t, [][]any{
		{"Product name", "Price", "Cost", "Barcodes", "Brand"},
		{"Cola", "3.00", "1.50", "111; 222", "Fizz"},
		{"Chips", "2,5", "", "333 334"},
		{"", "1", "1", "444"},
		{"Clash", "1", "0.5", "500"},
		{"Bad price", "abc", "", "600"},
	})

	res, err := store.ImportProducts(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Failed, 3)
	assert.Equal(t, 4, res.Failed[0].Row)
	assert.Equal(t, 5, res.Failed[1].Row)
	assert.True(t, strings.Contains(res.Failed[1].Error, "conflict"), res.Failed[1].Error)
	assert.Equal(t, 6, res.Failed[2].Row)

	cola, err := store.ResolveByBarcode(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, "Cola", cola.Product.Name)
	assert.Equal(t, "Fizz", cola.Product.Brand)
	assert.True(t, cola.Product.CostPrice.Equal(decimal.RequireFromString("1.5")))

	chips, err := store.ResolveByBarcode(ctx, "334")
	require.NoError(t, err)
	assert.True(t, chips.Product.Price.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, chips.Product.CostPrice.IsZero())
}

func TestImportRejectsGarbage(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.ImportProducts(context.Background(), strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestImportHeaderlessSheetKeepsFirstRow(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	buf := workbook(t, [][]any{
		{"Dairy Product Mix", "3.00", "1.00", "111"},
		{"Cola", "3.00", "1.00", "222"},
	})
	res, err := store.ImportProducts(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Failed)

	mix, err := store.ResolveByBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "Dairy Product Mix", mix.Product.Name)
}

func TestImportFirstRowNamedLikeALabel(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	// A product literally called "Product" is data as long as its price is an amount.
	buf := workbook(t, [][]any{
		{"Product", "2,50", "", "111"},
	})
	res, err := store.ImportProducts(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	p, err := store.ResolveByBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "Product", p.Product.Name)
}

func TestIsHeader(t *testing.T) {
	assert.True(t, isHeader([]string{"Name", "Price", "Cost"}))
	assert.True(t, isHeader([]string{" product name ", "price"}))
	assert.True(t, isHeader([]string{"NAME"}))
	assert.False(t, isHeader([]string{"Name", "3.00"}))
	assert.False(t, isHeader([]string{"Dairy Product Mix", "Price"}))
	assert.False(t, isHeader(nil))
}
