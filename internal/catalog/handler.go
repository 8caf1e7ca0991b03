package catalog

import (
	"strings"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ProductResponse struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	ImageRef      string          `json:"image_ref"`
	Brand         string          `json:"brand"`
	Specification string          `json:"specification"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	Note          string          `json:"note"`
	Barcode       string          `json:"barcode,omitempty"` // the label that was scanned
	Barcodes      []string        `json:"barcodes"`
	CreatedAt     string          `json:"created_at"`
}

type ProductRequest struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	ImageRef      string          `json:"image_ref"`
	Brand         string          `json:"brand"`
	Specification string          `json:"specification"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	Note          string          `json:"note"`
	Barcodes      []string        `json:"barcodes"` // create only
}

type BarcodesRequest struct {
	Barcodes []string `json:"barcodes"`
}

func (r ProductRequest) fields() ProductFields {
	return ProductFields{
		Name:          r.Name,
		Price:         r.Price,
		CostPrice:     r.CostPrice,
		ImageRef:      r.ImageRef,
		Brand:         r.Brand,
		Specification: r.Specification,
		Manufacturer:  r.Manufacturer,
		Category:      r.Category,
		Note:          r.Note,
	}
}

func toResponse(p models.Product, scanned string) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		CostPrice:     p.CostPrice,
		ImageRef:      p.ImageRef,
		Brand:         p.Brand,
		Specification: p.Specification,
		Manufacturer:  p.Manufacturer,
		Category:      p.Category,
		Note:          p.Note,
		Barcode:       scanned,
		Barcodes:      p.Tokens(),
		CreatedAt:     p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func productID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "product id is invalid")
	}
	return uint(id), nil
}

// GET /api/products/:barcode
func ResolveHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := store.ResolveByBarcode(c.UserContext(), c.Params("barcode"))
		if err != nil {
			return err
		}
		return c.JSON(toResponse(res.Product, res.ScannedBarcode))
	}
}

// GET /api/products
func ListProductsHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := store.ListProducts(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			res = append(res, toResponse(p, ""))
		}
		return c.JSON(res)
	}
}

// POST /api/products
func CreateProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		id, err := store.CreateProduct(c.UserContext(), body.fields(), body.Barcodes)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "id": id})
	}
}

// PUT /api/products/:barcode
// The key is one barcode; a comma-joined list is a 400, use /by-id/:id instead.
func UpdateProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := store.UpdateProduct(c.UserContext(), c.Params("barcode"), body.fields())
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*p, ""))
	}
}

// DELETE /api/products/:barcode
// Same single-barcode key as PUT. An unknown barcode still answers success.
func DeleteProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.DeleteProduct(c.UserContext(), c.Params("barcode")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success"})
	}
}

// GET /api/products/by-id/:id
func GetProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}
		p, err := store.GetProduct(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*p, ""))
	}
}

// PUT /api/products/by-id/:id
func UpdateProductByIDHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := store.UpdateProductByID(c.UserContext(), id, body.fields())
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*p, ""))
	}
}

// DELETE /api/products/by-id/:id
func DeleteProductByIDHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}
		if err := store.DeleteProductByID(c.UserContext(), id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success"})
	}
}

// POST /api/products/by-id/:id/barcodes
func AddBarcodesHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}
		var body BarcodesRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := store.AddBarcodes(c.UserContext(), id, body.Barcodes)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*p, ""))
	}
}

// DELETE /api/barcodes/:barcode
func RemoveBarcodeHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.RemoveBarcode(c.UserContext(), c.Params("barcode")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success"})
	}
}

// POST /api/products/import (multipart, field "file", .xlsx)
func ImportProductsHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "only .xlsx files are accepted")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file could not be opened")
		}
		defer file.Close()

		res, err := store.ImportProducts(c.UserContext(), file)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}
