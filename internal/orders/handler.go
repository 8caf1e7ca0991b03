package orders

import (
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader lets a client retry a checkout safely.
const IdempotencyKeyHeader = "X-Idempotency-Key"

type CreateOrderRequest struct {
	TotalAmount decimal.Decimal   `json:"total_amount"`
	TotalItems  int               `json:"total_items"`
	Items       []LineItemRequest `json:"items"`
}

type LineItemRequest struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type OrderResponse struct {
	ID          uint            `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int             `json:"total_items"`
	CreatedAt   string          `json:"created_at"`
}

func toOrderResponse(o models.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems,
		CreatedAt:   o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/orders
func CreateOrderHandler(rec *Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		in := OrderInput{
			TotalAmount:    body.TotalAmount,
			TotalItems:     body.TotalItems,
			Items:          make([]LineItemInput, 0, len(body.Items)),
			IdempotencyKey: c.Get(IdempotencyKeyHeader),
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, LineItemInput(it))
		}

		res, err := rec.RecordOrder(c.UserContext(), in)
		if err != nil {
			return err
		}

		status := fiber.StatusCreated
		if res.Replayed {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   "success",
			"id":       res.Order.ID,
			"replayed": res.Replayed,
		})
	}
}

// GET /api/orders
func ListOrdersHandler(rec *Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orders, err := rec.ListOrders(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, toOrderResponse(o))
		}
		return c.JSON(res)
	}
}

// GET /api/orders/:id/items
func ListLineItemsHandler(rec *Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "order id is invalid")
		}
		items, err := rec.ListLineItems(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}
