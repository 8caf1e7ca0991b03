package audit

import (
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// GET /api/audit-logs?entity_type=product&entity_id=1&limit=50
func ListAuditLogsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entityID := c.QueryInt("entity_id", 0)
		if entityID < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "entity_id is invalid")
		}

		logs, err := svc.List(c.UserContext(), Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   uint(entityID),
			Limit:      c.QueryInt("limit", defaultListLimit),
		})
		if err != nil {
			return err
		}

		res := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			res = append(res, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}
		return c.JSON(res)
	}
}
