package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-backend/internal/models"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Entry struct {
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Write stores an audit row using tx, so the row commits or rolls back with
// the mutation it describes.
func Write(tx *gorm.DB, e Entry) error {
	log := models.AuditLog{
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		BeforeData:  toJSON(e.Before),
		AfterData:   toJSON(e.After),
	}
	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type Filter struct {
	EntityType string
	EntityID   uint
	Limit      int
}

// List returns audit rows newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
