package audit

import (
	"strconv"

	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/admin/audit-logs?entity_type=sale&entity_id=12&limit=100
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.AuditLog{}).Order("created_at DESC")

		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}
		if idStr := c.Query("entity_id"); idStr != "" {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "entity_id geçersiz")
			}
			q = q.Where("entity_id = ?", id)
		}

		limit := 100
		if lStr := c.Query("limit"); lStr != "" {
			l, err := strconv.Atoi(lStr)
			if err != nil || l < 1 || l > 1000 {
				return fiber.NewError(fiber.StatusBadRequest, "limit 1-1000 arasında olmalı")
			}
			limit = l
		}

		var logs []models.AuditLog
		if err := q.Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar alınamadı")
		}

		return c.JSON(logs)
	}
}
