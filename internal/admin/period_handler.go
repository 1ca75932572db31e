package admin

import (
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------------------------------
// GET /api/admin/prim-periods
// Dönemler satış akışında kendiliğinden oluşur; burası yalnızca listeler.
// -------------------------------------------------
func ListPeriodsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var periods []models.PrimPeriod
		if err := database.DB.Order("year DESC, month DESC").Find(&periods).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dönemler alınamadı")
		}
		return c.JSON(periods)
	}
}
