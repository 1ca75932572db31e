package admin

import (
	"fmt"
	"strconv"
	"time"

	"emlak-backend/internal/audit"
	"emlak-backend/internal/auth"
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateRateRequest struct {
	Rate          float64 `json:"rate"`           // yüzde (0-100)
	EffectiveDate string  `json:"effective_date"` // "2025-09-01", boşsa bugün
}

func getAdminInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

// -------------------------------------------------
// POST /api/admin/prim-rates
// Yeni oran oluşturulur ve aktifleştirilir; eski aktif oran pasife çekilir.
// Oran kayıtları hiçbir zaman silinmez.
// -------------------------------------------------
func CreateRateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.Rate <= 0 || body.Rate > 100 {
			return fiber.NewError(fiber.StatusBadRequest, "Oran 0-100 arasında olmalı")
		}

		effectiveDate := time.Now()
		if body.EffectiveDate != "" {
			d, err := time.Parse("2006-01-02", body.EffectiveDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz, 'YYYY-MM-DD' olmalı")
			}
			effectiveDate = d
		}

		userID, userName, err := getAdminInfo(c)
		if err != nil {
			return err
		}

		var rate models.PrimRate
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			// aynı anda en fazla bir aktif oran
			if err := tx.Model(&models.PrimRate{}).
				Where("is_active = ?", true).
				Update("is_active", false).Error; err != nil {
				return err
			}

			rate = models.PrimRate{
				Rate:          body.Rate,
				EffectiveDate: effectiveDate,
				IsActive:      true,
				CreatedByID:   userID,
			}
			return tx.Create(&rate).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Oran oluşturulamadı")
		}

		if logErr := audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  "prim_rate",
			EntityID:    rate.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Prim oranı %%%.2f olarak güncellendi", rate.Rate),
			After:       rate,
		}); logErr != nil {
			fmt.Printf("Audit log yazılamadı: %v\n", logErr)
		}

		return c.Status(fiber.StatusCreated).JSON(rate)
	}
}

// -------------------------------------------------
// GET /api/admin/prim-rates
// -------------------------------------------------
func ListRatesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rates []models.PrimRate
		if err := database.DB.Order("created_at DESC").Find(&rates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Oranlar alınamadı")
		}
		return c.JSON(rates)
	}
}

// -------------------------------------------------
// POST /api/admin/prim-rates/:id/activate
// Eski bir oranı yeniden aktifleştirir; diğerleri pasife çekilir.
// -------------------------------------------------
func ActivateRateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil || id < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Oran ID geçersiz")
		}

		userID, userName, err := getAdminInfo(c)
		if err != nil {
			return err
		}

		var rate models.PrimRate
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&rate, "id = ?", id).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.PrimRate{}).
				Where("is_active = ?", true).
				Update("is_active", false).Error; err != nil {
				return err
			}
			return tx.Model(&models.PrimRate{}).
				Where("id = ?", rate.ID).
				Update("is_active", true).Error
		})
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Oran bulunamadı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Oran aktifleştirilemedi")
		}

		if logErr := audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  "prim_rate",
			EntityID:    rate.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("%%%.2f oranı yeniden aktifleştirildi", rate.Rate),
		}); logErr != nil {
			fmt.Printf("Audit log yazılamadı: %v\n", logErr)
		}

		rate.IsActive = true
		return c.JSON(rate)
	}
}
