package prim

import (
	"fmt"
	"strconv"

	"emlak-backend/internal/audit"
	"emlak-backend/internal/auth"
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Yardımcı: Kullanıcı bilgilerini al
func getUserInfo(c *fiber.Ctx) (uint, string, error) {
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

func queryUintPtr(c *fiber.Ctx, key string) (*uint, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" geçersiz")
	}
	u := uint(v)
	return &u, nil
}

// -------------------------------------------------
// GET /api/prims/earnings?salesperson_id=5&period_id=3
// Danışman yalnızca kendi hakedişini görür.
// -------------------------------------------------
func EarningsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(auth.CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		var filter EarningsFilter

		if role == models.RoleAdmin {
			spID, err := queryUintPtr(c, "salesperson_id")
			if err != nil {
				return err
			}
			filter.SalespersonID = spID
		} else {
			userID, _, err := getUserInfo(c)
			if err != nil {
				return err
			}
			filter.SalespersonID = &userID
		}

		periodID, err := queryUintPtr(c, "period_id")
		if err != nil {
			return err
		}
		filter.PeriodID = periodID

		rows, err := Earnings(database.DB, filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hakediş raporu hesaplanamadı")
		}

		return c.JSON(rows)
	}
}

// -------------------------------------------------
// GET /api/prims/transactions?sale_id=12&salesperson_id=5&period_id=3&type=kesinti&status=onaylandı
// -------------------------------------------------
func ListTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(auth.CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		q := database.DB.Model(&models.PrimTransaction{}).
			Preload("Salesperson").
			Preload("PrimPeriod").
			Order("created_at DESC, id DESC")

		if role == models.RoleAdmin {
			spID, err := queryUintPtr(c, "salesperson_id")
			if err != nil {
				return err
			}
			if spID != nil {
				q = q.Where("salesperson_id = ?", *spID)
			}
		} else {
			userID, _, err := getUserInfo(c)
			if err != nil {
				return err
			}
			q = q.Where("salesperson_id = ?", userID)
		}

		saleID, err := queryUintPtr(c, "sale_id")
		if err != nil {
			return err
		}
		if saleID != nil {
			q = q.Where("sale_id = ?", *saleID)
		}
		periodID, err := queryUintPtr(c, "period_id")
		if err != nil {
			return err
		}
		if periodID != nil {
			q = q.Where("prim_period_id = ?", *periodID)
		}
		if txType := c.Query("type"); txType != "" {
			q = q.Where("transaction_type = ?", txType)
		}
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var entries []models.PrimTransaction
		if err := q.Limit(500).Find(&entries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Defter kayıtları alınamadı")
		}

		return c.JSON(entries)
	}
}

// -------------------------------------------------
// Reconcile uçları (yalnız admin). sale_id verilirse tek satış, verilmezse
// tüm satışlar taranır. Hepsi idempotent, tekrar çalıştırmak güvenli.
// -------------------------------------------------

// POST /api/admin/reconcile/recompute[?sale_id=12]
func RecomputeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := queryUintPtr(c, "sale_id")
		if err != nil {
			return err
		}

		if saleID != nil {
			sale, changed, err := RecomputeSale(database.DB, *saleID)
			if err != nil {
				return HTTPError(err)
			}
			writeRepairAudit(c, *saleID, "Türetilmiş prim alanları yeniden hesaplandı", changed)
			return c.JSON(fiber.Map{"sale": sale, "repaired": changed})
		}

		result, err := RecomputeAll(database.DB)
		if err != nil {
			return HTTPError(err)
		}
		return c.JSON(result)
	}
}

// POST /api/admin/reconcile/dedupe[?sale_id=12]
func DedupeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := queryUintPtr(c, "sale_id")
		if err != nil {
			return err
		}

		if saleID != nil {
			n, err := DedupeDeductions(database.DB, *saleID)
			if err != nil {
				return HTTPError(err)
			}
			writeRepairAudit(c, *saleID, fmt.Sprintf("%d çift kesinti kaydı iptal edildi", n), n > 0)
			return c.JSON(fiber.Map{"invalidated": n})
		}

		result, err := DedupeAll(database.DB)
		if err != nil {
			return HTTPError(err)
		}
		return c.JSON(result)
	}
}

// POST /api/admin/reconcile/realign[?sale_id=12]
func RealignHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := queryUintPtr(c, "sale_id")
		if err != nil {
			return err
		}

		if saleID != nil {
			sale, changed, err := RealignPeriod(database.DB, *saleID)
			if err != nil {
				return HTTPError(err)
			}
			writeRepairAudit(c, *saleID, "Prim dönemi satış tarihine hizalandı", changed)
			return c.JSON(fiber.Map{"sale": sale, "repaired": changed})
		}

		result, err := RealignAll(database.DB)
		if err != nil {
			return HTTPError(err)
		}
		return c.JSON(result)
	}
}

func writeRepairAudit(c *fiber.Ctx, saleID uint, description string, repaired bool) {
	if !repaired {
		return
	}
	userID, userName, err := getUserInfo(c)
	if err != nil {
		return
	}
	if logErr := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  "sale",
		EntityID:    saleID,
		Action:      models.AuditActionRepair,
		Description: description,
	}); logErr != nil {
		fmt.Printf("Audit log yazılamadı: %v\n", logErr)
	}
}
