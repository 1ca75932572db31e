package sales

import (
	"fmt"
	"strconv"
	"time"

	"emlak-backend/internal/audit"
	"emlak-backend/internal/auth"
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"
	"emlak-backend/internal/prim"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request Types
// -------------------------

type CreateSaleRequest struct {
	CustomerName      string  `json:"customer_name"`
	CustomerPhone     string  `json:"customer_phone"`
	Block             string  `json:"block"`
	ApartmentNo       string  `json:"apartment_no"`
	ContractNo        *string `json:"contract_no"`
	SaleType          string  `json:"sale_type"` // "satış" | "kapora", boşsa satış
	SaleDate          string  `json:"sale_date"` // "2025-09-15"
	ListPrice         float64 `json:"list_price"`
	DiscountRate      float64 `json:"discount_rate"`
	ActivitySalePrice float64 `json:"activity_sale_price"`
	Notes             string  `json:"notes"`
	// admin için zorunlu; danışman kendi adına satış açar
	SalespersonID *uint `json:"salesperson_id"`
}

type UpdateSaleRequest struct {
	CustomerName      *string  `json:"customer_name"`
	CustomerPhone     *string  `json:"customer_phone"`
	Block             *string  `json:"block"`
	ApartmentNo       *string  `json:"apartment_no"`
	ContractNo        *string  `json:"contract_no"`
	SaleDate          *string  `json:"sale_date"`
	ListPrice         *float64 `json:"list_price"`
	DiscountRate      *float64 `json:"discount_rate"`
	ActivitySalePrice *float64 `json:"activity_sale_price"`
	Notes             *string  `json:"notes"`
}

type TransferSaleRequest struct {
	NewSalespersonID uint `json:"new_salesperson_id"`
}

type ReassignPeriodRequest struct {
	PrimPeriodID uint `json:"prim_period_id"`
}

type PrimStatusRequest struct {
	PrimStatus string `json:"prim_status"` // "ödendi" | "ödenmedi"
}

// -------------------------
// Yardımcılar
// -------------------------

func getActor(c *fiber.Ctx) (uint, string, models.UserRole, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, "", "", fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, role, nil
}

func parseSaleID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Satış ID geçersiz")
	}
	return uint(id), nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// Danışman yalnızca kendi satışına dokunabilir; admin hepsine.
func requireOwnership(c *fiber.Ctx, saleID uint) error {
	userID, _, role, err := getActor(c)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}

	var sale models.Sale
	if err := database.DB.Select("salesperson_id").First(&sale, "id = ?", saleID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Satış bulunamadı")
	}
	if sale.SalespersonID != userID {
		return fiber.NewError(fiber.StatusForbidden, "Bu satış üzerinde yetkiniz yok")
	}
	return nil
}

func writeSaleAudit(c *fiber.Ctx, action models.AuditAction, sale *models.Sale, description string, before any) {
	userID, userName, _, err := getActor(c)
	if err != nil {
		return
	}
	if logErr := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  "sale",
		EntityID:    sale.ID,
		Action:      action,
		Description: description,
		Before:      before,
		After: fiber.Map{
			"status":         sale.Status,
			"prim_status":    sale.PrimStatus,
			"prim_amount":    sale.PrimAmount,
			"salesperson_id": sale.SalespersonID,
			"prim_period_id": sale.PrimPeriodID,
			"version":        sale.Version,
		},
	}); logErr != nil {
		// Log hatası kritik değil, sadece log'la
		fmt.Printf("Audit log yazılamadı: %v\n", logErr)
	}
}

// -------------------------------------------------
// POST /api/sales
// -------------------------------------------------
func CreateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		userID, _, role, err := getActor(c)
		if err != nil {
			return err
		}

		var salespersonID uint
		if role == models.RoleAdmin {
			if body.SalespersonID == nil {
				return fiber.NewError(fiber.StatusBadRequest, "salesperson_id zorunlu")
			}
			salespersonID = *body.SalespersonID
		} else {
			salespersonID = userID
		}

		if body.SaleDate == "" {
			return fiber.NewError(fiber.StatusBadRequest, "sale_date zorunlu")
		}
		saleDate, err := parseDate(body.SaleDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz, 'YYYY-MM-DD' olmalı")
		}

		sale, err := prim.CreateSale(database.DB, prim.CreateSaleInput{
			CustomerName:      body.CustomerName,
			CustomerPhone:     body.CustomerPhone,
			Block:             body.Block,
			ApartmentNo:       body.ApartmentNo,
			ContractNo:        body.ContractNo,
			SaleType:          models.SaleType(body.SaleType),
			SaleDate:          saleDate,
			ListPrice:         body.ListPrice,
			DiscountRate:      body.DiscountRate,
			ActivitySalePrice: body.ActivitySalePrice,
			SalespersonID:     salespersonID,
			Notes:             body.Notes,
		}, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		writeSaleAudit(c, models.AuditActionCreate, sale,
			fmt.Sprintf("Satış eklendi: %s %s - prim %.2f TL", sale.Block, sale.ApartmentNo, sale.PrimAmount), nil)

		return c.Status(fiber.StatusCreated).JSON(sale)
	}
}

// -------------------------------------------------
// GET /api/sales?status=aktif&sale_type=satış&period_id=3&salesperson_id=5&from=2025-09-01&to=2025-09-30
// -------------------------------------------------
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, role, err := getActor(c)
		if err != nil {
			return err
		}

		q := database.DB.Model(&models.Sale{}).
			Preload("Salesperson").
			Preload("PrimPeriod").
			Order("sale_date DESC, id DESC")

		if role == models.RoleAdmin {
			if spStr := c.Query("salesperson_id"); spStr != "" {
				spID, err := strconv.Atoi(spStr)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "salesperson_id geçersiz")
				}
				q = q.Where("salesperson_id = ?", spID)
			}
		} else {
			q = q.Where("salesperson_id = ?", userID)
		}

		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if saleType := c.Query("sale_type"); saleType != "" {
			q = q.Where("sale_type = ?", saleType)
		}
		if pStr := c.Query("period_id"); pStr != "" {
			pID, err := strconv.Atoi(pStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "period_id geçersiz")
			}
			q = q.Where("prim_period_id = ?", pID)
		}
		if from := c.Query("from"); from != "" {
			d, err := parseDate(from)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi geçersiz, 'YYYY-MM-DD' olmalı")
			}
			q = q.Where("sale_date >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := parseDate(to)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi geçersiz, 'YYYY-MM-DD' olmalı")
			}
			q = q.Where("sale_date <= ?", d)
		}

		var sales []models.Sale
		if err := q.Find(&sales).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Satışlar alınamadı")
		}

		return c.JSON(sales)
	}
}

// -------------------------------------------------
// GET /api/sales/:id
// -------------------------------------------------
func GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}
		if err := requireOwnership(c, saleID); err != nil {
			return err
		}

		sale, err := prim.LoadSale(database.DB, saleID)
		if err != nil {
			return prim.HTTPError(err)
		}
		return c.JSON(sale)
	}
}

// -------------------------------------------------
// PUT /api/sales/:id
// -------------------------------------------------
func UpdateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}
		if err := requireOwnership(c, saleID); err != nil {
			return err
		}

		var body UpdateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		in := prim.UpdateSaleInput{
			CustomerName:      body.CustomerName,
			CustomerPhone:     body.CustomerPhone,
			Block:             body.Block,
			ApartmentNo:       body.ApartmentNo,
			ContractNo:        body.ContractNo,
			ListPrice:         body.ListPrice,
			DiscountRate:      body.DiscountRate,
			ActivitySalePrice: body.ActivitySalePrice,
			Notes:             body.Notes,
		}
		if body.SaleDate != nil {
			d, err := parseDate(*body.SaleDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz, 'YYYY-MM-DD' olmalı")
			}
			in.SaleDate = &d
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		before, _ := prim.LoadSale(database.DB, saleID)

		sale, err := prim.UpdateSale(database.DB, saleID, in, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		var beforeData any
		if before != nil {
			beforeData = fiber.Map{
				"list_price":          before.ListPrice,
				"discount_rate":       before.DiscountRate,
				"activity_sale_price": before.ActivitySalePrice,
				"prim_amount":         before.PrimAmount,
				"sale_date":           before.SaleDate.Format("2006-01-02"),
			}
		}
		writeSaleAudit(c, models.AuditActionUpdate, sale, "Satış güncellendi", beforeData)

		return c.JSON(sale)
	}
}

// -------------------------------------------------
// POST /api/sales/:id/cancel
// -------------------------------------------------
func CancelSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}
		if err := requireOwnership(c, saleID); err != nil {
			return err
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		sale, err := prim.CancelSale(database.DB, saleID, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		writeSaleAudit(c, models.AuditActionCancel, sale, "Satış iptal edildi", nil)

		return c.JSON(sale)
	}
}

// -------------------------------------------------
// POST /api/sales/:id/restore  (yalnız admin)
// -------------------------------------------------
func RestoreSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		sale, err := prim.RestoreSale(database.DB, saleID, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		writeSaleAudit(c, models.AuditActionRestore, sale, "İptal edilen satış geri alındı", nil)

		return c.JSON(sale)
	}
}

// -------------------------------------------------
// POST /api/sales/:id/transfer  (yalnız admin)
// -------------------------------------------------
func TransferSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}

		var body TransferSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.NewSalespersonID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "new_salesperson_id zorunlu")
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		before, _ := prim.LoadSale(database.DB, saleID)

		sale, err := prim.TransferSale(database.DB, saleID, body.NewSalespersonID, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		var beforeData any
		if before != nil {
			beforeData = fiber.Map{"salesperson_id": before.SalespersonID}
		}
		writeSaleAudit(c, models.AuditActionTransfer, sale,
			fmt.Sprintf("Satış %d numaralı danışmana devredildi", body.NewSalespersonID), beforeData)

		return c.JSON(sale)
	}
}

// -------------------------------------------------
// POST /api/sales/:id/reassign-period  (yalnız admin)
// -------------------------------------------------
func ReassignPeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}

		var body ReassignPeriodRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.PrimPeriodID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "prim_period_id zorunlu")
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		before, _ := prim.LoadSale(database.DB, saleID)

		sale, err := prim.ReassignPeriod(database.DB, saleID, body.PrimPeriodID, userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		var beforeData any
		if before != nil {
			beforeData = fiber.Map{"prim_period_id": before.PrimPeriodID}
		}
		writeSaleAudit(c, models.AuditActionUpdate, sale, "Prim dönemi değiştirildi", beforeData)

		return c.JSON(sale)
	}
}

// -------------------------------------------------
// PATCH /api/sales/:id/prim-status  (yalnız admin)
// -------------------------------------------------
func SetPrimStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseSaleID(c)
		if err != nil {
			return err
		}

		var body PrimStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		userID, _, _, err := getActor(c)
		if err != nil {
			return err
		}

		sale, err := prim.SetPrimStatus(database.DB, saleID, models.PrimStatus(body.PrimStatus), userID)
		if err != nil {
			return prim.HTTPError(err)
		}

		writeSaleAudit(c, models.AuditActionUpdate, sale,
			fmt.Sprintf("Prim durumu '%s' yapıldı", sale.PrimStatus), nil)

		return c.JSON(sale)
	}
}
