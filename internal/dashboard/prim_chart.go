package dashboard

import (
	"fmt"
	"sort"

	"emlak-backend/internal/auth"
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type PrimChartPoint struct {
	Label      string  `json:"label"` // "Eylül 2025"
	Month      int     `json:"month"`
	Year       int     `json:"year"`
	SalesCount int     `json:"sales_count"`
	PrimTotal  float64 `json:"prim_total"` // iptal edilmemiş defter kayıtlarının toplamı
}

type PrimChartResponse struct {
	Year   int              `json:"year"`
	Points []PrimChartPoint `json:"points"`
	Total  float64          `json:"total"`
}

// GET /api/dashboard/prim-chart?year=2025
// Danışman kendi yılına bakar, admin herkesinkine (?salesperson_id=5).
func PrimChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(auth.CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		var year int
		if _, err := fmt.Sscan(c.Query("year", ""), &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}

		var salespersonID uint
		if role == models.RoleAdmin {
			if spStr := c.Query("salesperson_id"); spStr != "" {
				if _, err := fmt.Sscan(spStr, &salespersonID); err != nil || salespersonID == 0 {
					return fiber.NewError(fiber.StatusBadRequest, "salesperson_id geçersiz")
				}
			}
		} else {
			userIDVal := c.Locals(auth.CtxUserIDKey)
			userID, ok := userIDVal.(uint)
			if !ok {
				return fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
			}
			salespersonID = userID
		}

		// defter toplamları dönem bazında
		type ledgerRow struct {
			Month int     `gorm:"column:month"`
			Name  string  `gorm:"column:name"`
			Total float64 `gorm:"column:total"`
		}
		var ledgerRows []ledgerRow

		ledgerQ := database.DB.Table("prim_transactions").
			Select("prim_periods.month as month, prim_periods.name as name, COALESCE(SUM(prim_transactions.amount), 0) as total").
			Joins("JOIN prim_periods ON prim_periods.id = prim_transactions.prim_period_id").
			Where("prim_periods.year = ? AND prim_transactions.status <> ?", year, models.PrimTxIptal).
			Group("prim_periods.month, prim_periods.name")
		if salespersonID != 0 {
			ledgerQ = ledgerQ.Where("prim_transactions.salesperson_id = ?", salespersonID)
		}
		if err := ledgerQ.Scan(&ledgerRows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}

		// satış adetleri dönem bazında
		type salesRow struct {
			Month int    `gorm:"column:month"`
			Name  string `gorm:"column:name"`
			Count int    `gorm:"column:cnt"`
		}
		var salesRows []salesRow

		salesQ := database.DB.Table("sales").
			Select("prim_periods.month as month, prim_periods.name as name, COUNT(*) as cnt").
			Joins("JOIN prim_periods ON prim_periods.id = sales.prim_period_id").
			Where("prim_periods.year = ? AND sales.sale_type <> ?", year, models.SaleTypeKapora)
		if salespersonID != 0 {
			salesQ = salesQ.Where("sales.salesperson_id = ?", salespersonID)
		}
		if err := salesQ.Group("prim_periods.month, prim_periods.name").Scan(&salesRows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}

		byMonth := make(map[int]*PrimChartPoint)
		for _, r := range ledgerRows {
			byMonth[r.Month] = &PrimChartPoint{Label: r.Name, Month: r.Month, Year: year, PrimTotal: r.Total}
		}
		for _, r := range salesRows {
			p, ok := byMonth[r.Month]
			if !ok {
				p = &PrimChartPoint{Label: r.Name, Month: r.Month, Year: year}
				byMonth[r.Month] = p
			}
			p.SalesCount = r.Count
		}

		resp := PrimChartResponse{Year: year}
		for _, p := range byMonth {
			resp.Points = append(resp.Points, *p)
			resp.Total += p.PrimTotal
		}
		sort.Slice(resp.Points, func(i, j int) bool {
			return resp.Points[i].Month < resp.Points[j].Month
		})

		return c.JSON(resp)
	}
}
