package prim

import (
	"sort"

	"emlak-backend/internal/models"

	"gorm.io/gorm"
)

type EarningsFilter struct {
	SalespersonID *uint
	PeriodID      *uint
}

type EarningsRow struct {
	SalespersonID   uint    `json:"salesperson_id"`
	SalespersonName string  `json:"salesperson_name"`
	PrimPeriodID    uint    `json:"prim_period_id"`
	PeriodName      string  `json:"period_name"`
	PeriodMonth     int     `json:"period_month"`
	PeriodYear      int     `json:"period_year"`
	SalesCount      int     `json:"sales_count"`
	TotalEarnings   float64 `json:"total_earnings"`
	PaidAmount      float64 `json:"paid_amount"`
	UnpaidAmount    float64 `json:"unpaid_amount"`
	TotalDeductions float64 `json:"total_deductions"`
	DeductionsCount int     `json:"deductions_count"`
}

type bucketKey struct {
	salespersonID uint
	periodID      uint
}

// Earnings - Hakediş raporu: (danışman, dönem) başına defter toplamları.
// Salt okunur projeksiyon; ne satışı ne defteri değiştirir, yaşam döngüsü
// işlemleri kayıt eklerken tekrar tekrar çalıştırılabilir.
//
// Kural seti:
//   - totalEarnings: iptal edilmemiş tüm defter kayıtlarının toplamı
//   - salesCount: o kovadaki kapora olmayan satış sayısı (sıfırsa satır gizlenir)
//   - paid/unpaid: defterden değil Sale.prim_status'tan türetilir; ödenmemiş
//     tutara iptal satışlar dahil edilmez (satış durumu join'i)
//   - totalDeductions: satışı halen iptal durumda olan aktif kesinti kayıtları
func Earnings(db *gorm.DB, f EarningsFilter) ([]EarningsRow, error) {
	type salesAgg struct {
		SalespersonID uint    `gorm:"column:salesperson_id"`
		PrimPeriodID  uint    `gorm:"column:prim_period_id"`
		SalesCount    int     `gorm:"column:sales_count"`
		PaidAmount    float64 `gorm:"column:paid_amount"`
		UnpaidAmount  float64 `gorm:"column:unpaid_amount"`
	}
	var salesRows []salesAgg

	salesQ := db.Model(&models.Sale{}).
		Select(`salesperson_id, prim_period_id,
			COUNT(*) as sales_count,
			COALESCE(SUM(CASE WHEN prim_status = ? THEN prim_amount ELSE 0 END), 0) as paid_amount,
			COALESCE(SUM(CASE WHEN prim_status = ? AND status = ? THEN prim_amount ELSE 0 END), 0) as unpaid_amount`,
			models.PrimStatusOdendi, models.PrimStatusOdenmedi, models.SaleStatusAktif).
		Where("sale_type <> ? AND prim_period_id IS NOT NULL", models.SaleTypeKapora).
		Group("salesperson_id, prim_period_id")
	if f.SalespersonID != nil {
		salesQ = salesQ.Where("salesperson_id = ?", *f.SalespersonID)
	}
	if f.PeriodID != nil {
		salesQ = salesQ.Where("prim_period_id = ?", *f.PeriodID)
	}
	if err := salesQ.Scan(&salesRows).Error; err != nil {
		return nil, err
	}

	type ledgerAgg struct {
		SalespersonID uint    `gorm:"column:salesperson_id"`
		PrimPeriodID  uint    `gorm:"column:prim_period_id"`
		Total         float64 `gorm:"column:total"`
	}
	var ledgerRows []ledgerAgg

	ledgerQ := db.Model(&models.PrimTransaction{}).
		Select("salesperson_id, prim_period_id, COALESCE(SUM(amount), 0) as total").
		Where("status <> ?", models.PrimTxIptal).
		Group("salesperson_id, prim_period_id")
	if f.SalespersonID != nil {
		ledgerQ = ledgerQ.Where("salesperson_id = ?", *f.SalespersonID)
	}
	if f.PeriodID != nil {
		ledgerQ = ledgerQ.Where("prim_period_id = ?", *f.PeriodID)
	}
	if err := ledgerQ.Scan(&ledgerRows).Error; err != nil {
		return nil, err
	}

	type dedAgg struct {
		SalespersonID uint    `gorm:"column:salesperson_id"`
		PrimPeriodID  uint    `gorm:"column:prim_period_id"`
		Total         float64 `gorm:"column:total"`
		Count         int     `gorm:"column:cnt"`
	}
	var dedRows []dedAgg

	dedQ := db.Model(&models.PrimTransaction{}).
		Select(`prim_transactions.salesperson_id, prim_transactions.prim_period_id,
			COALESCE(SUM(prim_transactions.amount), 0) as total,
			COUNT(*) as cnt`).
		Joins("JOIN sales ON sales.id = prim_transactions.sale_id").
		Where("prim_transactions.transaction_type = ? AND prim_transactions.status <> ? AND sales.status = ?",
			models.PrimTxKesinti, models.PrimTxIptal, models.SaleStatusIptal).
		Group("prim_transactions.salesperson_id, prim_transactions.prim_period_id")
	if f.SalespersonID != nil {
		dedQ = dedQ.Where("prim_transactions.salesperson_id = ?", *f.SalespersonID)
	}
	if f.PeriodID != nil {
		dedQ = dedQ.Where("prim_transactions.prim_period_id = ?", *f.PeriodID)
	}
	if err := dedQ.Scan(&dedRows).Error; err != nil {
		return nil, err
	}

	ledgerByKey := make(map[bucketKey]float64, len(ledgerRows))
	for _, r := range ledgerRows {
		ledgerByKey[bucketKey{r.SalespersonID, r.PrimPeriodID}] = r.Total
	}
	dedByKey := make(map[bucketKey]dedAgg, len(dedRows))
	for _, r := range dedRows {
		dedByKey[bucketKey{r.SalespersonID, r.PrimPeriodID}] = r
	}

	// satırlar satış kovalarından üretilir; satışı olmayan kova raporda yok
	rows := make([]EarningsRow, 0, len(salesRows))
	for _, s := range salesRows {
		key := bucketKey{s.SalespersonID, s.PrimPeriodID}
		ded := dedByKey[key]
		rows = append(rows, EarningsRow{
			SalespersonID:   s.SalespersonID,
			PrimPeriodID:    s.PrimPeriodID,
			SalesCount:      s.SalesCount,
			TotalEarnings:   ledgerByKey[key],
			PaidAmount:      s.PaidAmount,
			UnpaidAmount:    s.UnpaidAmount,
			TotalDeductions: ded.Total,
			DeductionsCount: ded.Count,
		})
	}

	if err := fillNames(db, rows); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PeriodYear != rows[j].PeriodYear {
			return rows[i].PeriodYear > rows[j].PeriodYear
		}
		if rows[i].PeriodMonth != rows[j].PeriodMonth {
			return rows[i].PeriodMonth > rows[j].PeriodMonth
		}
		return rows[i].SalespersonName < rows[j].SalespersonName
	})

	return rows, nil
}

func fillNames(db *gorm.DB, rows []EarningsRow) error {
	if len(rows) == 0 {
		return nil
	}

	spIDs := make([]uint, 0, len(rows))
	periodIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		spIDs = append(spIDs, r.SalespersonID)
		periodIDs = append(periodIDs, r.PrimPeriodID)
	}

	var users []models.User
	if err := db.Where("id IN ?", spIDs).Find(&users).Error; err != nil {
		return err
	}
	nameByID := make(map[uint]string, len(users))
	for _, u := range users {
		nameByID[u.ID] = u.Name
	}

	var periods []models.PrimPeriod
	if err := db.Where("id IN ?", periodIDs).Find(&periods).Error; err != nil {
		return err
	}
	periodByID := make(map[uint]models.PrimPeriod, len(periods))
	for _, p := range periods {
		periodByID[p.ID] = p
	}

	for i := range rows {
		rows[i].SalespersonName = nameByID[rows[i].SalespersonID]
		if p, ok := periodByID[rows[i].PrimPeriodID]; ok {
			rows[i].PeriodName = p.Name
			rows[i].PeriodMonth = p.Month
			rows[i].PeriodYear = p.Year
		}
	}
	return nil
}
