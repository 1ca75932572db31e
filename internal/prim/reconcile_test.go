package prim

import (
	"testing"
	"time"

	"emlak-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createKesinti(t *testing.T, db *gorm.DB, sale *models.Sale, createdAt time.Time) *models.PrimTransaction {
	t.Helper()
	entry := models.PrimTransaction{
		SalespersonID:   sale.SalespersonID,
		SaleID:          sale.ID,
		PrimPeriodID:    *sale.PrimPeriodID,
		TransactionType: models.PrimTxKesinti,
		Amount:          -sale.PrimAmount,
		Status:          models.PrimTxOnaylandi,
		CreatedAt:       createdAt,
	}
	require.NoError(t, db.Create(&entry).Error)
	return &entry
}

func TestRecomputeSaleRepairsTamperedFields(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	// temiz satışta onarım no-op
	_, changed, err := RecomputeSale(db, sale.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// türetilmiş alanları elle boz
	require.NoError(t, db.Model(&models.Sale{}).
		Where("id = ?", sale.ID).
		Updates(map[string]interface{}{
			"discounted_list_price": 1,
			"base_prim_price":       2,
			"prim_amount":           3,
		}).Error)

	repaired, changed, err := RecomputeSale(db, sale.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 475000.0, repaired.DiscountedListPrice)
	assert.Equal(t, 475000.0, repaired.BasePrimPrice)
	assert.Equal(t, 4750.0, repaired.PrimAmount)

	// idempotent: ikinci koşu bir şey değiştirmez
	_, changed, err = RecomputeSale(db, sale.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDedupeKeepsMostRecentDeduction(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)
	cancelled, err := CancelSale(db, sale.ID, admin.ID)
	require.NoError(t, err)

	// bozuk veri: aynı satışa iki fazladan kesinti
	base := time.Date(2025, 9, 16, 10, 0, 0, 0, time.UTC)
	createKesinti(t, db, cancelled, base)
	newest := createKesinti(t, db, cancelled, base.Add(2*time.Hour))

	n, err := DedupeDeductions(db, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var active []models.PrimTransaction
	require.NoError(t, db.Where("sale_id = ? AND transaction_type = ? AND status <> ?",
		sale.ID, models.PrimTxKesinti, models.PrimTxIptal).
		Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, newest.ID, active[0].ID)

	// hiçbir kayıt silinmedi, fazlalıklar iptal statüsünde duruyor
	var total int64
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND transaction_type = ?", sale.ID, models.PrimTxKesinti).
		Count(&total).Error)
	assert.Equal(t, int64(3), total)

	// idempotent
	n, err = DedupeDeductions(db, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRealignPeriodMovesLedgerInPlace(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	// temiz satışta no-op
	_, changed, err := RealignPeriod(db, sale.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// satış tarihi elle ekim ayına çekilmiş, dönem eylülde kalmış
	require.NoError(t, db.Model(&models.Sale{}).
		Where("id = ?", sale.ID).
		Update("sale_date", time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)).Error)

	entriesBefore := saleTransactions(t, db, sale.ID)

	realigned, changed, err := RealignPeriod(db, sale.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, realigned.PrimPeriod)
	assert.Equal(t, "Ekim 2025", realigned.PrimPeriod.Name)

	// kayıt sayısı değişmedi, tüm kayıtlar yerinde taşındı
	entriesAfter := saleTransactions(t, db, sale.ID)
	require.Equal(t, len(entriesBefore), len(entriesAfter))
	for _, e := range entriesAfter {
		assert.Equal(t, *realigned.PrimPeriodID, e.PrimPeriodID)
	}

	_, changed, err = RealignPeriod(db, sale.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRepairBatchSkipsKaporaAndCollectsCounts(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	s1, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = CreateSale(db, CreateSaleInput{
		CustomerName:  "Ayşe Demir",
		SaleType:      models.SaleTypeKapora,
		SaleDate:      time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC),
		SalespersonID: sp.ID,
	}, admin.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Sale{}).
		Where("id = ?", s1.ID).
		Update("prim_amount", 999).Error)

	result, err := RecomputeAll(db)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned) // kapora taranmaz
	assert.Equal(t, 1, result.Repaired)
	assert.Empty(t, result.Errors)

	result, err = DedupeAll(db)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 0, result.Repaired)

	result, err = RealignAll(db)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 0, result.Repaired)
}
