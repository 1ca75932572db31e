package prim

import (
	"errors"
	"sync"
	"testing"
	"time"

	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: veritabanı bağlantı başına ayrı olurdu; tek bağlantıya sabitle
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string, role models.UserRole) *models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        name + "@test.local",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createActiveRate(t *testing.T, db *gorm.DB, rate float64) *models.PrimRate {
	t.Helper()
	require.NoError(t, db.Model(&models.PrimRate{}).Where("is_active = ?", true).Update("is_active", false).Error)
	r := models.PrimRate{Rate: rate, EffectiveDate: time.Now(), IsActive: true}
	require.NoError(t, db.Create(&r).Error)
	return &r
}

func defaultSaleInput(salespersonID uint) CreateSaleInput {
	return CreateSaleInput{
		CustomerName:      "Ahmet Yılmaz",
		CustomerPhone:     "05551112233",
		Block:             "A",
		ApartmentNo:       "12",
		SaleDate:          time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		ListPrice:         500000,
		DiscountRate:      5,
		ActivitySalePrice: 475000,
		SalespersonID:     salespersonID,
	}
}

func saleTransactions(t *testing.T, db *gorm.DB, saleID uint) []models.PrimTransaction {
	t.Helper()
	var entries []models.PrimTransaction
	require.NoError(t, db.Where("sale_id = ?", saleID).Order("id").Find(&entries).Error)
	return entries
}

func activeLedgerSum(t *testing.T, db *gorm.DB, saleID uint) float64 {
	t.Helper()
	var total float64
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND status <> ?", saleID, models.PrimTxIptal).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error)
	return total
}

func TestCreateSaleComputesDerivedFields(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	assert.Equal(t, 475000.0, sale.DiscountedListPrice)
	assert.Equal(t, 475000.0, sale.BasePrimPrice)
	assert.Equal(t, 1.0, sale.PrimRate)
	assert.Equal(t, 4750.0, sale.PrimAmount)
	assert.Equal(t, models.SaleStatusAktif, sale.Status)
	assert.Equal(t, models.PrimStatusOdenmedi, sale.PrimStatus)

	require.NotNil(t, sale.PrimPeriod)
	assert.Equal(t, "Eylül 2025", sale.PrimPeriod.Name)

	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PrimTxKazanc, entries[0].TransactionType)
	assert.Equal(t, 4750.0, entries[0].Amount)
	assert.Equal(t, models.PrimTxOnaylandi, entries[0].Status)
	assert.Equal(t, sp.ID, entries[0].SalespersonID)
}

func TestCreateSaleBasePriceIsMinimum(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 2)

	// aktivite fiyatı indirimli liste fiyatından yüksek: taban indirimli fiyat olmalı
	in := defaultSaleInput(sp.ID)
	in.ActivitySalePrice = 480000
	sale, err := CreateSale(db, in, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 475000.0, sale.BasePrimPrice)
	assert.Equal(t, 9500.0, sale.PrimAmount)
}

func TestCreateSaleWithoutActiveRate(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)

	_, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	assert.ErrorIs(t, err, ErrNoActiveRate)
}

func TestCreateSaleDuplicateContractNo(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	contractNo := "SZL-2025-001"
	in := defaultSaleInput(sp.ID)
	in.ContractNo = &contractNo
	_, err := CreateSale(db, in, admin.ID)
	require.NoError(t, err)

	in2 := defaultSaleInput(sp.ID)
	in2.ContractNo = &contractNo
	_, err = CreateSale(db, in2, admin.ID)
	assert.ErrorIs(t, err, ErrDuplicateContract)

	// boş sözleşme no'lu kayıtlar sınırsız olabilir (sparse unique)
	_, err = CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
}

func TestCreateKaporaSkipsLedger(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	// kapora için aktif oran gerekmiyor

	in := CreateSaleInput{
		CustomerName:  "Ayşe Demir",
		SaleType:      models.SaleTypeKapora,
		SaleDate:      time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC),
		SalespersonID: sp.ID,
	}
	sale, err := CreateSale(db, in, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, 0.0, sale.PrimAmount)
	assert.Equal(t, 0.0, sale.PrimRate)
	require.NotNil(t, sale.PrimPeriodID)
	assert.Empty(t, saleTransactions(t, db, sale.ID))
}

func TestCancelUnpaidCreatesNoEntry(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	cancelled, err := CancelSale(db, sale.ID, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SaleStatusIptal, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelledByID)

	// ödenmemiş prim için karşı kayıt açılmaz; kazanç olduğu gibi durur
	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PrimTxKazanc, entries[0].TransactionType)
}

func TestCancelPaidCreatesKesinti(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)

	_, err = CancelSale(db, sale.ID, admin.ID)
	require.NoError(t, err)

	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, models.PrimTxKesinti, entries[1].TransactionType)
	assert.Equal(t, -4750.0, entries[1].Amount)
	assert.Equal(t, models.PrimTxOnaylandi, entries[1].Status)

	// iptal edilmiş satış tekrar iptal edilemez
	_, err = CancelSale(db, sale.ID, admin.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRestoreCreatesFreshKazanc(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)
	_, err = CancelSale(db, sale.ID, admin.ID)
	require.NoError(t, err)

	restored, err := RestoreSale(db, sale.ID, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SaleStatusAktif, restored.Status)
	assert.Nil(t, restored.CancelledAt)
	assert.Nil(t, restored.CancelledByID)

	// kazanç + kesinti + yeni kazanç; kesinti kalıcı tarihçe olarak duruyor
	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, models.PrimTxKazanc, entries[2].TransactionType)
	assert.Equal(t, 4750.0, entries[2].Amount)

	// iptal+geri alma döngüsünün net defter etkisi +primAmount
	assert.Equal(t, 4750.0, activeLedgerSum(t, db, sale.ID))

	// aktif satış tekrar geri alınamaz
	_, err = RestoreSale(db, sale.ID, admin.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferPairConservation(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp1 := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	sp2 := createTestUser(t, db, "zeynep", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp1.ID), admin.ID)
	require.NoError(t, err)

	transferred, err := TransferSale(db, sale.ID, sp2.ID, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, sp2.ID, transferred.SalespersonID)
	require.NotNil(t, transferred.TransferredFromID)
	assert.Equal(t, sp1.ID, *transferred.TransferredFromID)
	require.NotNil(t, transferred.TransferredAt)

	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 3)

	var outgoing, incoming *models.PrimTransaction
	for i := range entries {
		switch entries[i].TransactionType {
		case models.PrimTxTransferGiden:
			outgoing = &entries[i]
		case models.PrimTxTransferGelen:
			incoming = &entries[i]
		}
	}
	require.NotNil(t, outgoing)
	require.NotNil(t, incoming)

	// korunum: çiftin toplamı sıfır ve kayıtlar birbirine bağlı
	assert.Equal(t, 0.0, outgoing.Amount+incoming.Amount)
	require.NotNil(t, outgoing.RelatedTransactionID)
	require.NotNil(t, incoming.RelatedTransactionID)
	assert.Equal(t, incoming.ID, *outgoing.RelatedTransactionID)
	assert.Equal(t, outgoing.ID, *incoming.RelatedTransactionID)

	assert.Equal(t, sp1.ID, outgoing.SalespersonID)
	assert.Equal(t, sp2.ID, incoming.SalespersonID)

	// eski danışmanın bu satıştaki net katkısı 0, yeninin +4750
	var sp1Net, sp2Net float64
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND salesperson_id = ? AND status <> ?", sale.ID, sp1.ID, models.PrimTxIptal).
		Select("COALESCE(SUM(amount), 0)").Scan(&sp1Net).Error)
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND salesperson_id = ? AND status <> ?", sale.ID, sp2.ID, models.PrimTxIptal).
		Select("COALESCE(SUM(amount), 0)").Scan(&sp2Net).Error)
	assert.Equal(t, 0.0, sp1Net)
	assert.Equal(t, 4750.0, sp2Net)
}

func TestTransferToSameSalesperson(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	_, err = TransferSale(db, sale.ID, sp.ID, admin.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReassignPeriodSwapsKazanc(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	target, err := LookupOrCreatePeriod(db, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	reassigned, err := ReassignPeriod(db, sale.ID, target.ID, admin.ID)
	require.NoError(t, err)

	require.NotNil(t, reassigned.PrimPeriodID)
	assert.Equal(t, target.ID, *reassigned.PrimPeriodID)

	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 2)

	// eski kazanç iptal edildi, yenisi hedef dönemde açıldı
	assert.Equal(t, models.PrimTxIptal, entries[0].Status)
	assert.Equal(t, models.PrimTxOnaylandi, entries[1].Status)
	assert.Equal(t, models.PrimTxKazanc, entries[1].TransactionType)
	assert.Equal(t, target.ID, entries[1].PrimPeriodID)
	assert.Equal(t, 4750.0, entries[1].Amount)

	// net defter toplamı değişmedi
	assert.Equal(t, 4750.0, activeLedgerSum(t, db, sale.ID))
}

func TestReassignPeriodLockedWhenPaid(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)

	target, err := LookupOrCreatePeriod(db, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	before := saleTransactions(t, db, sale.ID)

	_, err = ReassignPeriod(db, sale.ID, target.ID, admin.ID)
	assert.ErrorIs(t, err, ErrPeriodLocked)

	// defter olduğu gibi kaldı
	after := saleTransactions(t, db, sale.ID)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].Status, after[i].Status)
		assert.Equal(t, before[i].PrimPeriodID, after[i].PrimPeriodID)
	}
}

func TestUpdateSaleRecomputesDerived(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)

	newList := 600000.0
	newActivity := 560000.0
	updated, err := UpdateSale(db, sale.ID, UpdateSaleInput{
		ListPrice:         &newList,
		ActivitySalePrice: &newActivity,
	}, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, 570000.0, updated.DiscountedListPrice) // 600000 * 0.95
	assert.Equal(t, 560000.0, updated.BasePrimPrice)
	assert.Equal(t, 5600.0, updated.PrimAmount)

	// defter bilerek güncellenmiyor; uyuşmazlık reconcile ile onarılır
	entries := saleTransactions(t, db, sale.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 4750.0, entries[0].Amount)
}

func TestConcurrentCancelOnlyOneWins(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	sale, err := CreateSale(db, defaultSaleInput(sp.ID), admin.ID)
	require.NoError(t, err)
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = CancelSale(db, sale.ID, admin.ID)
		}(i)
	}
	wg.Wait()

	var okCount, failCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		failCount++
		assert.True(t, errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConcurrentUpdate),
			"beklenmeyen hata: %v", err)
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, failCount)

	// yarışa rağmen tek kesinti açıldı
	var kesintiCount int64
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND transaction_type = ?", sale.ID, models.PrimTxKesinti).
		Count(&kesintiCount).Error)
	assert.Equal(t, int64(1), kesintiCount)
}

func TestEndToEndScenario(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	sp1 := createTestUser(t, db, "mehmet", models.RoleSalesperson)
	sp2 := createTestUser(t, db, "zeynep", models.RoleSalesperson)
	createActiveRate(t, db, 1)

	// 1) satış: 500000 liste, %5 indirim, 475000 aktivite, %1 oran
	sale, err := CreateSale(db, defaultSaleInput(sp1.ID), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 475000.0, sale.DiscountedListPrice)
	assert.Equal(t, 475000.0, sale.BasePrimPrice)
	assert.Equal(t, 4750.0, sale.PrimAmount)
	assert.Equal(t, 4750.0, activeLedgerSum(t, db, sale.ID))

	// 2) prim ödendi, ardından iptal -> -4750 kesinti
	_, err = SetPrimStatus(db, sale.ID, models.PrimStatusOdendi, admin.ID)
	require.NoError(t, err)
	cancelled, err := CancelSale(db, sale.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusIptal, cancelled.Status)
	assert.Equal(t, 0.0, activeLedgerSum(t, db, sale.ID))

	// 3) geri al -> yeni 4750 kazanç; aktif kayıtların toplamı 4750
	_, err = RestoreSale(db, sale.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 4750.0, activeLedgerSum(t, db, sale.ID))

	// 4) devir -> eski danışman net 0, yeni +4750
	_, err = TransferSale(db, sale.ID, sp2.ID, admin.ID)
	require.NoError(t, err)

	var sp1Net, sp2Net float64
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND salesperson_id = ? AND status <> ?", sale.ID, sp1.ID, models.PrimTxIptal).
		Select("COALESCE(SUM(amount), 0)").Scan(&sp1Net).Error)
	require.NoError(t, db.Model(&models.PrimTransaction{}).
		Where("sale_id = ? AND salesperson_id = ? AND status <> ?", sale.ID, sp2.ID, models.PrimTxIptal).
		Select("COALESCE(SUM(amount), 0)").Scan(&sp2Net).Error)
	assert.Equal(t, 0.0, sp1Net)
	assert.Equal(t, 4750.0, sp2Net)
	assert.Equal(t, 4750.0, activeLedgerSum(t, db, sale.ID))
}
