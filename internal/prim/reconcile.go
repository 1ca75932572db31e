package prim

import (
	"fmt"

	"emlak-backend/internal/models"

	"gorm.io/gorm"
)

// Onarım işlemleri. Hepsi idempotent: temiz veri üzerinde tekrar tekrar
// çalıştırılabilir ve hiçbir şey değiştirmez. Toplu varyantlarda her satış
// bağımsız bir birimdir; bir satıştaki hata diğerlerini durdurmaz, yarıda
// kesilen koşu tek bir satışın defterini yarım bırakmaz.

type RepairResult struct {
	Scanned  int      `json:"scanned"`
	Repaired int      `json:"repaired"`
	Errors   []string `json:"errors,omitempty"`
}

// RecomputeSale - Türetilmiş fiyat/prim alanlarını saklanan ham alanlardan
// (liste fiyatı, indirim, aktivite fiyatı, oran) baştan hesaplar ve fark
// varsa yazar. Deftere ihtiyaç duymaz; şema/oran değişikliklerinden kalan
// bayat türetilmiş alanları düzeltir.
func RecomputeSale(db *gorm.DB, saleID uint) (*models.Sale, bool, error) {
	var changed bool
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.SaleType == models.SaleTypeKapora {
			return nil
		}

		fresh := *sale
		fresh.ComputeDerived()
		if fresh.DiscountedListPrice == sale.DiscountedListPrice &&
			fresh.BasePrimPrice == sale.BasePrimPrice &&
			fresh.PrimAmount == sale.PrimAmount {
			return nil
		}

		changed = true
		return guardedUpdate(tx, sale, map[string]interface{}{
			"discounted_list_price": fresh.DiscountedListPrice,
			"base_prim_price":       fresh.BasePrimPrice,
			"prim_amount":           fresh.PrimAmount,
		})
	})
	if err != nil {
		return nil, false, err
	}
	sale, err := LoadSale(db, saleID)
	return sale, changed, err
}

// DedupeDeductions - Bir satışta birden fazla aktif kesinti varsa en son
// oluşturulanı bırakır, kalanları iptal eder. İptalin/dönem taşımanın üst
// üste çalıştırılmasından kalan çift kesintilerin onarımı. Geriye iptal
// edilen kayıt sayısı döner; temiz satışta 0.
func DedupeDeductions(db *gorm.DB, saleID uint) (int, error) {
	invalidated := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockSale(tx, saleID); err != nil {
			return err
		}

		var entries []models.PrimTransaction
		if err := tx.Where("sale_id = ? AND transaction_type = ? AND status <> ?",
			saleID, models.PrimTxKesinti, models.PrimTxIptal).
			Order("created_at DESC, id DESC").
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) <= 1 {
			return nil
		}

		for _, dup := range entries[1:] {
			if err := tx.Model(&models.PrimTransaction{}).
				Where("id = ?", dup.ID).
				Update("status", models.PrimTxIptal).Error; err != nil {
				return err
			}
			invalidated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invalidated, nil
}

// RealignPeriod - Satışın dönemini satış tarihinden yeniden türetir ve
// uyuşmuyorsa satışla birlikte o satışın TÜM defter kayıtlarının dönem
// referansını yerinde taşır; yeni kayıt açılmaz. Satış tarihi sonradan
// düzenlenip dönemi güncellenmeyen kayıtların backfill onarımı.
func RealignPeriod(db *gorm.DB, saleID uint) (*models.Sale, bool, error) {
	var changed bool
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}

		period, err := LookupOrCreatePeriod(tx, sale.SaleDate)
		if err != nil {
			return err
		}
		if sale.PrimPeriodID != nil && *sale.PrimPeriodID == period.ID {
			return nil
		}

		changed = true
		if err := guardedUpdate(tx, sale, map[string]interface{}{
			"prim_period_id": period.ID,
		}); err != nil {
			return err
		}

		return tx.Model(&models.PrimTransaction{}).
			Where("sale_id = ?", sale.ID).
			Update("prim_period_id", period.ID).Error
	})
	if err != nil {
		return nil, false, err
	}
	sale, err := LoadSale(db, saleID)
	return sale, changed, err
}

// RecomputeAll - Tüm satış kayıtlarının türetilmiş alanlarını tarar.
func RecomputeAll(db *gorm.DB) (*RepairResult, error) {
	return repairEach(db, func(saleID uint) (bool, error) {
		_, changed, err := RecomputeSale(db, saleID)
		return changed, err
	})
}

// DedupeAll - Tüm satışlarda çift kesinti taraması.
func DedupeAll(db *gorm.DB) (*RepairResult, error) {
	return repairEach(db, func(saleID uint) (bool, error) {
		n, err := DedupeDeductions(db, saleID)
		return n > 0, err
	})
}

// RealignAll - Tüm satışlarda dönem/satış tarihi hizalaması.
func RealignAll(db *gorm.DB) (*RepairResult, error) {
	return repairEach(db, func(saleID uint) (bool, error) {
		_, changed, err := RealignPeriod(db, saleID)
		return changed, err
	})
}

func repairEach(db *gorm.DB, repair func(saleID uint) (bool, error)) (*RepairResult, error) {
	var ids []uint
	if err := db.Model(&models.Sale{}).
		Where("sale_type <> ?", models.SaleTypeKapora).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	result := &RepairResult{Scanned: len(ids)}
	for _, id := range ids {
		changed, err := repair(id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("satış %d: %v", id, err))
			continue
		}
		if changed {
			result.Repaired++
		}
	}
	return result, nil
}
