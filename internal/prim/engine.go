package prim

import (
	"errors"
	"fmt"
	"time"

	"emlak-backend/internal/models"

	"gorm.io/gorm"
)

// Satış yaşam döngüsü motoru. Her işlem tek bir transaction içinde çalışır:
// satış kaydı + defter kayıtları ya birlikte yazılır ya da hiç yazılmaz.
// Aynı satış üzerindeki işlemler version alanı üzerinden serialize edilir;
// yarışan ikinci işlem ErrConcurrentUpdate alır ve baştan denenmelidir.

type CreateSaleInput struct {
	CustomerName      string
	CustomerPhone     string
	Block             string
	ApartmentNo       string
	ContractNo        *string
	SaleType          models.SaleType
	SaleDate          time.Time
	ListPrice         float64
	DiscountRate      float64
	ActivitySalePrice float64
	SalespersonID     uint
	Notes             string
}

type UpdateSaleInput struct {
	CustomerName      *string
	CustomerPhone     *string
	Block             *string
	ApartmentNo       *string
	ContractNo        *string
	SaleDate          *time.Time
	ListPrice         *float64
	DiscountRate      *float64
	ActivitySalePrice *float64
	Notes             *string
}

// CreateSale - Satışı kaydeder, aktif oranı satışın üzerine kopyalar,
// türetilmiş alanları hesaplar ve kazanç kaydını açar. Kapora kayıtları
// dönem alır ama fiyat/prim taşımaz ve deftere hiç girmez.
func CreateSale(db *gorm.DB, in CreateSaleInput, actorID uint) (*models.Sale, error) {
	if in.CustomerName == "" {
		return nil, fmt.Errorf("%w: müşteri adı zorunlu", ErrValidation)
	}
	if in.SaleDate.IsZero() {
		return nil, fmt.Errorf("%w: satış tarihi zorunlu", ErrValidation)
	}
	if in.DiscountRate < 0 || in.DiscountRate > 100 {
		return nil, fmt.Errorf("%w: indirim oranı 0-100 arasında olmalı", ErrValidation)
	}
	if in.ListPrice < 0 || in.ActivitySalePrice < 0 {
		return nil, fmt.Errorf("%w: fiyat negatif olamaz", ErrValidation)
	}
	if in.SaleType == "" {
		in.SaleType = models.SaleTypeSatis
	}
	if in.SaleType != models.SaleTypeSatis && in.SaleType != models.SaleTypeKapora {
		return nil, fmt.Errorf("%w: satış tipi 'satış' veya 'kapora' olmalı", ErrValidation)
	}

	var saleID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		var salesperson models.User
		if err := tx.First(&salesperson, "id = ?", in.SalespersonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: danışman %d", ErrNotFound, in.SalespersonID)
			}
			return err
		}

		sale := models.Sale{
			CustomerName:      in.CustomerName,
			CustomerPhone:     in.CustomerPhone,
			Block:             in.Block,
			ApartmentNo:       in.ApartmentNo,
			ContractNo:        normalizeContractNo(in.ContractNo),
			SaleType:          in.SaleType,
			SaleDate:          in.SaleDate,
			ListPrice:         in.ListPrice,
			DiscountRate:      in.DiscountRate,
			ActivitySalePrice: in.ActivitySalePrice,
			Status:            models.SaleStatusAktif,
			PrimStatus:        models.PrimStatusOdenmedi,
			SalespersonID:     salesperson.ID,
			Notes:             in.Notes,
			CreatedByID:       actorID,
		}

		period, err := LookupOrCreatePeriod(tx, in.SaleDate)
		if err != nil {
			return err
		}
		sale.PrimPeriodID = &period.ID

		if in.SaleType != models.SaleTypeKapora {
			var rate models.PrimRate
			if err := tx.Where("is_active = ?", true).First(&rate).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoActiveRate
				}
				return err
			}
			// oranın satış anındaki kopyası; sonradan oran değişse de satış etkilenmez
			sale.PrimRate = rate.Rate
		}
		sale.ComputeDerived()

		if err := tx.Create(&sale).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateContract
			}
			return err
		}

		if in.SaleType != models.SaleTypeKapora {
			entry := models.PrimTransaction{
				SalespersonID:   sale.SalespersonID,
				SaleID:          sale.ID,
				PrimPeriodID:    period.ID,
				TransactionType: models.PrimTxKazanc,
				Amount:          sale.PrimAmount,
				Description:     fmt.Sprintf("Satış primi: %s %s", sale.Block, sale.ApartmentNo),
				Status:          models.PrimTxOnaylandi,
				CreatedByID:     actorID,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		saleID = sale.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// UpdateSale - Müşteri/fiyat/tarih alanlarını günceller, türetilmiş alanları
// baştan hesaplar. Defter kayıtlarına dokunmaz; tutar uyuşmazlığı oluşursa
// reconcile işlemleriyle onarılır.
func UpdateSale(db *gorm.DB, saleID uint, in UpdateSaleInput, actorID uint) (*models.Sale, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}

		if in.CustomerName != nil {
			sale.CustomerName = *in.CustomerName
		}
		if in.CustomerPhone != nil {
			sale.CustomerPhone = *in.CustomerPhone
		}
		if in.Block != nil {
			sale.Block = *in.Block
		}
		if in.ApartmentNo != nil {
			sale.ApartmentNo = *in.ApartmentNo
		}
		if in.ContractNo != nil {
			sale.ContractNo = normalizeContractNo(in.ContractNo)
		}
		if in.SaleDate != nil {
			sale.SaleDate = *in.SaleDate
		}
		if in.ListPrice != nil {
			sale.ListPrice = *in.ListPrice
		}
		if in.DiscountRate != nil {
			if *in.DiscountRate < 0 || *in.DiscountRate > 100 {
				return fmt.Errorf("%w: indirim oranı 0-100 arasında olmalı", ErrValidation)
			}
			sale.DiscountRate = *in.DiscountRate
		}
		if in.ActivitySalePrice != nil {
			sale.ActivitySalePrice = *in.ActivitySalePrice
		}
		if in.Notes != nil {
			sale.Notes = *in.Notes
		}
		sale.ComputeDerived()

		err = guardedUpdate(tx, sale, map[string]interface{}{
			"customer_name":         sale.CustomerName,
			"customer_phone":        sale.CustomerPhone,
			"block":                 sale.Block,
			"apartment_no":          sale.ApartmentNo,
			"contract_no":           sale.ContractNo,
			"sale_date":             sale.SaleDate,
			"list_price":            sale.ListPrice,
			"discount_rate":         sale.DiscountRate,
			"activity_sale_price":   sale.ActivitySalePrice,
			"discounted_list_price": sale.DiscountedListPrice,
			"base_prim_price":       sale.BasePrimPrice,
			"prim_amount":           sale.PrimAmount,
			"notes":                 sale.Notes,
		})
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateContract
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// CancelSale - Satışı iptal eder. Kesinti kaydı yalnızca prim o an ödenmişse
// açılır; ödenmemiş prim için defterde karşı kayıt oluşturulmaz, kazanç kaydı
// hakediş sorgusunda satış durumu üzerinden elenir.
func CancelSale(db *gorm.DB, saleID uint, actorID uint) (*models.Sale, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != models.SaleStatusAktif {
			return fmt.Errorf("%w: satış zaten iptal edilmiş", ErrInvalidTransition)
		}

		now := time.Now()
		if err := guardedUpdate(tx, sale, map[string]interface{}{
			"status":          models.SaleStatusIptal,
			"cancelled_at":    now,
			"cancelled_by_id": actorID,
		}); err != nil {
			return err
		}

		if sale.SaleType != models.SaleTypeKapora && sale.PrimStatus == models.PrimStatusOdendi {
			entry := models.PrimTransaction{
				SalespersonID:   sale.SalespersonID,
				SaleID:          sale.ID,
				PrimPeriodID:    *sale.PrimPeriodID,
				TransactionType: models.PrimTxKesinti,
				Amount:          -sale.PrimAmount,
				Description:     "Ödenmiş primli satış iptal edildi",
				Status:          models.PrimTxOnaylandi,
				CreatedByID:     actorID,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// RestoreSale - İptal edilmiş satışı geri alır ve güncel prim tutarı için yeni
// bir kazanç kaydı açar. İptal sırasında oluşmuş kesinti kayıtları kalıcı
// tarihçe olarak olduğu gibi bırakılır.
func RestoreSale(db *gorm.DB, saleID uint, actorID uint) (*models.Sale, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != models.SaleStatusIptal {
			return fmt.Errorf("%w: satış zaten aktif", ErrInvalidTransition)
		}

		if err := guardedUpdate(tx, sale, map[string]interface{}{
			"status":          models.SaleStatusAktif,
			"cancelled_at":    nil,
			"cancelled_by_id": nil,
		}); err != nil {
			return err
		}

		if sale.SaleType != models.SaleTypeKapora {
			entry := models.PrimTransaction{
				SalespersonID:   sale.SalespersonID,
				SaleID:          sale.ID,
				PrimPeriodID:    *sale.PrimPeriodID,
				TransactionType: models.PrimTxKazanc,
				Amount:          sale.PrimAmount,
				Description:     "İptal edilen satış geri alındı",
				Status:          models.PrimTxOnaylandi,
				CreatedByID:     actorID,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// TransferSale - Satışı başka danışmana devreder. Defterde eski danışmana
// transfer_giden (-tutar), yeni danışmana transfer_gelen (+tutar) olmak üzere
// birbirine bağlı bir çift kayıt açılır; çiftin toplamı her zaman sıfırdır.
func TransferSale(db *gorm.DB, saleID uint, newSalespersonID uint, actorID uint) (*models.Sale, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.SalespersonID == newSalespersonID {
			return fmt.Errorf("%w: satış zaten bu danışmanın üzerinde", ErrValidation)
		}

		var newSalesperson models.User
		if err := tx.First(&newSalesperson, "id = ?", newSalespersonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: danışman %d", ErrNotFound, newSalespersonID)
			}
			return err
		}

		oldSalespersonID := sale.SalespersonID
		now := time.Now()
		if err := guardedUpdate(tx, sale, map[string]interface{}{
			"salesperson_id":      newSalespersonID,
			"transferred_from_id": oldSalespersonID,
			"transferred_at":      now,
			"transferred_by_id":   actorID,
		}); err != nil {
			return err
		}

		if sale.SaleType == models.SaleTypeKapora {
			return nil
		}

		outgoing := models.PrimTransaction{
			SalespersonID:   oldSalespersonID,
			SaleID:          sale.ID,
			PrimPeriodID:    *sale.PrimPeriodID,
			TransactionType: models.PrimTxTransferGiden,
			Amount:          -sale.PrimAmount,
			Description:     fmt.Sprintf("Satış %s danışmanına devredildi", newSalesperson.Name),
			Status:          models.PrimTxOnaylandi,
			CreatedByID:     actorID,
		}
		if err := tx.Create(&outgoing).Error; err != nil {
			return err
		}

		incoming := models.PrimTransaction{
			SalespersonID:        newSalespersonID,
			SaleID:               sale.ID,
			PrimPeriodID:         *sale.PrimPeriodID,
			TransactionType:      models.PrimTxTransferGelen,
			Amount:               sale.PrimAmount,
			Description:          "Devir ile gelen satış primi",
			Status:               models.PrimTxOnaylandi,
			RelatedTransactionID: &outgoing.ID,
			CreatedByID:          actorID,
		}
		if err := tx.Create(&incoming).Error; err != nil {
			return err
		}

		// çapraz referansı tamamla; tutar alanına dokunulmuyor
		return tx.Model(&models.PrimTransaction{}).
			Where("id = ?", outgoing.ID).
			Update("related_transaction_id", incoming.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// ReassignPeriod - Satışın primini başka bir hakediş dönemine taşır. Eski
// dönemdeki aktif kazanç kaydı iptal edilir (silinmez), hedef dönemde güncel
// tutar için yeni kazanç açılır. Ödenmiş prim dönem değiştiremez.
func ReassignPeriod(db *gorm.DB, saleID uint, targetPeriodID uint, actorID uint) (*models.Sale, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.PrimStatus == models.PrimStatusOdendi {
			return ErrPeriodLocked
		}
		if sale.SaleType == models.SaleTypeKapora {
			return fmt.Errorf("%w: kapora kaydının prim dönemi yok", ErrValidation)
		}

		var target models.PrimPeriod
		if err := tx.First(&target, "id = ?", targetPeriodID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: dönem %d", ErrNotFound, targetPeriodID)
			}
			return err
		}

		// Eski dönemdeki aktif kazanç kaydını geçersiz kıl. Bu adım atlanırsa
		// aynı satış iki dönemde birden kazanç yazar; dedupe/realign onarımları
		// tam olarak bu kaçak için var.
		var current models.PrimTransaction
		err = tx.Where("sale_id = ? AND transaction_type = ? AND status <> ?",
			sale.ID, models.PrimTxKazanc, models.PrimTxIptal).
			Order("created_at DESC, id DESC").
			First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			if err := tx.Model(&models.PrimTransaction{}).
				Where("id = ?", current.ID).
				Update("status", models.PrimTxIptal).Error; err != nil {
				return err
			}
		}

		entry := models.PrimTransaction{
			SalespersonID:   sale.SalespersonID,
			SaleID:          sale.ID,
			PrimPeriodID:    target.ID,
			TransactionType: models.PrimTxKazanc,
			Amount:          sale.PrimAmount,
			Description:     fmt.Sprintf("Prim %s dönemine taşındı", target.Name),
			Status:          models.PrimTxOnaylandi,
			CreatedByID:     actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return guardedUpdate(tx, sale, map[string]interface{}{
			"prim_period_id": target.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// SetPrimStatus - Manuel ödendi/ödenmedi bayrağı. Ödeme alt-defteri yok;
// tek para birimi, tek organizasyon, elle işaretleme.
func SetPrimStatus(db *gorm.DB, saleID uint, status models.PrimStatus, actorID uint) (*models.Sale, error) {
	if status != models.PrimStatusOdendi && status != models.PrimStatusOdenmedi {
		return nil, fmt.Errorf("%w: prim durumu 'ödendi' veya 'ödenmedi' olmalı", ErrValidation)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := lockSale(tx, saleID)
		if err != nil {
			return err
		}
		if sale.SaleType == models.SaleTypeKapora {
			return fmt.Errorf("%w: kapora kaydının primi yok", ErrValidation)
		}
		if sale.PrimStatus == status {
			return nil
		}
		return guardedUpdate(tx, sale, map[string]interface{}{
			"prim_status": status,
		})
	})
	if err != nil {
		return nil, err
	}
	return LoadSale(db, saleID)
}

// LoadSale - Satışı danışman ve dönem bilgisiyle birlikte yükler.
func LoadSale(db *gorm.DB, saleID uint) (*models.Sale, error) {
	var sale models.Sale
	err := db.Preload("Salesperson").Preload("PrimPeriod").First(&sale, "id = ?", saleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: satış %d", ErrNotFound, saleID)
		}
		return nil, err
	}
	return &sale, nil
}

// lockSale - Yaşam döngüsü işlemlerinin read-modify-write başlangıcı. Asıl
// koruma guardedUpdate'teki version karşılaştırmasında.
func lockSale(tx *gorm.DB, saleID uint) (*models.Sale, error) {
	var sale models.Sale
	if err := tx.First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: satış %d", ErrNotFound, saleID)
		}
		return nil, err
	}
	return &sale, nil
}

// guardedUpdate - Satışı version kontrolüyle günceller. Okunan version ile
// yazılan version arasına başka bir işlem girmişse hiçbir satır etkilenmez ve
// ErrConcurrentUpdate döner; transaction geri alınır.
func guardedUpdate(tx *gorm.DB, sale *models.Sale, updates map[string]interface{}) error {
	updates["version"] = sale.Version + 1
	res := tx.Model(&models.Sale{}).
		Where("id = ? AND version = ?", sale.ID, sale.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	sale.Version++
	return nil
}

func normalizeContractNo(no *string) *string {
	if no == nil || *no == "" {
		return nil
	}
	return no
}
