package models

import (
	"math"
	"time"
)

type SaleType string

const (
	SaleTypeSatis  SaleType = "satış"
	SaleTypeKapora SaleType = "kapora" // rezervasyon, prim hesabına girmez
)

type SaleStatus string

const (
	SaleStatusAktif SaleStatus = "aktif"
	SaleStatusIptal SaleStatus = "iptal"
)

type PrimStatus string

const (
	PrimStatusOdenmedi PrimStatus = "ödenmedi"
	PrimStatusOdendi   PrimStatus = "ödendi"
)

// Sale - Satış kaydı. Fiyat/prim alanları her kayıtta türetilmiş alanlardan
// yeniden hesaplanır (ComputeDerived); satışın kendi içinde tutarsız olması
// mümkün değildir, tutarsızlık ancak satış ile prim defteri arasında oluşabilir.
type Sale struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Müşteri / daire bilgileri
	CustomerName  string  `gorm:"size:100;not null" json:"customer_name"`
	CustomerPhone string  `gorm:"size:20" json:"customer_phone"`
	Block         string  `gorm:"size:20" json:"block"`
	ApartmentNo   string  `gorm:"size:20" json:"apartment_no"`
	ContractNo    *string `gorm:"size:50;uniqueIndex" json:"contract_no"` // boş olabilir, doluysa global unique

	SaleType SaleType  `gorm:"size:20;not null;default:'satış'" json:"sale_type"`
	SaleDate time.Time `gorm:"index;not null" json:"sale_date"`

	// Fiyat alanları
	ListPrice         float64 `json:"list_price"`
	DiscountRate      float64 `json:"discount_rate"` // yüzde
	ActivitySalePrice float64 `json:"activity_sale_price"`

	// Türetilmiş alanlar (her kayıtta yeniden hesaplanır)
	DiscountedListPrice float64 `json:"discounted_list_price"`
	BasePrimPrice       float64 `json:"base_prim_price"`
	PrimRate            float64 `json:"prim_rate"` // satış anındaki oranın kopyası
	PrimAmount          float64 `json:"prim_amount"`

	Status     SaleStatus `gorm:"size:10;not null;default:'aktif';index" json:"status"`
	PrimStatus PrimStatus `gorm:"size:10;not null;default:'ödenmedi';index" json:"prim_status"`

	SalespersonID uint  `gorm:"index;not null" json:"salesperson_id"`
	Salesperson   User  `gorm:"foreignKey:SalespersonID" json:"salesperson"`
	PrimPeriodID  *uint `gorm:"index" json:"prim_period_id"`
	PrimPeriod    *PrimPeriod `gorm:"foreignKey:PrimPeriodID" json:"prim_period"`

	// Transfer bilgileri
	TransferredFromID *uint      `json:"transferred_from_id"`
	TransferredAt     *time.Time `json:"transferred_at"`
	TransferredByID   *uint      `json:"transferred_by_id"`

	// İptal bilgileri
	CancelledAt   *time.Time `json:"cancelled_at"`
	CancelledByID *uint      `json:"cancelled_by_id"`

	Notes       string `gorm:"size:500" json:"notes"`
	CreatedByID uint   `json:"created_by_id"`

	// Aynı satış üzerinde yarışan iki yaşam döngüsü işlemini engelleyen
	// optimistic concurrency sayacı
	Version int `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeDerived - Türetilmiş fiyat/prim alanlarını mevcut alanlardan baştan
// hesaplar. Toplama/çıkarma ile güncellenen bir sayaç değil, saf bir
// fonksiyondur; her Save öncesi çağrılır. Kapora kayıtlarında fiyat alanı
// bulunmadığı için hepsi sıfırlanır.
func (s *Sale) ComputeDerived() {
	if s.SaleType == SaleTypeKapora {
		s.ListPrice = 0
		s.DiscountRate = 0
		s.ActivitySalePrice = 0
		s.DiscountedListPrice = 0
		s.BasePrimPrice = 0
		s.PrimRate = 0
		s.PrimAmount = 0
		return
	}

	if s.DiscountRate > 0 {
		s.DiscountedListPrice = s.ListPrice * (1 - s.DiscountRate/100)
	} else {
		s.DiscountedListPrice = s.ListPrice
	}
	s.BasePrimPrice = math.Min(s.DiscountedListPrice, s.ActivitySalePrice)
	s.PrimAmount = s.BasePrimPrice * s.PrimRate / 100
}
