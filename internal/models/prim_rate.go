package models

import "time"

// PrimRate - Yeni satışlara uygulanacak güncel prim oranı.
// Aynı anda en fazla bir kayıt aktif olabilir; yeni oran aktifleştirilince
// diğerleri pasife çekilir. Kayıtlar hiçbir zaman silinmez.
type PrimRate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Rate          float64   `gorm:"not null" json:"rate"` // yüzde (0-100)
	EffectiveDate time.Time `gorm:"not null" json:"effective_date"`
	IsActive      bool      `gorm:"index;default:false" json:"is_active"`
	CreatedByID   uint      `json:"created_by_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
