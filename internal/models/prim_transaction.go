package models

import "time"

type PrimTransactionType string

const (
	PrimTxKazanc        PrimTransactionType = "kazanç"
	PrimTxKesinti       PrimTransactionType = "kesinti"
	PrimTxTransferGelen PrimTransactionType = "transfer_gelen"
	PrimTxTransferGiden PrimTransactionType = "transfer_giden"
)

type PrimTransactionStatus string

const (
	PrimTxBeklemede PrimTransactionStatus = "beklemede"
	PrimTxOnaylandi PrimTransactionStatus = "onaylandı"
	PrimTxIptal     PrimTransactionStatus = "iptal"
)

// PrimTransaction - Prim defteri kaydı. Defter append-only çalışır: mevcut bir
// kayıt hiçbir zaman silinmez ve tutarı değiştirilmez, yalnızca status alanı
// "iptal" yapılarak geçersiz kılınır. Denetim izi bu kayıtların kendisidir.
type PrimTransaction struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SalespersonID uint `gorm:"index;not null" json:"salesperson_id"`
	Salesperson   User `gorm:"foreignKey:SalespersonID" json:"salesperson"`

	SaleID uint  `gorm:"index;not null" json:"sale_id"`
	Sale   *Sale `gorm:"foreignKey:SaleID" json:"sale,omitempty"`

	PrimPeriodID uint       `gorm:"index;not null" json:"prim_period_id"`
	PrimPeriod   PrimPeriod `gorm:"foreignKey:PrimPeriodID" json:"prim_period"`

	TransactionType PrimTransactionType `gorm:"size:20;not null;index" json:"transaction_type"`
	Amount          float64             `gorm:"not null" json:"amount"` // işaretli tutar, kesinti ve transfer_giden negatif

	Description string                `gorm:"size:255" json:"description"`
	Status      PrimTransactionStatus `gorm:"size:15;not null;default:'onaylandı';index" json:"status"`

	// Transfer çiftlerinde karşı kaydın referansı
	RelatedTransactionID *uint `json:"related_transaction_id"`

	CreatedByID uint      `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
