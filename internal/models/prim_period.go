package models

import "time"

// PrimPeriod - Ay+yıl bazlı hakediş dönemi (ör. "Eylül 2025").
// İlk kullanımda otomatik oluşturulur; name üzerindeki unique index
// aynı dönemin iki kez oluşmasını engeller.
type PrimPeriod struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Month     int       `gorm:"not null" json:"month"` // 1-12
	Year      int       `gorm:"not null" json:"year"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
