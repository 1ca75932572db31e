package prim

import (
	"errors"
	"fmt"
	"time"

	"emlak-backend/internal/models"

	"gorm.io/gorm"
)

var monthNames = [12]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

// PeriodKeyOf - Bir tarihin düştüğü hakediş döneminin adını üretir
// (ör. "Eylül 2025"). Saf fonksiyon; dönem araması ve backfill aynı
// anahtarı kullanır.
func PeriodKeyOf(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// LookupOrCreatePeriod - Tarihe karşılık gelen dönemi bulur, yoksa oluşturur.
// Aynı dönem için yarışan iki istek tek satıra çözülür: create unique index'e
// takılırsa kazanan kaydı okuyup döneriz. Read-then-write yok, kilit yok.
func LookupOrCreatePeriod(db *gorm.DB, date time.Time) (*models.PrimPeriod, error) {
	name := PeriodKeyOf(date)

	var period models.PrimPeriod
	err := db.Where("name = ?", name).First(&period).Error
	if err == nil {
		return &period, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	period = models.PrimPeriod{
		Name:     name,
		Month:    int(date.Month()),
		Year:     date.Year(),
		IsActive: true,
	}
	if err := db.Create(&period).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// yarışan istek dönemi bizden önce oluşturdu
			if err := db.Where("name = ?", name).First(&period).Error; err != nil {
				return nil, err
			}
			return &period, nil
		}
		return nil, err
	}
	return &period, nil
}
