package database

import (
	"log"

	"emlak-backend/internal/config"
	"emlak-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	// TranslateError: unique index ihlalleri gorm.ErrDuplicatedKey olarak döner.
	// Dönem oluşturma (lookup-or-create) ve sözleşme no kontrolü buna dayanıyor.
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("Migration hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate - Şema migration'ları. Testler aynı şemayı sqlite üzerinde kurmak
// için de çağırıyor.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.PrimRate{},
		&models.PrimPeriod{},
		&models.Sale{},
		&models.PrimTransaction{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	// Prim sorgularının tamamı bu iki kombinasyon üzerinden dönüyor
	db.Exec("CREATE INDEX IF NOT EXISTS idx_prim_tx_sale_type_status ON prim_transactions(sale_id, transaction_type, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_prim_tx_sp_period ON prim_transactions(salesperson_id, prim_period_id)")

	return nil
}
