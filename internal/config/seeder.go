package config

import (
	"log"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/pkg/password"

	"gorm.io/gorm"
)

// SeedDefaults seeds the circulation policy singleton and the initial
// admin account. Safe to run on every startup: existing rows are left
// untouched.
func SeedDefaults(db *gorm.DB) error {
	if err := seedPolicy(db); err != nil {
		return err
	}
	return seedAdminUser(db)
}

// seedPolicy installs the default circulation policy row if missing
func seedPolicy(db *gorm.DB) error {
	var count int64
	db.Model(&models.CirculationPolicy{}).Count(&count)
	if count > 0 {
		return nil
	}

	policy := models.CirculationPolicy{
		ID:                       1,
		LoanDurationDays:         7,
		MaxActiveLoansPerUser:    5,
		MaxRenewals:              3,
		RenewalExtensionDays:     7,
		ExtensionWindowDays:      3,
		ExtensionBlockMultiplier: 3,
		NudgeShortenedDueDays:    5,
		NudgeCooldownHours:       24,
		OverdueReminderDays:      3,
	}
	if err := db.Create(&policy).Error; err != nil {
		return err
	}

	log.Println("✅ Seeded default circulation policy")
	return nil
}

// seedAdminUser creates the bootstrap admin if no admin exists yet
func seedAdminUser(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("role = ?", "ADMIN").Count(&count)
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(getEnv("ADMIN_INITIAL_PASSWORD", "trocar-senha-admin"))
	if err != nil {
		return err
	}

	admin := models.User{
		NUSP:     getEnv("ADMIN_NUSP", "0000001"),
		Name:     "Administrador ProAluno",
		Email:    getEnv("ADMIN_EMAIL", "biblioteca@proaluno.usp.br"),
		Password: hashed,
		Role:     "ADMIN",
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded admin user (NUSP: %s)", admin.NUSP)
	return nil
}
