package db

import (
	"fmt"
	"log"
	"os"

	"zapfleet/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		os.Getenv("DB_TIMEZONE"),
	)

	config := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: false,
	}

	database, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return database, nil
}

// RunMigrations runs database migrations using GORM
func RunMigrations(database *gorm.DB) error {
	log.Println("Running GORM AutoMigrate...")

	// Create required extensions first
	if err := database.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Printf("Warning: Could not create uuid-ossp extension: %v", err)
	}

	if err := database.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	if err := createCustomIndexes(database); err != nil {
		log.Printf("Warning: Failed to create some custom indexes: %v", err)
	}

	log.Println("GORM AutoMigrate completed successfully")
	return nil
}

// createCustomIndexes creates any custom indexes that GORM might not handle
func createCustomIndexes(database *gorm.DB) error {
	indexes := []string{
		// One group record per remote id within a tenant
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_tenant_jid ON groups(tenant_id, jid) WHERE deleted_at IS NULL`,

		// Series names are unique per tenant
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_group_series_tenant_name ON group_series(tenant_id, name) WHERE deleted_at IS NULL`,

		// At most one active group per series once a transition settles
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_series_active ON groups(tenant_id, group_series) WHERE is_active = true AND is_managed = true AND deleted_at IS NULL`,

		// Unique constraint for tenant + session in channels (excluding empty sessions)
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_tenant_session ON channels(tenant_id, session) WHERE session != ''`,

		// Reconciliation sweep scans by sync status
		`CREATE INDEX IF NOT EXISTS idx_groups_tenant_sync_status ON groups(tenant_id, sync_status)`,
	}

	for _, idx := range indexes {
		if err := database.Exec(idx).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s - %v", idx, err)
		}
	}

	return nil
}

// SeedInitialData creates initial system data
func SeedInitialData(database *gorm.DB) error {
	var userCount int64
	if err := database.Model(&models.User{}).Where("role = ?", "system_admin").Count(&userCount).Error; err != nil {
		return fmt.Errorf("failed to check existing users: %w", err)
	}

	if userCount == 0 {
		adminUser := models.User{
			Email:    getEnvOrDefault("ADMIN_EMAIL", "admin@zapfleet.local"),
			Password: "$2a$10$ihq36CvkxLkl2FlsN1xI7.iRADfxaBLWHbNzdOCGzJYY/sqsCP1I2", // admin123
			Name:     "System Administrator",
			Role:     "system_admin",
			IsActive: true,
		}

		if err := database.Create(&adminUser).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Admin user created successfully")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
