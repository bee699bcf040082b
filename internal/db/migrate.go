package db

import (
	"errors"
	"fmt"

	"github.com/open-tvbox/boxhub/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds the singleton rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Setting{},
		&models.SecurityPolicy{},
		&models.Source{},
		&models.LiveSource{},
		&models.User{},
		&models.Tag{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errAutoMigrate)
	}

	return ensureSecurityPolicy(conn)
}

// ensureSecurityPolicy creates the default policy row when missing.
func ensureSecurityPolicy(conn *gorm.DB) error {
	var policy models.SecurityPolicy
	errFind := conn.First(&policy).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: load security policy: %w", errFind)
	}

	seed := models.SecurityPolicy{
		MaxDevicesPerToken: 3,
		RequestsPerWindow:  60,
		WindowMillis:       60000,
		AllowedIPs:         []byte(`[]`),
		Tokens:             []byte(`[]`),
	}
	if errCreate := conn.Create(&seed).Error; errCreate != nil {
		return fmt.Errorf("db: seed security policy: %w", errCreate)
	}
	return nil
}
