package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultAdminUsername is the account seeded on first boot.
const defaultAdminUsername = "admin"

// EnsureDefaultAdmin seeds an admin account when none exists. The generated
// password is logged once; it cannot be recovered afterwards.
func EnsureDefaultAdmin(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("app: nil database connection")
	}

	var existing models.Admin
	errFind := conn.First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("app: check admin: %w", errFind)
	}

	password := uuid.NewString()
	return CreateAdminWithPassword(conn, defaultAdminUsername, password, true)
}

// CreateAdminWithPassword creates an admin account with the given credentials.
// logPassword selects whether the plaintext is echoed to the log for the
// operator to capture.
func CreateAdminWithPassword(conn *gorm.DB, username, password string, logPassword bool) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("app: admin username is required")
	}
	if password == "" {
		return fmt.Errorf("app: admin password is required")
	}

	hashed, errHash := auth.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: hash admin password: %w", errHash)
	}

	admin := models.Admin{Username: username, Password: hashed}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("app: create admin: %w", errCreate)
	}
	if logPassword {
		log.Warnf("seeded admin account %q with password %s", username, password)
	}
	return nil
}
