package app

import (
	"path/filepath"
	"testing"

	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/db"
	"github.com/open-tvbox/boxhub/internal/models"
)

func TestEnsureDefaultAdmin_SeedsOnce(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "boxhub-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errSeed := EnsureDefaultAdmin(conn); errSeed != nil {
		t.Fatalf("EnsureDefaultAdmin: %v", errSeed)
	}
	if errSeed := EnsureDefaultAdmin(conn); errSeed != nil {
		t.Fatalf("EnsureDefaultAdmin second run: %v", errSeed)
	}

	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count admins: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly one seeded admin, got %d", count)
	}

	var admin models.Admin
	if errFind := conn.First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Username != defaultAdminUsername {
		t.Fatalf("expected username %q, got %q", defaultAdminUsername, admin.Username)
	}
}

func TestCreateAdminWithPassword_StoresHash(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "boxhub-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errCreate := CreateAdminWithPassword(conn, "ops", "hunter22", false); errCreate != nil {
		t.Fatalf("CreateAdminWithPassword: %v", errCreate)
	}

	var admin models.Admin
	if errFind := conn.Where("username = ?", "ops").First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Password == "hunter22" {
		t.Fatalf("password stored in plaintext")
	}
	if !auth.CheckPassword(admin.Password, "hunter22") {
		t.Fatalf("stored hash does not verify")
	}
}

func TestCreateAdminWithPassword_RejectsEmpty(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "boxhub-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errCreate := CreateAdminWithPassword(conn, "", "secret", false); errCreate == nil {
		t.Fatalf("expected error for empty username")
	}
	if errCreate := CreateAdminWithPassword(conn, "ops", "", false); errCreate == nil {
		t.Fatalf("expected error for empty password")
	}
}
