package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "products", "product_accesses", "payment_orders", "purchases", "mock_tests", "registrations", "attempts", "classes", "lessons", "plans", "sliders", "settings"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"free_attempt_limit", "used_attempts"} {
		if !conn.Migrator().HasColumn("registrations", column) {
			t.Fatalf("registrations missing column %s", column)
		}
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(fmt.Sprintf("file:migrate_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i, errMigrate)
		}
	}
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coachline.db")
	conn, errOpen := Open(path, Options{})
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if DialectName(conn) != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	sqlDB, _ := conn.DB()
	_ = sqlDB.Close()
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":    DialectPostgres,
		"host=localhost user=u dbname=x": DialectPostgres,
		"file:data.db":                   DialectSQLite,
		"sqlite://data.db":               DialectSQLite,
		"./data/coachline.db":            DialectSQLite,
	}
	for dsn, want := range cases {
		got, err := detectDialectFromDSN(dsn)
		if err != nil {
			t.Fatalf("%s: %v", dsn, err)
		}
		if got != want {
			t.Fatalf("%s: got %s want %s", dsn, got, want)
		}
	}
	if _, err := detectDialectFromDSN("mysql://x"); err == nil {
		t.Fatalf("expected error for mysql dsn")
	}
}

func TestContainsAnyEscapesWildcards(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(fmt.Sprintf("file:contains_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	users := []models.User{
		{Username: "Asha_K", Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: "AAAA1111"},
		{Username: "ashaXk", Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: "BBBB2222"},
	}
	if errCreate := conn.Create(&users).Error; errCreate != nil {
		t.Fatalf("create users: %v", errCreate)
	}

	cond, args := ContainsAny(conn, "asha_", "username", "email")
	if len(args) != 2 {
		t.Fatalf("expected one argument per column, got %d", len(args))
	}
	var found []models.User
	if errFind := conn.Where(cond, args...).Find(&found).Error; errFind != nil {
		t.Fatalf("query: %v", errFind)
	}
	if len(found) != 1 || found[0].Username != "Asha_K" {
		t.Fatalf("expected only the literal underscore match, got %+v", found)
	}
}
