package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// newRepoDB opens a migrated, isolated in-memory store for one test.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *domain.Ingredient {
	t.Helper()
	i := &domain.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(i).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	return i
}

func seedRecipe(t *testing.T, db *gorm.DB, author uint, name string, pub time.Time) *domain.Recipe {
	t.Helper()
	r := &domain.Recipe{AuthorID: author, Name: name, Text: "text", CookingTime: 5, PubDate: pub}
	if err := CreateRecipe(context.Background(), db, r); err != nil {
		t.Fatalf("seed recipe: %v", err)
	}
	return r
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpen_SQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.db")

	db, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var (
		journalMode string
		fkOn        int
		busyMS      int
	)
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.User{}, &domain.Tag{}, &domain.Ingredient{}, &domain.Recipe{},
		&domain.RecipeIngredient{}, &domain.Favorite{}, &domain.CartEntry{}, &domain.Subscription{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasTable("recipe_tags") {
		t.Fatalf("expected join table recipe_tags")
	}
}

func TestSeedDefaultTags_Idempotent(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := SeedDefaultTags(ctx, db); err != nil {
			t.Fatalf("SeedDefaultTags run %d: %v", i, err)
		}
	}
	tags, err := ListTags(ctx, db)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags after two seeds, got %d", len(tags))
	}
	// ordered by name
	if tags[0].Slug != "breakfast" || tags[1].Slug != "dinner" || tags[2].Slug != "lunch" {
		t.Fatalf("unexpected tag order: %+v", tags)
	}
	if tags[0].Color != "#FFA84F" {
		t.Fatalf("unexpected breakfast color %q", tags[0].Color)
	}
}

func TestIsDuplicate(t *testing.T) {
	cases := map[string]bool{
		"UNIQUE constraint failed: favorites.user_id": true,
		"constraint failed: UNIQUE":                    true,
		"ERROR: duplicate key value violates":          true,
		"FOREIGN KEY constraint failed":                false,
	}
	for msg, want := range cases {
		if got := isDuplicate(fmt.Errorf("%s", msg)); got != want {
			t.Fatalf("isDuplicate(%q) = %v, want %v", msg, got, want)
		}
	}
	if isDuplicate(nil) {
		t.Fatalf("nil is not a duplicate")
	}
	if !isDuplicate(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey must be a duplicate")
	}
}

func TestQuietLogger_SkipsDuplicateKeyErrors(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	l := quietLogger()
	sql := func() (string, int64) { return "INSERT INTO favorites (user_id,recipe_id) VALUES (1,2)", 0 }

	l.Trace(context.Background(), time.Now(), sql, fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey))
	l.Trace(context.Background(), time.Now(), sql, errors.New("UNIQUE constraint failed: favorites.user_id"))
	if buf.Len() != 0 {
		t.Fatalf("duplicate-key errors must not be logged, got %q", buf.String())
	}

	l.Trace(context.Background(), time.Now(), sql, errors.New("no such table: favorites"))
	if !strings.Contains(buf.String(), "no such table: favorites") {
		t.Fatalf("other query errors must still be logged, got %q", buf.String())
	}

	buf.Reset()
	l.LogMode(logger.Warn).Trace(context.Background(), time.Now(), sql, gorm.ErrDuplicatedKey)
	if buf.Len() != 0 {
		t.Fatalf("LogMode must keep the duplicate filter, got %q", buf.String())
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
