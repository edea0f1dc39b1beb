package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// newSvcDB opens a migrated in-memory store private to the test.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repo.OpenSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps transactions on a shared-cache memory DB serial.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newFileSvcDB opens a migrated file-backed store with the production pool,
// for tests that need truly concurrent connections.
func newFileSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "recipes.db"))
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func mkUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", FirstName: strings.ToUpper(name[:1]) + name[1:]}
	require.NoError(t, db.Create(u).Error)
	return u
}

func mkIngredient(t *testing.T, db *gorm.DB, name, unit string) *domain.Ingredient {
	t.Helper()
	i := &domain.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(i).Error)
	return i
}

func mkTag(t *testing.T, db *gorm.DB, name, color string) *domain.Tag {
	t.Helper()
	tag := &domain.Tag{Name: name, Slug: strings.ToLower(name), Color: color}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

// mkRecipe writes a recipe with lines directly through the repo, bypassing
// composition rules.
func mkRecipe(t *testing.T, db *gorm.DB, author uint, name string, pub time.Time, lines map[uint]int, tags ...uint) *domain.Recipe {
	t.Helper()
	ctx := context.Background()
	r := &domain.Recipe{AuthorID: author, Name: name, Text: "steps", CookingTime: 10, PubDate: pub}
	require.NoError(t, repo.CreateRecipe(ctx, db, r))
	var ls []domain.RecipeIngredient
	for id, amount := range lines {
		ls = append(ls, domain.RecipeIngredient{IngredientID: id, Amount: amount})
	}
	require.NoError(t, repo.ReplaceRecipeLines(ctx, db, r.ID, ls))
	require.NoError(t, repo.ReplaceRecipeTags(ctx, db, r.ID, tags))
	return r
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func pngURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

// memImages is an in-memory media.ImageStore.
type memImages struct {
	mu      sync.Mutex
	seq     int
	objects map[string][]byte
	deleted []string
	failOn  bool
}

func newMemImages() *memImages { return &memImages{objects: map[string][]byte{}} }

func (m *memImages) Save(_ context.Context, img *media.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn {
		return "", errors.New("store down")
	}
	m.seq++
	ref := fmt.Sprintf("/media/recipes/images/%d.%s", m.seq, img.Ext)
	m.objects[ref] = img.Data
	return ref, nil
}

func (m *memImages) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *memImages) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
