package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

func TestRecipeRepo_CreateGetReplaceDelete(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	if err := SeedDefaultTags(ctx, db); err != nil {
		t.Fatalf("seed tags: %v", err)
	}
	tags, _ := ListTags(ctx, db)

	author := seedUser(t, db, "chef")
	fan := seedUser(t, db, "fan")
	flour := seedIngredient(t, db, "flour", "g")
	egg := seedIngredient(t, db, "egg", "pcs")

	r := seedRecipe(t, db, author.ID, "Pancakes", time.Now().UTC())
	if err := ReplaceRecipeTags(ctx, db, r.ID, []uint{tags[0].ID, tags[1].ID}); err != nil {
		t.Fatalf("ReplaceRecipeTags: %v", err)
	}
	lines := []domain.RecipeIngredient{
		{IngredientID: flour.ID, Amount: 200},
		{IngredientID: egg.ID, Amount: 2},
		{IngredientID: flour.ID, Amount: 50}, // same ingredient twice is allowed
	}
	if err := ReplaceRecipeLines(ctx, db, r.ID, lines); err != nil {
		t.Fatalf("ReplaceRecipeLines: %v", err)
	}

	got, err := GetRecipe(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if got.Author.Username != "chef" || len(got.Tags) != 2 {
		t.Fatalf("unexpected preload: author=%+v tags=%+v", got.Author, got.Tags)
	}

	rows, err := ListRecipeLines(ctx, db, []uint{r.ID})
	if err != nil || len(rows) != 3 {
		t.Fatalf("ListRecipeLines: rows=%+v err=%v", rows, err)
	}
	if rows[0].Name != "flour" || rows[0].MeasurementUnit != "g" || rows[0].Amount != 200 || rows[1].Name != "egg" {
		t.Fatalf("unexpected line order/content: %+v", rows)
	}

	// Replace tags and lines entirely.
	if err := ReplaceRecipeTags(ctx, db, r.ID, []uint{tags[2].ID}); err != nil {
		t.Fatalf("ReplaceRecipeTags(2): %v", err)
	}
	if err := ReplaceRecipeLines(ctx, db, r.ID, []domain.RecipeIngredient{{IngredientID: egg.ID, Amount: 3}}); err != nil {
		t.Fatalf("ReplaceRecipeLines(2): %v", err)
	}
	got, _ = GetRecipe(ctx, db, r.ID)
	rows, _ = ListRecipeLines(ctx, db, []uint{r.ID})
	if len(got.Tags) != 1 || got.Tags[0].ID != tags[2].ID || len(rows) != 1 || rows[0].Amount != 3 {
		t.Fatalf("replace failed: tags=%+v rows=%+v", got.Tags, rows)
	}

	if err := UpdateRecipeFields(ctx, db, r.ID, map[string]any{"name": "Crepes"}); err != nil {
		t.Fatalf("UpdateRecipeFields: %v", err)
	}
	if err := UpdateRecipeFields(ctx, db, 9999, map[string]any{"name": "x"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing recipe, got %v", err)
	}

	if err := CreateRelation(ctx, db, domain.RelationFavorite, fan.ID, r.ID); err != nil {
		t.Fatalf("CreateRelation: %v", err)
	}
	if err := CreateRelation(ctx, db, domain.RelationCart, fan.ID, r.ID); err != nil {
		t.Fatalf("CreateRelation cart: %v", err)
	}

	if err := DeleteRecipe(ctx, db, r.ID); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	if _, err := GetRecipe(ctx, db, r.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	var n int64
	for _, model := range []any{&domain.RecipeIngredient{}, &domain.Favorite{}, &domain.CartEntry{}} {
		db.Model(model).Count(&n)
		if n != 0 {
			t.Fatalf("expected %T rows removed, got %d", model, n)
		}
	}
	db.Table("recipe_tags").Count(&n)
	if n != 0 {
		t.Fatalf("expected recipe_tags rows removed, got %d", n)
	}
	if err := DeleteRecipe(ctx, db, r.ID); err != ErrNotFound {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestListRecipesPage_OrderAndScopes(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	a := seedUser(t, db, "a")
	b := seedUser(t, db, "b")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r1 := seedRecipe(t, db, a.ID, "old", base)
	r2 := seedRecipe(t, db, b.ID, "new", base.Add(time.Hour))
	r3 := seedRecipe(t, db, a.ID, "same-time", base.Add(time.Hour))

	all, err := ListRecipesPage(ctx, db, 0, 10)
	if err != nil {
		t.Fatalf("ListRecipesPage: %v", err)
	}
	if len(all) != 3 || all[0].ID != r3.ID || all[1].ID != r2.ID || all[2].ID != r1.ID {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	byA := func(q *gorm.DB) *gorm.DB { return q.Where("recipes.author_id = ?", a.ID) }
	n, err := CountRecipes(ctx, db, byA)
	if err != nil || n != 2 {
		t.Fatalf("CountRecipes = (%d, %v), want 2", n, err)
	}
	page, _ := ListRecipesPage(ctx, db, 1, 1, byA)
	if len(page) != 1 || page[0].ID != r1.ID {
		t.Fatalf("unexpected page: %v", ids(page))
	}

	limited, _ := ListAuthorRecipes(ctx, db, a.ID, 1)
	if len(limited) != 1 || limited[0].ID != r3.ID {
		t.Fatalf("ListAuthorRecipes limit: %v", ids(limited))
	}
	counts, _ := RecipeCountsByAuthor(ctx, db, []uint{a.ID, b.ID, 999})
	if counts[a.ID] != 2 || counts[b.ID] != 1 || counts[999] != 0 {
		t.Fatalf("RecipeCountsByAuthor: %v", counts)
	}
}

func ids(rs []domain.Recipe) []uint {
	out := make([]uint, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestLockRecipe_MissingRowIsNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "chef")
	r := seedRecipe(t, db, author.ID, "Toast", time.Now().UTC())

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := LockRecipe(ctx, tx, r.ID); err != nil {
			return err
		}
		return LockRecipe(ctx, tx, r.ID+100)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LockRecipe on a missing row = %v, want ErrNotFound", err)
	}

	got, err := GetRecipe(ctx, db, r.ID)
	if err != nil || got.CookingTime != r.CookingTime {
		t.Fatalf("lock must not change the row: %+v, %v", got, err)
	}
}
