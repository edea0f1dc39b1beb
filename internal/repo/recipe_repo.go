// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for recipes, their
// tag links and their ingredient lines.
//
// Functions follow the "thin repository" approach: no business rules, only
// persistence and query composition. Ownership checks, validation and
// transaction boundaries belong to services.RecipeService.
//
// Error semantics:
//   - A missing recipe yields ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are returned unchanged.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Scope is a composable query modifier, applied with (*gorm.DB).Scopes.
type Scope = func(*gorm.DB) *gorm.DB

// LineRow is one ingredient line joined with its catalog entry.
type LineRow struct {
	RecipeID        uint
	LineID          uint
	IngredientID    uint
	Name            string
	MeasurementUnit string
	Amount          int
}

// CreateRecipe inserts the recipe row only; tags and lines are written
// separately so callers control them inside one transaction.
func CreateRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(r).Error
}

// GetRecipe fetches a recipe with its author and tags (tags ordered by name).
func GetRecipe(ctx context.Context, db *gorm.DB, id uint) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Preload("Author").
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
		First(&r, id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LockRecipe write-locks the recipe row until tx ends, so a concurrent delete
// either finishes first or waits. It returns ErrNotFound when the row is gone.
func LockRecipe(ctx context.Context, tx *gorm.DB, id uint) error {
	res := tx.WithContext(ctx).Exec("UPDATE recipes SET cooking_time = cooking_time WHERE id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecipeFields applies a partial column update. An empty map is a no-op.
func UpdateRecipeFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.Recipe{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceRecipeTags replaces every tag link of the recipe with tagIDs.
func ReplaceRecipeTags(ctx context.Context, db *gorm.DB, recipeID uint, tagIDs []uint) error {
	db = db.WithContext(ctx)
	if err := db.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", recipeID).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, map[string]any{"recipe_id": recipeID, "tag_id": id})
	}
	return db.Table("recipe_tags").Create(rows).Error
}

// ReplaceRecipeLines deletes every ingredient line of the recipe and inserts
// lines in order. RecipeID is set on each line.
func ReplaceRecipeLines(ctx context.Context, db *gorm.DB, recipeID uint, lines []domain.RecipeIngredient) error {
	db = db.WithContext(ctx)
	if err := db.Where("recipe_id = ?", recipeID).Delete(&domain.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].ID = 0
		lines[i].RecipeID = recipeID
	}
	return db.Omit(clause.Associations).Create(&lines).Error
}

// DeleteRecipe removes the recipe together with its lines, tag links,
// favorites and cart entries. Run it inside a transaction.
func DeleteRecipe(ctx context.Context, db *gorm.DB, id uint) error {
	db = db.WithContext(ctx)
	steps := []func() error{
		func() error { return db.Where("recipe_id = ?", id).Delete(&domain.RecipeIngredient{}).Error },
		func() error { return db.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error },
		func() error { return db.Where("recipe_id = ?", id).Delete(&domain.Favorite{}).Error },
		func() error { return db.Where("recipe_id = ?", id).Delete(&domain.CartEntry{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	res := db.Delete(&domain.Recipe{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecipes counts recipes matching scopes.
func CountRecipes(ctx context.Context, db *gorm.DB, scopes ...Scope) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Recipe{}).Scopes(scopes...).Count(&n).Error
	return n, err
}

// ListRecipesPage returns recipes matching scopes, newest first, with author
// and tags preloaded.
func ListRecipesPage(ctx context.Context, db *gorm.DB, offset, limit int, scopes ...Scope) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Scopes(scopes...).
		Preload("Author").
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
		Order("recipes.pub_date desc").
		Order("recipes.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAuthorRecipes returns an author's recipes, newest first. limit <= 0
// means no limit.
func ListAuthorRecipes(ctx context.Context, db *gorm.DB, authorID uint, limit int) ([]domain.Recipe, error) {
	var out []domain.Recipe
	q := db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("pub_date desc").
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecipeLines returns the ingredient lines of the given recipes, joined
// with the ingredient catalog, in insertion order per recipe.
func ListRecipeLines(ctx context.Context, db *gorm.DB, recipeIDs []uint) ([]LineRow, error) {
	out := []LineRow{}
	if len(recipeIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Table("recipe_ingredients").
		Select("recipe_ingredients.recipe_id AS recipe_id, recipe_ingredients.id AS line_id, " +
			"ingredients.id AS ingredient_id, ingredients.name AS name, " +
			"ingredients.measurement_unit AS measurement_unit, recipe_ingredients.amount AS amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("recipe_ingredients.recipe_id IN ?", recipeIDs).
		Order("recipe_ingredients.recipe_id asc").
		Order("recipe_ingredients.id asc").
		Scan(&out).Error
	return out, err
}
