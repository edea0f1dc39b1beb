// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the read-mostly catalog queries: users,
// tags and ingredients.
//
// All functions are context-aware and accept a *gorm.DB handle so they can
// run inside a caller's transaction. Missing rows surface as ErrNotFound.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTags returns all tags ordered by name.
func ListTags(ctx context.Context, db *gorm.DB) ([]domain.Tag, error) {
	var out []domain.Tag
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// GetTag fetches a tag by id.
func GetTag(ctx context.Context, db *gorm.DB, id uint) (*domain.Tag, error) {
	var t domain.Tag
	if err := db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTags returns the tags whose ids are in ids, ordered by name.
// Missing ids are silently absent from the result.
func FindTags(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Tag, error) {
	out := []domain.Tag{}
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("name asc").Find(&out).Error
	return out, err
}

// ListIngredients returns ingredients whose folded name starts with prefix
// (already folded by the caller), ordered by name. An empty prefix lists all.
func ListIngredients(ctx context.Context, db *gorm.DB, foldedPrefix string) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	q := db.WithContext(ctx).Order("name asc").Order("id asc")
	if foldedPrefix != "" {
		q = q.Where("search_name LIKE ? ESCAPE '\\'", escapeLike(foldedPrefix)+"%")
	}
	err := q.Find(&out).Error
	return out, err
}

// GetIngredient fetches an ingredient by id.
func GetIngredient(ctx context.Context, db *gorm.DB, id uint) (*domain.Ingredient, error) {
	var i domain.Ingredient
	if err := db.WithContext(ctx).First(&i, id).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

// CountIngredients returns how many of the distinct ids exist.
func CountIngredients(ctx context.Context, db *gorm.DB, ids []uint) (int64, error) {
	var n int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := db.WithContext(ctx).Model(&domain.Ingredient{}).Where("id IN ?", ids).Count(&n).Error
	return n, err
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
