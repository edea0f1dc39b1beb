// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used to decorate
// author representations and to build conditional (ETag) responses.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RecipeCountsByAuthor returns the number of recipes per author id. Authors
// without recipes are absent from the map.
func RecipeCountsByAuthor(ctx context.Context, db *gorm.DB, authorIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.AuthorID] = r.Total
	}
	return out, nil
}

// CartStats returns the number of recipes in userID's cart and the time the
// newest entry was added, or nil when the cart is empty.
//
// Return values:
//   - count:       cart entries for userID
//   - newestAdded: pointer to the greatest CreatedAt, or nil if no rows
//   - err:         database error, if any
func CartStats(ctx context.Context, db *gorm.DB, userID uint) (count int64, newestAdded *time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.CartEntry{}).Where("user_id = ?", userID)
	}

	if err = q().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
