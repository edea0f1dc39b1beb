// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the (user, target) relation pairs:
// favorites, shopping-cart entries and subscriptions.
//
// Every function dispatches on domain.RelationKind with an exhaustive switch;
// an undeclared kind is a programming error and yields ErrUnknownRelation.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrUnknownRelation is returned for a RelationKind outside the declared set.
var ErrUnknownRelation = errors.New("unknown relation kind")

// relationTable returns the table and target column for kind.
func relationTable(kind domain.RelationKind) (table, targetCol string, err error) {
	switch kind {
	case domain.RelationFavorite:
		return domain.Favorite{}.TableName(), "recipe_id", nil
	case domain.RelationCart:
		return domain.CartEntry{}.TableName(), "recipe_id", nil
	case domain.RelationSubscription:
		return domain.Subscription{}.TableName(), "author_id", nil
	}
	return "", "", ErrUnknownRelation
}

// CreateRelation inserts one (userID, targetID) pair of the given kind.
// A pair that already exists yields ErrDuplicate.
func CreateRelation(ctx context.Context, db *gorm.DB, kind domain.RelationKind, userID, targetID uint) error {
	var row any
	switch kind {
	case domain.RelationFavorite:
		row = &domain.Favorite{UserID: userID, RecipeID: targetID}
	case domain.RelationCart:
		row = &domain.CartEntry{UserID: userID, RecipeID: targetID}
	case domain.RelationSubscription:
		row = &domain.Subscription{UserID: userID, AuthorID: targetID}
	default:
		return ErrUnknownRelation
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteRelation removes the (userID, targetID) pair and reports how many
// rows were deleted (0 or 1).
func DeleteRelation(ctx context.Context, db *gorm.DB, kind domain.RelationKind, userID, targetID uint) (int64, error) {
	table, col, err := relationTable(kind)
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE user_id = ? AND "+col+" = ?", userID, targetID)
	return res.RowsAffected, res.Error
}

// RelatedTargets returns the subset of targetIDs that userID is related to.
func RelatedTargets(ctx context.Context, db *gorm.DB, kind domain.RelationKind, userID uint, targetIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}
	table, col, err := relationTable(kind)
	if err != nil {
		return nil, err
	}
	var ids []uint
	err = db.WithContext(ctx).
		Table(table).
		Where("user_id = ? AND "+col+" IN ?", userID, targetIDs).
		Pluck(col, &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// RelationTargetsSubquery selects the target ids userID is related to, for
// use in "id IN (?)" filters.
func RelationTargetsSubquery(db *gorm.DB, kind domain.RelationKind, userID uint) (*gorm.DB, error) {
	table, col, err := relationTable(kind)
	if err != nil {
		return nil, err
	}
	return db.Session(&gorm.Session{NewDB: true}).
		Table(table).
		Select(col).
		Where("user_id = ?", userID), nil
}

// CountSubscriptions returns how many authors userID follows.
func CountSubscriptions(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Subscription{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// ListSubscribedAuthors returns a page of the authors userID follows, in the
// order the subscriptions were made (newest first).
func ListSubscribedAuthors(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
