// Package services – RelationService
//
// This file implements the relation manager: one code path that creates and
// removes (user, target) pairs for favorites, shopping-cart entries and
// author subscriptions. Uniqueness lives in the store's unique indexes, so
// two concurrent creates for the same pair resolve to one row and one
// ErrAlreadyRelated.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// RelationService creates and deletes user relations.
type RelationService struct {
	DB *gorm.DB

	// RecipesLimit caps the recipes embedded in an author representation;
	// <= 0 embeds all of them.
	RecipesLimit int
}

// NewRelationService returns a RelationService embedding all recipes.
func NewRelationService(db *gorm.DB) *RelationService {
	return &RelationService{DB: db}
}

// WithRecipesLimit returns a copy of s that embeds at most n recipes per
// author.
func (s *RelationService) WithRecipesLimit(n int) *RelationService {
	c := *s
	c.RecipesLimit = n
	return &c
}

// Create stores the (userID, targetID) pair and returns the target's short
// representation.
func (s *RelationService) Create(ctx context.Context, kind domain.RelationKind, userID, targetID uint) (out *RelationTarget, err error) {
	ctx, span := observability.Tracer("services/RelationService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("relation.kind", kind.String()),
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("target.id", int64(targetID)),
		),
	)
	defer span.End()
	defer func() { observeRelation(kind, "create", err) }()

	if err := checkRelation(kind, userID, targetID); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireTarget(ctx, tx, kind, targetID); err != nil {
			return err
		}
		if err := repo.CreateRelation(ctx, tx, kind, userID, targetID); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return &RelationError{Kind: kind, Err: ErrAlreadyRelated}
			}
			return err
		}
		t, err := s.representTarget(ctx, tx, kind, targetID)
		out = t
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Delete removes the (userID, targetID) pair. A missing pair is a conflict.
func (s *RelationService) Delete(ctx context.Context, kind domain.RelationKind, userID, targetID uint) (err error) {
	ctx, span := observability.Tracer("services/RelationService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("relation.kind", kind.String()),
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("target.id", int64(targetID)),
		),
	)
	defer span.End()
	defer func() { observeRelation(kind, "delete", err) }()

	if err := checkRelation(kind, userID, targetID); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireTarget(ctx, tx, kind, targetID); err != nil {
			return err
		}
		n, err := repo.DeleteRelation(ctx, tx, kind, userID, targetID)
		if err != nil {
			return err
		}
		if n == 0 {
			return &RelationError{Kind: kind, Err: ErrNotRelated}
		}
		return nil
	})
}

// Subscriptions returns a page of the authors userID follows, each with its
// newest recipes and recipe count.
func (s *RelationService) Subscriptions(ctx context.Context, userID uint, page, pageSize int) ([]AuthorView, int64, error) {
	ctx, span := observability.Tracer("services/RelationService").Start(ctx, "Subscriptions",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = normalizePage(page, pageSize)

	total, err := repo.CountSubscriptions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []AuthorView{}, 0, nil
	}

	authors, err := repo.ListSubscribedAuthors(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, len(authors))
	for i := range authors {
		ids[i] = authors[i].ID
	}
	counts, err := repo.RecipeCountsByAuthor(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]AuthorView, 0, len(authors))
	for i := range authors {
		v, err := s.authorView(ctx, s.DB, &authors[i], true, counts[authors[i].ID])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, nil
}

// checkRelation rejects undeclared kinds and self-subscription before any
// store access.
func checkRelation(kind domain.RelationKind, userID, targetID uint) error {
	if !kind.Valid() {
		return repo.ErrUnknownRelation
	}
	if kind == domain.RelationSubscription && userID == targetID {
		return &RelationError{Kind: kind, Err: ErrSelfSubscription}
	}
	return nil
}

// requireTarget verifies the relation target exists.
func requireTarget(ctx context.Context, db *gorm.DB, kind domain.RelationKind, targetID uint) error {
	var n int64
	var err error
	if kind.TargetsUser() {
		err = db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", targetID).Count(&n).Error
	} else {
		err = db.WithContext(ctx).Model(&domain.Recipe{}).Where("id = ?", targetID).Count(&n).Error
	}
	switch {
	case err != nil:
		return err
	case n > 0:
		return nil
	case kind.TargetsUser():
		return ErrUserNotFound
	default:
		return ErrRecipeNotFound
	}
}

func (s *RelationService) representTarget(ctx context.Context, db *gorm.DB, kind domain.RelationKind, targetID uint) (*RelationTarget, error) {
	if !kind.TargetsUser() {
		r, err := repo.GetRecipe(ctx, db, targetID)
		if err != nil {
			return nil, err
		}
		short := shortRecipe(r)
		return &RelationTarget{Recipe: &short}, nil
	}

	u, err := repo.GetUser(ctx, db, targetID)
	if err != nil {
		return nil, err
	}
	counts, err := repo.RecipeCountsByAuthor(ctx, db, []uint{u.ID})
	if err != nil {
		return nil, err
	}
	v, err := s.authorView(ctx, db, u, true, counts[u.ID])
	if err != nil {
		return nil, err
	}
	return &RelationTarget{Author: &v}, nil
}

func (s *RelationService) authorView(ctx context.Context, db *gorm.DB, u *domain.User, subscribed bool, count int64) (AuthorView, error) {
	recipes, err := repo.ListAuthorRecipes(ctx, db, u.ID, s.RecipesLimit)
	if err != nil {
		return AuthorView{}, err
	}
	shorts := make([]RecipeShort, len(recipes))
	for i := range recipes {
		shorts[i] = shortRecipe(&recipes[i])
	}
	return AuthorView{UserView: userView(u, subscribed), Recipes: shorts, RecipesCount: count}, nil
}

func observeRelation(kind domain.RelationKind, op string, err error) {
	observability.RelationOps.WithLabelValues(kind.String(), op, outcome(err)).Inc()
}

// outcome maps an error to a bounded metric label.
func outcome(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyRelated), errors.Is(err, ErrNotRelated), errors.Is(err, ErrSelfSubscription):
		return "conflict"
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTagNotFound), errors.Is(err, ErrIngredientNotFound):
		return "not_found"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "error"
}

// normalizePage applies the default page and page size.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}
