package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// CatalogService serves the read-only catalog: tags, ingredients and user
// profiles.
type CatalogService struct {
	DB *gorm.DB
}

// NewCatalogService returns a CatalogService.
func NewCatalogService(db *gorm.DB) *CatalogService { return &CatalogService{DB: db} }

// Tags lists every tag ordered by name.
func (s *CatalogService) Tags(ctx context.Context) ([]domain.Tag, error) {
	return repo.ListTags(ctx, s.DB)
}

// Tag returns one tag.
func (s *CatalogService) Tag(ctx context.Context, id uint) (*domain.Tag, error) {
	t, err := repo.GetTag(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTagNotFound
	}
	return t, err
}

// Ingredients lists ingredients whose name starts with prefix, ignoring
// case. An empty prefix lists all of them.
func (s *CatalogService) Ingredients(ctx context.Context, prefix string) ([]domain.Ingredient, error) {
	return repo.ListIngredients(ctx, s.DB, domain.FoldName(prefix))
}

// Ingredient returns one ingredient.
func (s *CatalogService) Ingredient(ctx context.Context, id uint) (*domain.Ingredient, error) {
	i, err := repo.GetIngredient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrIngredientNotFound
	}
	return i, err
}

// User returns a user profile with is_subscribed set for v.
func (s *CatalogService) User(ctx context.Context, id uint, v Viewer) (*UserView, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	subscribed := false
	if v.Authenticated {
		m, err := repo.RelatedTargets(ctx, s.DB, domain.RelationSubscription, v.UserID, []uint{id})
		if err != nil {
			return nil, err
		}
		subscribed = m[id]
	}
	out := userView(u, subscribed)
	return &out, nil
}
