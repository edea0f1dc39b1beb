// Package handlers – wiring
//
// Handlers are transport-thin: they parse path and query parameters, resolve
// the caller from the auth middleware, call a service and translate the
// result (or error) into an HTTP response. Business rules live in services.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/sysutil"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RecipeService composes, reads and deletes recipes.
type RecipeService interface {
	Create(ctx context.Context, in services.CreateRecipeInput) (*services.RecipeView, error)
	Update(ctx context.Context, recipeID, requesterID uint, in services.UpdateRecipeInput) (*services.RecipeView, error)
	Delete(ctx context.Context, recipeID, requesterID uint) error
	Get(ctx context.Context, recipeID uint, v services.Viewer) (*services.RecipeView, error)
	List(ctx context.Context, f services.RecipeFilter, v services.Viewer, page, pageSize int) ([]services.RecipeView, int64, error)
}

// RelationService manages favorites, cart entries and subscriptions.
type RelationService interface {
	Create(ctx context.Context, kind domain.RelationKind, userID, targetID uint) (*services.RelationTarget, error)
	Delete(ctx context.Context, kind domain.RelationKind, userID, targetID uint) error
	Subscriptions(ctx context.Context, userID uint, page, pageSize int) ([]services.AuthorView, int64, error)
}

// CartService builds the shopping-list document.
type CartService interface {
	BuildCartDocument(ctx context.Context, userID uint) (*services.CartDocument, error)
}

// CatalogService serves tags, ingredients and user profiles.
type CatalogService interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
	Tag(ctx context.Context, id uint) (*domain.Tag, error)
	Ingredients(ctx context.Context, prefix string) ([]domain.Ingredient, error)
	Ingredient(ctx context.Context, id uint) (*domain.Ingredient, error)
	User(ctx context.Context, id uint, v services.Viewer) (*services.UserView, error)
}

// recipesLimiter is implemented by relation services that can cap the
// recipes embedded in author representations per request.
type recipesLimiter interface {
	WithRecipesLimit(n int) *services.RelationService
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	recipes   RecipeService
	relations RelationService
	cart      CartService
	catalog   CatalogService
}

// New constructs Handlers bound to the given services.
func New(recipes RecipeService, relations RelationService, cart CartService, catalog CatalogService) *Handlers {
	return &Handlers{recipes: recipes, relations: relations, cart: cart, catalog: catalog}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination reads page and limit (page_size is accepted as an alias)
// and bounds them to sane defaults.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	pageSize = utils.Clamp(utils.AtoiDefault(raw, defaultPageSize), 1, maxPageSize)
	return
}

// viewer returns the caller as seen by the services.
func viewer(c *gin.Context) services.Viewer {
	if uid, ok := middleware.UserID(c); ok {
		return services.User(uid)
	}
	return services.Viewer{}
}

// pathID parses the :id path parameter, answering 400 when it is not a
// positive integer.
func pathID(c *gin.Context, what string) (uint, bool) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a positive integer")
		return 0, false
	}
	return id, true
}

// requireUser returns the authenticated user id. Routes needing a user are
// also guarded by middleware.RequireAuth; this keeps handlers safe when
// mounted without it.
func requireUser(c *gin.Context) (uint, bool) {
	uid, authed := middleware.UserID(c)
	if !authed {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return 0, false
	}
	return uid, true
}

// parseRecipeFilter reads author, repeated tags (comma lists accepted) and
// the truthy is_favorited / is_in_shopping_cart flags.
func parseRecipeFilter(c *gin.Context) (services.RecipeFilter, bool) {
	var f services.RecipeFilter
	if raw := c.Query("author"); raw != "" {
		id, valid := utils.ParseID(raw)
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "author must be a positive integer")
			return f, false
		}
		f.AuthorID = &id
	}
	for _, v := range c.QueryArray("tags") {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.TagSlugs = append(f.TagSlugs, s)
			}
		}
	}
	f.IsFavorited = sysutil.IsTruthy(c.Query("is_favorited"))
	f.IsInShoppingCart = sysutil.IsTruthy(c.Query("is_in_shopping_cart"))
	return f, true
}
