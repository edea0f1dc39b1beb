package services

import (
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// Viewer is the identity a request runs as. The zero value is anonymous.
type Viewer struct {
	UserID        uint
	Authenticated bool
}

// User returns an authenticated viewer.
func User(id uint) Viewer { return Viewer{UserID: id, Authenticated: true} }

// RecipeFilter narrows a recipe listing. Tag slugs match any of the given
// tags; every other filter is intersected. IsFavorited and IsInShoppingCart
// only apply to authenticated viewers.
type RecipeFilter struct {
	AuthorID         *uint
	TagSlugs         []string
	IsFavorited      bool
	IsInShoppingCart bool
}

// Scopes composes the filter into query scopes for viewer v.
func (f RecipeFilter) Scopes(v Viewer) []repo.Scope {
	var scopes []repo.Scope

	if f.AuthorID != nil {
		authorID := *f.AuthorID
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("recipes.author_id = ?", authorID)
		})
	}

	if slugs := cleanSlugs(f.TagSlugs); len(slugs) > 0 {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			tagged := db.Session(&gorm.Session{NewDB: true}).
				Table("recipe_tags").
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", slugs)
			return db.Where("recipes.id IN (?)", tagged)
		})
	}

	if v.Authenticated {
		if f.IsFavorited {
			scopes = append(scopes, relatedScope(domain.RelationFavorite, v.UserID))
		}
		if f.IsInShoppingCart {
			scopes = append(scopes, relatedScope(domain.RelationCart, v.UserID))
		}
	}
	return scopes
}

func relatedScope(kind domain.RelationKind, userID uint) repo.Scope {
	return func(db *gorm.DB) *gorm.DB {
		sub, err := repo.RelationTargetsSubquery(db, kind, userID)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return db.Where("recipes.id IN (?)", sub)
	}
}

// cleanSlugs trims, drops blanks and de-duplicates.
func cleanSlugs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
