package services

import (
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RecipeShort is the compact recipe form returned by relation endpoints and
// embedded in author listings.
type RecipeShort struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

func shortRecipe(r *domain.Recipe) RecipeShort {
	return RecipeShort{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

// UserView is a user as seen by a viewer.
type UserView struct {
	Email        string `json:"email"`
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

func userView(u *domain.User, subscribed bool) UserView {
	return UserView{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

// AuthorView extends UserView with the author's recipes, used by the
// subscription endpoints.
type AuthorView struct {
	UserView
	Recipes      []RecipeShort `json:"recipes"`
	RecipesCount int64         `json:"recipes_count"`
}

// RelationTarget is the representation returned after a relation is
// created: Recipe for favorites and cart entries, Author for subscriptions.
type RelationTarget struct {
	Recipe *RecipeShort
	Author *AuthorView
}

// RecipeLineView is one ingredient line of a recipe.
type RecipeLineView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeView is the full recipe representation. The flags are always false
// for anonymous viewers.
type RecipeView struct {
	ID               uint             `json:"id"`
	Tags             []domain.Tag     `json:"tags"`
	Author           UserView         `json:"author"`
	Ingredients      []RecipeLineView `json:"ingredients"`
	IsFavorited      bool             `json:"is_favorited"`
	IsInShoppingCart bool             `json:"is_in_shopping_cart"`
	Name             string           `json:"name"`
	Image            string           `json:"image"`
	Text             string           `json:"text"`
	CookingTime      int              `json:"cooking_time"`
	PubDate          time.Time        `json:"pub_date"`
}
