// Package domain defines the persistence models for users, tags, ingredients,
// recipes and the user-to-entity relations (favorites, shopping cart,
// subscriptions). These types are mapped with GORM and form the core data
// layer of the recipe backend.
package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// User is an account owned by the external auth collaborator. The core only
// reads users; it never creates or mutates them outside of tests.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Username  string    `json:"username"   gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	Email     string    `json:"email"      gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	FirstName string    `json:"first_name" gorm:"type:varchar(150);not null;default:''"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(150);not null;default:''"`
	CreatedAt time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Tag is a label attached to recipes. Name, slug and color are each unique.
//
// Fields:
//   - Name: display name, e.g. "Breakfast".
//   - Slug: URL-safe identifier used by the recipe filter.
//   - Color: hex color in #RRGGBB form.
type Tag struct {
	ID    uint   `json:"id"    gorm:"primaryKey"`
	Name  string `json:"name"  gorm:"type:varchar(200);not null;uniqueIndex:ux_tags_name"`
	Color string `json:"color" gorm:"type:varchar(7);not null;uniqueIndex:ux_tags_color"`
	Slug  string `json:"slug"  gorm:"type:varchar(200);not null;uniqueIndex:ux_tags_slug"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string { return "tags" }

// Ingredient is a catalog entry with a measurement unit. SearchName holds the
// Unicode case-folded name and is maintained by BeforeSave; prefix searches
// run against it.
type Ingredient struct {
	ID              uint   `json:"id"               gorm:"primaryKey"`
	Name            string `json:"name"             gorm:"type:varchar(200);not null"`
	MeasurementUnit string `json:"measurement_unit" gorm:"type:varchar(200);not null;default:'kg'"`
	SearchName      string `json:"-"                gorm:"type:varchar(200);not null;index:idx_ingredients_search"`
}

// TableName returns the database table name for Ingredient.
func (Ingredient) TableName() string { return "ingredients" }

// BeforeSave keeps SearchName in sync with Name.
func (i *Ingredient) BeforeSave(*gorm.DB) error {
	if strings.TrimSpace(i.MeasurementUnit) == "" {
		i.MeasurementUnit = "kg"
	}
	i.SearchName = FoldName(i.Name)
	return nil
}

// FoldName returns the Unicode case-folded form of s used for
// case-insensitive ingredient lookups.
func FoldName(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(s))
}

// Recipe is a published recipe authored by a user.
//
// Fields:
//   - AuthorID: owner; the recipe is cascade-deleted with its author.
//   - Image: stored image reference (URL or object key), may be empty.
//   - CookingTime: minutes, never negative (DB check).
//   - PubDate: set once at creation; listings order by it descending.
//   - Tags: many-to-many through recipe_tags.
type Recipe struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	AuthorID    uint      `json:"author_id"    gorm:"not null;index:idx_recipes_author"`
	Name        string    `json:"name"         gorm:"type:varchar(200);not null"`
	Image       string    `json:"image"        gorm:"type:varchar(512);not null;default:''"`
	Text        string    `json:"text"         gorm:"type:text;not null"`
	CookingTime int       `json:"cooking_time" gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 0"`
	PubDate     time.Time `json:"pub_date"     gorm:"not null;index:idx_recipes_pub_date"`

	Author User  `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Tags   []Tag `json:"-" gorm:"many2many:recipe_tags;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// RecipeIngredient is one ingredient line of a recipe. The same ingredient
// may appear on several lines of one recipe.
type RecipeIngredient struct {
	ID           uint `json:"id"            gorm:"primaryKey"`
	RecipeID     uint `json:"recipe_id"     gorm:"not null;index:idx_recipe_ingredients_recipe"`
	IngredientID uint `json:"ingredient_id" gorm:"not null;index:idx_recipe_ingredients_ingredient"`
	Amount       int  `json:"amount"        gorm:"not null;check:chk_recipe_ingredients_amount,amount > 0"`

	Recipe     Recipe     `json:"-" gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Ingredient Ingredient `json:"-" gorm:"foreignKey:IngredientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RecipeIngredient.
func (RecipeIngredient) TableName() string { return "recipe_ingredients" }

// Favorite marks a recipe as favorited by a user. One row per pair.
type Favorite struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_favorites_user_recipe,priority:1"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:ux_favorites_user_recipe,priority:2;index"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Recipe Recipe `gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// CartEntry places a recipe in a user's shopping cart. One row per pair.
type CartEntry struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_shopping_cart_user_recipe,priority:1"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:ux_shopping_cart_user_recipe,priority:2;index"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Recipe Recipe `gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CartEntry.
func (CartEntry) TableName() string { return "shopping_cart" }

// Subscription records that UserID follows AuthorID. One row per pair.
type Subscription struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_subscriptions_user_author,priority:1"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:ux_subscriptions_user_author,priority:2;index"`
	CreatedAt time.Time

	User   User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }
