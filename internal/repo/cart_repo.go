package repo

import (
	"context"

	"gorm.io/gorm"
)

// CartLine is one raw ingredient line contributed by a recipe in a user's
// shopping cart, before aggregation.
type CartLine struct {
	Name   string
	Unit   string
	Amount int
}

// ListCartLines reads every ingredient line of every recipe in userID's cart
// in a single join. Lines are not merged; see services.AggregateIngredients.
func ListCartLines(ctx context.Context, db *gorm.DB, userID uint) ([]CartLine, error) {
	out := []CartLine{}
	err := db.WithContext(ctx).
		Table("shopping_cart").
		Select("ingredients.name AS name, ingredients.measurement_unit AS unit, recipe_ingredients.amount AS amount").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = shopping_cart.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("shopping_cart.user_id = ?", userID).
		Scan(&out).Error
	return out, err
}
