package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

func TestBuildCartDocument_SumsSameNameAndUnitAcrossRecipes(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	author, buyer := mkUser(t, db, "author"), mkUser(t, db, "buyer")
	flour := mkIngredient(t, db, "flour", "g")
	eggs := mkIngredient(t, db, "eggs", "pcs")

	r1 := mkRecipe(t, db, author.ID, "Bread", time.Now(), map[uint]int{flour.ID: 200})
	r2 := mkRecipe(t, db, author.ID, "Cake", time.Now(), map[uint]int{flour.ID: 200, eggs.ID: 3})

	rel := NewRelationService(db)
	for _, r := range []*domain.Recipe{r1, r2} {
		_, err := rel.Create(ctx, domain.RelationCart, buyer.ID, r.ID)
		require.NoError(t, err)
	}

	before := testutil.ToFloat64(observability.CartDocuments)
	doc, err := NewCartService(db).BuildCartDocument(ctx, buyer.ID)
	require.NoError(t, err)

	assert.Equal(t, []CartItem{
		{Name: "eggs", Unit: "pcs", Amount: 3},
		{Name: "flour", Unit: "g", Amount: 400},
	}, doc.Items)
	assert.Equal(t, "Shopping list for buyer\neggs (pcs) - 3\nflour (g) - 400\n", doc.Text())
	assert.EqualValues(t, 2, doc.Recipes)
	assert.NotNil(t, doc.NewestAdded)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.CartDocuments))
}

func TestBuildCartDocument_EmptyCart_HeaderOnly(t *testing.T) {
	db := newSvcDB(t)
	u := mkUser(t, db, "nobody")

	doc, err := NewCartService(db).BuildCartDocument(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
	assert.Zero(t, doc.Recipes)
	assert.Nil(t, doc.NewestAdded)
	assert.Equal(t, "Shopping list for nobody\n", doc.Text())
}

func TestBuildCartDocument_UnknownUser(t *testing.T) {
	db := newSvcDB(t)
	_, err := NewCartService(db).BuildCartDocument(context.Background(), 77)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBuildCartDocument_RepeatedIngredientWithinOneRecipe(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	u := mkUser(t, db, "cook")
	salt := mkIngredient(t, db, "salt", "g")

	r := mkRecipe(t, db, u.ID, "Brine", time.Now(), nil)
	require.NoError(t, repo.ReplaceRecipeLines(ctx, db, r.ID, []domain.RecipeIngredient{
		{IngredientID: salt.ID, Amount: 5},
		{IngredientID: salt.ID, Amount: 7},
	}))
	require.NoError(t, repo.CreateRelation(ctx, db, domain.RelationCart, u.ID, r.ID))

	doc, err := NewCartService(db).BuildCartDocument(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []CartItem{{Name: "salt", Unit: "g", Amount: 12}}, doc.Items)
}

func TestAggregateIngredients(t *testing.T) {
	got := AggregateIngredients([]repo.CartLine{
		{Name: "sugar", Unit: "kg", Amount: 1},
		{Name: "milk", Unit: "ml", Amount: 250},
		{Name: "sugar", Unit: "g", Amount: 50},
		{Name: "milk", Unit: "ml", Amount: 250},
		{Name: "Apples", Unit: "pcs", Amount: 2},
	})
	assert.Equal(t, []CartItem{
		{Name: "Apples", Unit: "pcs", Amount: 2},
		{Name: "milk", Unit: "ml", Amount: 500},
		{Name: "sugar", Unit: "g", Amount: 50},
		{Name: "sugar", Unit: "kg", Amount: 1},
	}, got)

	assert.Empty(t, AggregateIngredients(nil))
}
