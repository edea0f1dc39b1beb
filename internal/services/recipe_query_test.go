package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

type listFixture struct {
	db                  *gorm.DB
	svc                 *RecipeService
	alice, bob, viewer  *domain.User
	soup, salad, stew   *domain.Recipe
	breakfast, dinner   *domain.Tag
}

// newListFixture seeds three recipes: soup (alice, dinner), salad (bob,
// breakfast) and stew (alice, breakfast+dinner), newest last.
func newListFixture(t *testing.T) *listFixture {
	t.Helper()
	db := newSvcDB(t)
	f := &listFixture{db: db, svc: NewRecipeService(db, newMemImages())}
	f.alice, f.bob, f.viewer = mkUser(t, db, "alice"), mkUser(t, db, "bob"), mkUser(t, db, "viewer")
	f.breakfast = mkTag(t, db, "Breakfast", "#FFA84F")
	f.dinner = mkTag(t, db, "Dinner", "#FF67FA")

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.soup = mkRecipe(t, db, f.alice.ID, "Soup", base, nil, f.dinner.ID)
	f.salad = mkRecipe(t, db, f.bob.ID, "Salad", base.Add(time.Hour), nil, f.breakfast.ID)
	f.stew = mkRecipe(t, db, f.alice.ID, "Stew", base.Add(2*time.Hour), nil, f.breakfast.ID, f.dinner.ID)
	return f
}

func ids(views []RecipeView) []uint {
	out := make([]uint, len(views))
	for i := range views {
		out[i] = views[i].ID
	}
	return out
}

func TestRecipeList_AnonymousFlagsIgnored(t *testing.T) {
	f := newListFixture(t)
	ctx := context.Background()

	rel := NewRelationService(f.db)
	_, err := rel.Create(ctx, domain.RelationFavorite, f.viewer.ID, f.soup.ID)
	require.NoError(t, err)

	all, total, err := f.svc.List(ctx, RecipeFilter{}, Viewer{}, 1, 10)
	require.NoError(t, err)

	flagged, flaggedTotal, err := f.svc.List(ctx, RecipeFilter{IsFavorited: true, IsInShoppingCart: true}, Viewer{}, 1, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 3, total)
	assert.Equal(t, total, flaggedTotal)
	assert.Equal(t, ids(all), ids(flagged))
	assert.Equal(t, []uint{f.stew.ID, f.salad.ID, f.soup.ID}, ids(all))
}

func TestRecipeList_FavoritedAndCartForViewer(t *testing.T) {
	f := newListFixture(t)
	ctx := context.Background()
	rel := NewRelationService(f.db)
	_, err := rel.Create(ctx, domain.RelationFavorite, f.viewer.ID, f.soup.ID)
	require.NoError(t, err)
	_, err = rel.Create(ctx, domain.RelationFavorite, f.viewer.ID, f.salad.ID)
	require.NoError(t, err)
	_, err = rel.Create(ctx, domain.RelationCart, f.viewer.ID, f.salad.ID)
	require.NoError(t, err)

	me := User(f.viewer.ID)
	favs, total, err := f.svc.List(ctx, RecipeFilter{IsFavorited: true}, me, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []uint{f.salad.ID, f.soup.ID}, ids(favs))
	for _, v := range favs {
		assert.True(t, v.IsFavorited)
	}

	both, _, err := f.svc.List(ctx, RecipeFilter{IsFavorited: true, IsInShoppingCart: true}, me, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.salad.ID}, ids(both))
	assert.True(t, both[0].IsInShoppingCart)

	// Someone else's favorites do not leak into another viewer's filter.
	none, total, err := f.svc.List(ctx, RecipeFilter{IsFavorited: true}, User(f.bob.ID), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestRecipeList_TagsOrMatchedThenIntersected(t *testing.T) {
	f := newListFixture(t)
	ctx := context.Background()

	got, total, err := f.svc.List(ctx, RecipeFilter{TagSlugs: []string{"breakfast", "dinner", " breakfast "}}, Viewer{}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "a recipe matching both tags is listed once")
	assert.Equal(t, []uint{f.stew.ID, f.salad.ID, f.soup.ID}, ids(got))

	got, _, err = f.svc.List(ctx, RecipeFilter{TagSlugs: []string{"breakfast"}, AuthorID: &f.alice.ID}, Viewer{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.stew.ID}, ids(got))

	got, _, err = f.svc.List(ctx, RecipeFilter{TagSlugs: []string{"nope"}}, Viewer{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, _, err = f.svc.List(ctx, RecipeFilter{TagSlugs: []string{"", "  "}}, Viewer{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3, "blank slugs do not filter")
}

func TestRecipeList_Pagination(t *testing.T) {
	f := newListFixture(t)
	ctx := context.Background()

	p1, total, err := f.svc.List(ctx, RecipeFilter{}, Viewer{}, 1, 2)
	require.NoError(t, err)
	p2, _, err := f.svc.List(ctx, RecipeFilter{}, Viewer{}, 2, 2)
	require.NoError(t, err)

	assert.EqualValues(t, 3, total)
	assert.Equal(t, []uint{f.stew.ID, f.salad.ID}, ids(p1))
	assert.Equal(t, []uint{f.soup.ID}, ids(p2))
	require.Len(t, p1[0].Tags, 2)
	assert.Equal(t, "Breakfast", p1[0].Tags[0].Name)
	assert.Equal(t, "alice", p1[0].Author.Username)
}

func TestRecipeFilter_Scopes(t *testing.T) {
	assert.Empty(t, RecipeFilter{}.Scopes(Viewer{}))
	assert.Empty(t, RecipeFilter{IsFavorited: true, IsInShoppingCart: true}.Scopes(Viewer{UserID: 3}))
	assert.Len(t, RecipeFilter{IsFavorited: true, IsInShoppingCart: true}.Scopes(User(3)), 2)

	author := uint(1)
	assert.Len(t, RecipeFilter{AuthorID: &author, TagSlugs: []string{"a"}}.Scopes(Viewer{}), 2)
}
