package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Tag{}, &Ingredient{}, &Recipe{}, &RecipeIngredient{},
		&Favorite{}, &CartEntry{}, &Subscription{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():             "users",
		(Tag{}).TableName():              "tags",
		(Ingredient{}).TableName():       "ingredients",
		(Recipe{}).TableName():           "recipes",
		(RecipeIngredient{}).TableName(): "recipe_ingredients",
		(Favorite{}).TableName():         "favorites",
		(CartEntry{}).TableName():        "shopping_cart",
		(Subscription{}).TableName():     "subscriptions",
		(Idempotency{}).TableName():      "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestIngredient_BeforeSave_FoldsName(t *testing.T) {
	db := newDomainDB(t)

	ing := &Ingredient{Name: "  Äpfel "}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("insert ingredient: %v", err)
	}
	if ing.SearchName != "äpfel" {
		t.Fatalf("SearchName = %q; want %q", ing.SearchName, "äpfel")
	}
	if ing.MeasurementUnit != "kg" {
		t.Fatalf("MeasurementUnit default = %q; want kg", ing.MeasurementUnit)
	}

	ing.Name = "STRASSE"
	if err := db.Save(ing).Error; err != nil {
		t.Fatalf("save ingredient: %v", err)
	}
	if ing.SearchName != "strasse" {
		t.Fatalf("SearchName after update = %q", ing.SearchName)
	}
	if FoldName("Straße") != "strasse" {
		t.Fatalf("FoldName should apply full case folding, got %q", FoldName("Straße"))
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	for _, idx := range []struct {
		model any
		name  string
	}{
		{&User{}, "ux_users_username"},
		{&Tag{}, "ux_tags_slug"},
		{&Ingredient{}, "idx_ingredients_search"},
		{&Recipe{}, "idx_recipes_pub_date"},
		{&Favorite{}, "ux_favorites_user_recipe"},
		{&CartEntry{}, "ux_shopping_cart_user_recipe"},
		{&Subscription{}, "ux_subscriptions_user_author"},
	} {
		if !m.HasIndex(idx.model, idx.name) {
			t.Fatalf("expected index %s on %T", idx.name, idx.model)
		}
	}

	author := &User{Username: "chef", Email: "chef@example.com"}
	fan := &User{Username: "fan", Email: "fan@example.com"}
	for _, u := range []*User{author, fan} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	salt := &Ingredient{Name: "salt", MeasurementUnit: "g"}
	if err := db.Create(salt).Error; err != nil {
		t.Fatalf("insert ingredient: %v", err)
	}
	r := &Recipe{AuthorID: author.ID, Name: "Soup", Text: "boil", CookingTime: 10, PubDate: time.Now().UTC()}
	if err := db.Omit("Author", "Tags").Create(r).Error; err != nil {
		t.Fatalf("insert recipe: %v", err)
	}
	if err := db.Omit("Recipe", "Ingredient").Create(&RecipeIngredient{RecipeID: r.ID, IngredientID: salt.ID, Amount: 5}).Error; err != nil {
		t.Fatalf("insert line: %v", err)
	}
	if err := db.Omit("User", "Recipe").Create(&Favorite{UserID: fan.ID, RecipeID: r.ID}).Error; err != nil {
		t.Fatalf("insert favorite: %v", err)
	}

	// Unique pair
	if err := db.Omit("User", "Recipe").Create(&Favorite{UserID: fan.ID, RecipeID: r.ID}).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate favorite")
	}

	// Check constraints
	if err := db.Omit("Recipe", "Ingredient").Create(&RecipeIngredient{RecipeID: r.ID, IngredientID: salt.ID, Amount: 0}).Error; err == nil {
		t.Fatalf("expected check violation for amount=0")
	}
	bad := &Recipe{AuthorID: author.ID, Name: "x", Text: "y", CookingTime: -1, PubDate: time.Now()}
	if err := db.Omit("Author", "Tags").Create(bad).Error; err == nil {
		t.Fatalf("expected check violation for negative cooking_time")
	}

	// CASCADE: deleting the author removes recipes, lines and favorites
	if err := db.Delete(&User{}, author.ID).Error; err != nil {
		t.Fatalf("delete author: %v", err)
	}
	var cnt int64
	for _, model := range []any{&Recipe{}, &RecipeIngredient{}, &Favorite{}} {
		if err := db.Model(model).Count(&cnt).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if cnt != 0 {
			t.Fatalf("expected %T to cascade-delete, got count=%d", model, cnt)
		}
	}
}

func TestRelationKind(t *testing.T) {
	cases := []struct {
		k           RelationKind
		name, label string
		user        bool
	}{
		{RelationFavorite, "favorite", "favorites", false},
		{RelationCart, "shopping_cart", "shopping cart", false},
		{RelationSubscription, "subscription", "subscriptions", true},
	}
	for _, c := range cases {
		if !c.k.Valid() || c.k.String() != c.name || c.k.Label() != c.label || c.k.TargetsUser() != c.user {
			t.Fatalf("unexpected kind behaviour for %v", c.k)
		}
	}
	if RelationKind(0).Valid() || RelationKind(42).String() != "unknown" {
		t.Fatalf("undeclared kinds must be invalid")
	}
	if RelationSubscription.TargetNoun() != "author" || RelationCart.TargetNoun() != "recipe" {
		t.Fatalf("unexpected target nouns")
	}
}
