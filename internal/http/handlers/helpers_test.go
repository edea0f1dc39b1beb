package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// apiEnv is a small API mounted over real services and an in-memory store.
type apiEnv struct {
	db     *gorm.DB
	router *gin.Engine
	store  *media.FileStore
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repo.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := media.NewFileStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	h := New(
		services.NewRecipeService(db, store),
		services.NewRelationService(db),
		services.NewCartService(db),
		services.NewCatalogService(db),
	)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(middleware.AuthOptions{TrustHeader: true}))
	r.GET("/tags", h.ListTags)
	r.GET("/tags/:id", h.GetTag)
	r.GET("/ingredients", h.ListIngredients)
	r.GET("/ingredients/:id", h.GetIngredient)
	r.GET("/recipes", h.ListRecipes)
	r.POST("/recipes", h.CreateRecipe)
	r.GET("/recipes/download_shopping_cart", h.DownloadShoppingCart)
	r.GET("/recipes/:id", h.GetRecipe)
	r.PUT("/recipes/:id", h.ReplaceRecipe)
	r.PATCH("/recipes/:id", h.PatchRecipe)
	r.DELETE("/recipes/:id", h.DeleteRecipe)
	r.POST("/recipes/:id/favorite", h.AddFavorite)
	r.DELETE("/recipes/:id/favorite", h.RemoveFavorite)
	r.POST("/recipes/:id/shopping_cart", h.AddToCart)
	r.DELETE("/recipes/:id/shopping_cart", h.RemoveFromCart)
	r.GET("/users/subscriptions", h.ListSubscriptions)
	r.GET("/users/:id", h.GetUser)
	r.POST("/users/:id/subscribe", h.Subscribe)
	r.DELETE("/users/:id/subscribe", h.Unsubscribe)

	return &apiEnv{db: db, router: r, store: store}
}

// do sends a request as user uid (0 = anonymous) with an optional JSON body.
func (e *apiEnv) do(t *testing.T, method, path string, uid uint, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != 0 {
		req.Header.Set(middleware.HeaderUserID, strconv.FormatUint(uint64(uid), 10))
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com"}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *apiEnv) ingredient(t *testing.T, name, unit string) *domain.Ingredient {
	t.Helper()
	i := &domain.Ingredient{Name: name, MeasurementUnit: unit}
	if err := e.db.Create(i).Error; err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	return i
}

func (e *apiEnv) tag(t *testing.T, name, color string) *domain.Tag {
	t.Helper()
	tag := &domain.Tag{Name: name, Slug: strings.ToLower(name), Color: color}
	if err := e.db.Create(tag).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return tag
}

// recipe publishes a recipe through the API and returns its view.
func (e *apiEnv) recipe(t *testing.T, author uint, name string, lines map[uint]int, tags ...uint) services.RecipeView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/recipes", author, recipeBody(name, lines, tags...))
	if w.Code != http.StatusCreated {
		t.Fatalf("create recipe %q: %d %s", name, w.Code, w.Body.String())
	}
	var v services.RecipeView
	decode(t, w, &v)
	return v
}

func recipeBody(name string, lines map[uint]int, tags ...uint) map[string]any {
	ings := []map[string]any{}
	for id, amount := range lines {
		ings = append(ings, map[string]any{"id": id, "amount": amount})
	}
	if tags == nil {
		tags = []uint{}
	}
	return map[string]any{
		"name":         name,
		"text":         "Cook it.",
		"cooking_time": 20,
		"image":        pngDataURI("img-" + name),
		"tags":         tags,
		"ingredients":  ings,
	}
}

func pngDataURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	decode(t, w, &er)
	return er
}

func path(format string, args ...any) string { return fmt.Sprintf(format, args...) }
