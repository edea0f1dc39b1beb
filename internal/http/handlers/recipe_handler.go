// Recipe HTTP handlers.
//
//   - GET    /recipes         (list, filtered, paginated)
//   - POST   /recipes         (create, Idempotency-Key honored)
//   - GET    /recipes/{id}
//   - PUT    /recipes/{id}    (full replacement, author only)
//   - PATCH  /recipes/{id}    (partial update, author only)
//   - DELETE /recipes/{id}    (author only)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// RecipeRequest is the JSON payload for creating or updating a recipe.
// On PATCH every field is optional; on POST and PUT the service and
// RequireAll enforce presence.
type RecipeRequest struct {
	Name        *string                        `json:"name" example:"Pancakes"`
	Text        *string                        `json:"text" example:"Mix everything and fry."`
	CookingTime *int                           `json:"cooking_time" example:"15"`
	Image       *string                        `json:"image" example:"data:image/png;base64,iVBORw0KGgo="`
	Tags        []uint                         `json:"tags" example:"1,2"`
	Ingredients []services.IngredientLineInput `json:"ingredients"`
}

func (r *RecipeRequest) createInput(authorID uint, idemKey string) services.CreateRecipeInput {
	in := services.CreateRecipeInput{
		AuthorID:       authorID,
		IdempotencyKey: idemKey,
		Tags:           r.Tags,
		Ingredients:    r.Ingredients,
	}
	if r.Name != nil {
		in.Name = *r.Name
	}
	if r.Text != nil {
		in.Text = *r.Text
	}
	if r.CookingTime != nil {
		in.CookingTime = *r.CookingTime
	}
	if r.Image != nil {
		in.Image = *r.Image
	}
	return in
}

func (r *RecipeRequest) updateInput() services.UpdateRecipeInput {
	return services.UpdateRecipeInput{
		Name:        r.Name,
		Text:        r.Text,
		CookingTime: r.CookingTime,
		Image:       r.Image,
		Tags:        r.Tags,
		Ingredients: r.Ingredients,
	}
}

// ListRecipesResponse wraps a page of recipes and pagination information.
type ListRecipesResponse struct {
	Recipes    []services.RecipeView `json:"recipes"`
	Pagination Pagination            `json:"pagination"`
}

// ListRecipes godoc
// @ID          listRecipes
// @Summary     List recipes (filtered, paginated)
// @Description Newest first. Tags are OR-matched by slug; the favorite and cart flags only apply to authenticated callers.
// @Tags        Recipes
// @Produce     json
//
// @Param       author               query  int     false  "Author id"
// @Param       tags                 query  []string false "Tag slugs (repeatable)" collectionFormat(multi)
// @Param       is_favorited         query  string  false  "Only favorites (1/true/yes/on)"
// @Param       is_in_shopping_cart  query  string  false  "Only cart recipes (1/true/yes/on)"
// @Param       page                 query  int     false  "Page number"     minimum(1) default(1)
// @Param       limit                query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListRecipesResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /recipes [get]
func (h *Handlers) ListRecipes(c *gin.Context) {
	f, valid := parseRecipeFilter(c)
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.recipes.List(c.Request.Context(), f, viewer(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListRecipesResponse{
		Recipes:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// CreateRecipe godoc
// @ID          createRecipe
// @Summary     Publish a recipe
// @Description Creates a recipe with its tags and ingredient lines in one step. Retrying with the same Idempotency-Key returns the recipe created first.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.RecipeRequest  true   "Recipe payload"
//
// @Success     201  {object}  services.RecipeView
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Unknown tag or ingredient"
// @Failure     413  {object}  handlers.ErrorResponse "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /recipes [post]
func (h *Handlers) CreateRecipe(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	var req RecipeRequest
	if !bindJSON(c, &req) {
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	view, err := h.recipes.Create(c.Request.Context(), req.createInput(uid, key))
	if err != nil {
		failErr(c, err)
		return
	}
	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusCreated, view)
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a recipe
// @Tags        Recipes
// @Produce     json
// @Param       id   path  int  true  "Recipe id"
// @Success     200  {object}  services.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	id, valid := pathID(c, "recipe")
	if !valid {
		return
	}
	view, err := h.recipes.Get(c.Request.Context(), id, viewer(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// ReplaceRecipe godoc
// @ID          replaceRecipe
// @Summary     Replace a recipe
// @Description Full update: name, text, cooking_time, tags and ingredients are required; image is optional and keeps the current one when omitted.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                     true  "Recipe id"
// @Param       body  body  handlers.RecipeRequest  true  "Recipe payload"
// @Success     200  {object}  services.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Router      /recipes/{id} [put]
func (h *Handlers) ReplaceRecipe(c *gin.Context) { h.updateRecipe(c, true) }

// PatchRecipe godoc
// @ID          patchRecipe
// @Summary     Partially update a recipe
// @Description Only given fields change. Given tags or ingredients replace the whole collection.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                     true  "Recipe id"
// @Param       body  body  handlers.RecipeRequest  true  "Fields to change"
// @Success     200  {object}  services.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Router      /recipes/{id} [patch]
func (h *Handlers) PatchRecipe(c *gin.Context) { h.updateRecipe(c, false) }

func (h *Handlers) updateRecipe(c *gin.Context, full bool) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c, "recipe")
	if !valid {
		return
	}
	var req RecipeRequest
	if !bindJSON(c, &req) {
		return
	}
	in := req.updateInput()
	if full {
		if err := in.RequireAll(); err != nil {
			failErr(c, err)
			return
		}
	}

	view, err := h.recipes.Update(c.Request.Context(), id, uid, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// DeleteRecipe godoc
// @ID          deleteRecipe
// @Summary     Delete a recipe
// @Description Removes the recipe with its ingredient lines, tag links, favorites and cart entries.
// @Tags        Recipes
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe id"
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Router      /recipes/{id} [delete]
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c, "recipe")
	if !valid {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), id, uid); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
