// Relation HTTP handlers.
//
//   - POST/DELETE /recipes/{id}/favorite
//   - POST/DELETE /recipes/{id}/shopping_cart
//   - GET         /recipes/download_shopping_cart   (text/plain attachment, weak ETag)
//   - POST/DELETE /users/{id}/subscribe
//   - GET         /users/subscriptions
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

// ShoppingListFilename is the attachment name of the cart download.
const ShoppingListFilename = "shopping_list.txt"

// ListSubscriptionsResponse wraps a page of followed authors.
type ListSubscriptionsResponse struct {
	Authors    []services.AuthorView `json:"authors"`
	Pagination Pagination            `json:"pagination"`
}

// AddFavorite godoc
// @ID          addFavorite
// @Summary     Add a recipe to favorites
// @Tags        Relations
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe id"
// @Success     201  {object}  services.RecipeShort
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already in favorites"
// @Router      /recipes/{id}/favorite [post]
func (h *Handlers) AddFavorite(c *gin.Context) { h.addRelation(c, domain.RelationFavorite) }

// RemoveFavorite godoc
// @ID          removeFavorite
// @Summary     Remove a recipe from favorites
// @Tags        Relations
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe id"
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Failure     409  {object}  handlers.ErrorResponse "Not in favorites"
// @Router      /recipes/{id}/favorite [delete]
func (h *Handlers) RemoveFavorite(c *gin.Context) { h.removeRelation(c, domain.RelationFavorite) }

// AddToCart godoc
// @ID          addToCart
// @Summary     Add a recipe to the shopping cart
// @Tags        Relations
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe id"
// @Success     201  {object}  services.RecipeShort
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already in shopping cart"
// @Router      /recipes/{id}/shopping_cart [post]
func (h *Handlers) AddToCart(c *gin.Context) { h.addRelation(c, domain.RelationCart) }

// RemoveFromCart godoc
// @ID          removeFromCart
// @Summary     Remove a recipe from the shopping cart
// @Tags        Relations
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe id"
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Failure     409  {object}  handlers.ErrorResponse "Not in shopping cart"
// @Router      /recipes/{id}/shopping_cart [delete]
func (h *Handlers) RemoveFromCart(c *gin.Context) { h.removeRelation(c, domain.RelationCart) }

// Subscribe godoc
// @ID          subscribe
// @Summary     Subscribe to an author
// @Tags        Relations
// @Produce     json
// @Security    BearerAuth
// @Param       id             path   int  true   "Author id"
// @Param       recipes_limit  query  int  false  "Max recipes embedded in the author"
// @Success     201  {object}  services.AuthorView
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already subscribed or self subscription"
// @Router      /users/{id}/subscribe [post]
func (h *Handlers) Subscribe(c *gin.Context) { h.addRelation(c, domain.RelationSubscription) }

// Unsubscribe godoc
// @ID          unsubscribe
// @Summary     Unsubscribe from an author
// @Tags        Relations
// @Security    BearerAuth
// @Param       id  path  int  true  "Author id"
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Failure     409  {object}  handlers.ErrorResponse "Not subscribed"
// @Router      /users/{id}/subscribe [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) { h.removeRelation(c, domain.RelationSubscription) }

func (h *Handlers) addRelation(c *gin.Context, kind domain.RelationKind) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c, kind.TargetNoun())
	if !valid {
		return
	}

	out, err := h.relationsFor(c).Create(c.Request.Context(), kind, uid, id)
	if err != nil {
		failErr(c, err)
		return
	}
	if out.Author != nil {
		ok(c, http.StatusCreated, out.Author)
		return
	}
	ok(c, http.StatusCreated, out.Recipe)
}

func (h *Handlers) removeRelation(c *gin.Context, kind domain.RelationKind) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	id, valid := pathID(c, kind.TargetNoun())
	if !valid {
		return
	}
	if err := h.relations.Delete(c.Request.Context(), kind, uid, id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// relationsFor applies the recipes_limit query parameter when the service
// supports it.
func (h *Handlers) relationsFor(c *gin.Context) RelationService {
	n := utils.AtoiDefault(c.Query("recipes_limit"), 0)
	if n <= 0 {
		return h.relations
	}
	if l, ok := h.relations.(recipesLimiter); ok {
		return l.WithRecipesLimit(n)
	}
	return h.relations
}

// ListSubscriptions godoc
// @ID          listSubscriptions
// @Summary     List followed authors
// @Description Authors the caller subscribes to, each with their newest recipes (capped by recipes_limit) and total recipe count.
// @Tags        Relations
// @Produce     json
// @Security    BearerAuth
// @Param       recipes_limit  query  int  false  "Max recipes per author"
// @Param       page           query  int  false  "Page number"     minimum(1) default(1)
// @Param       limit          query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListSubscriptionsResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Router      /users/subscriptions [get]
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.relationsFor(c).Subscriptions(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListSubscriptionsResponse{
		Authors:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// DownloadShoppingCart godoc
// @ID          downloadShoppingCart
// @Summary     Download the shopping list
// @Description Ingredients of every recipe in the cart, summed per (name, unit), as a text attachment. Supports a weak ETag via If-None-Match.
// @Tags        Relations
// @Produce     plain
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {string}  string  "Shopping list"
// @Header      200  {string}  ETag  "Weak ETag of the document"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Router      /recipes/download_shopping_cart [get]
func (h *Handlers) DownloadShoppingCart(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	doc, err := h.cart.BuildCartDocument(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}

	body := doc.Text()
	sum := sha256.Sum256([]byte(body))
	etag := `W/"cart:` + hex.EncodeToString(sum[:8]) + `"`
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+ShoppingListFilename+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}
