// Catalog HTTP handlers: read-only tags, ingredients and user profiles.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListTags godoc
// @ID          listTags
// @Summary     List tags
// @Tags        Catalog
// @Produce     json
// @Success     200  {array}   domain.Tag
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /tags [get]
func (h *Handlers) ListTags(c *gin.Context) {
	tags, err := h.catalog.Tags(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, tags)
}

// GetTag godoc
// @ID          getTag
// @Summary     Get a tag
// @Tags        Catalog
// @Produce     json
// @Param       id  path  int  true  "Tag id"
// @Success     200  {object}  domain.Tag
// @Failure     404  {object}  handlers.ErrorResponse "Tag not found"
// @Router      /tags/{id} [get]
func (h *Handlers) GetTag(c *gin.Context) {
	id, valid := pathID(c, "tag")
	if !valid {
		return
	}
	tag, err := h.catalog.Tag(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, tag)
}

// ListIngredients godoc
// @ID          listIngredients
// @Summary     Search ingredients
// @Description Case-insensitive "starts with" match on the ingredient name.
// @Tags        Catalog
// @Produce     json
// @Param       name  query  string  false  "Name prefix"  example(sug)
// @Success     200  {array}   domain.Ingredient
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /ingredients [get]
func (h *Handlers) ListIngredients(c *gin.Context) {
	items, err := h.catalog.Ingredients(c.Request.Context(), c.Query("name"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetIngredient godoc
// @ID          getIngredient
// @Summary     Get an ingredient
// @Tags        Catalog
// @Produce     json
// @Param       id  path  int  true  "Ingredient id"
// @Success     200  {object}  domain.Ingredient
// @Failure     404  {object}  handlers.ErrorResponse "Ingredient not found"
// @Router      /ingredients/{id} [get]
func (h *Handlers) GetIngredient(c *gin.Context) {
	id, valid := pathID(c, "ingredient")
	if !valid {
		return
	}
	item, err := h.catalog.Ingredient(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user profile
// @Description is_subscribed reflects the caller's subscription and is false for anonymous callers.
// @Tags        Users
// @Produce     json
// @Param       id  path  int  true  "User id"
// @Success     200  {object}  services.UserView
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, valid := pathID(c, "user")
	if !valid {
		return
	}
	u, err := h.catalog.User(c.Request.Context(), id, viewer(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
