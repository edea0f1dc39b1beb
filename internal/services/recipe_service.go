// Package services – RecipeService
//
// This file implements recipe composition: a recipe row, its tag links and
// its ingredient lines are written as one unit inside a single transaction.
// Updates replace the whole tag set and the whole line set when given.
// Images are stored before the transaction opens and removed again when the
// transaction fails, so a rolled-back recipe leaves no orphaned object.
//
// Reads (Get, List) decorate recipes for a Viewer with the is_favorited,
// is_in_shopping_cart and author is_subscribed flags.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// IdempotencyScopeCreate scopes idempotency keys of recipe creation.
const IdempotencyScopeCreate = "recipes.create"

// IngredientLineInput is one requested ingredient line.
type IngredientLineInput struct {
	ID     uint `json:"id"     validate:"gt=0"`
	Amount int  `json:"amount" validate:"gt=0"`
}

// CreateRecipeInput carries everything needed to compose a new recipe.
type CreateRecipeInput struct {
	AuthorID       uint   `json:"-"`
	IdempotencyKey string `json:"-"`

	Name        string                `json:"name"         validate:"required,max=200"`
	Text        string                `json:"text"         validate:"required"`
	CookingTime int                   `json:"cooking_time" validate:"gte=0"`
	Image       string                `json:"image"        validate:"required"`
	Tags        []uint                `json:"tags"`
	Ingredients []IngredientLineInput `json:"ingredients"  validate:"required,min=1,dive"`
}

// UpdateRecipeInput is a partial update. Nil fields are left unchanged; a
// non-nil Tags or Ingredients slice replaces the whole collection.
type UpdateRecipeInput struct {
	Name        *string               `json:"name"         validate:"omitnil,required,max=200"`
	Text        *string               `json:"text"         validate:"omitnil,required"`
	CookingTime *int                  `json:"cooking_time" validate:"omitnil,gte=0"`
	Image       *string               `json:"image"        validate:"omitnil,required"`
	Tags        []uint                `json:"tags"`
	Ingredients []IngredientLineInput `json:"ingredients"  validate:"omitempty,dive"`
}

// RequireAll reports the fields a full replacement (PUT) is missing.
func (in *UpdateRecipeInput) RequireAll() error {
	missing := map[string]string{}
	if in.Name == nil {
		missing["name"] = "is required"
	}
	if in.Text == nil {
		missing["text"] = "is required"
	}
	if in.CookingTime == nil {
		missing["cooking_time"] = "is required"
	}
	if in.Tags == nil {
		missing["tags"] = "is required"
	}
	if in.Ingredients == nil {
		missing["ingredients"] = "is required"
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// RecipeService composes, reads and deletes recipes.
type RecipeService struct {
	DB     *gorm.DB
	Images media.ImageStore

	// MaxImageBytes caps decoded image size; <= 0 disables the cap.
	MaxImageBytes int
	// IdempotencyTTL is how long an Idempotency-Key replays its recipe.
	IdempotencyTTL time.Duration

	Now func() time.Time
}

// NewRecipeService returns a RecipeService with a 5 MiB image cap and a
// 24h idempotency window.
func NewRecipeService(db *gorm.DB, images media.ImageStore) *RecipeService {
	return &RecipeService{
		DB:             db,
		Images:         images,
		MaxImageBytes:  5 << 20,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

var (
	// errReplayRace marks a lost race on the idempotency record.
	errReplayRace   = errors.New("idempotency key claimed concurrently")
	errNoImageStore = errors.New("no image store configured")
)

// Create validates in, stores its image and writes the recipe with its tags
// and ingredient lines in one transaction. With an IdempotencyKey, a live
// record for the same author returns the recipe created earlier.
func (s *RecipeService) Create(ctx context.Context, in CreateRecipeInput) (view *RecipeView, err error) {
	ctx, span := observability.Tracer("services/RecipeService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(in.AuthorID)),
			attribute.Int("recipe.ingredients", len(in.Ingredients)),
			attribute.Bool("idempotent", in.IdempotencyKey != ""),
		),
	)
	defer span.End()
	defer func() { observeWrite("create", err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Text = strings.TrimSpace(in.Text)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	img, err := s.decodeImage(in.Image)
	if err != nil {
		return nil, err
	}

	if s.Images == nil {
		return nil, errNoImageStore
	}
	ref, err := s.Images.Save(ctx, img)
	if err != nil {
		return nil, err
	}

	var (
		recipeID uint
		replayed bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IdempotencyKey != "" {
			rec, err := repo.GetIdempotency(ctx, tx, in.AuthorID, IdempotencyScopeCreate, in.IdempotencyKey, s.now())
			if err == nil {
				recipeID, replayed = rec.ResourceID, true
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}

		if _, err := repo.GetUser(ctx, tx, in.AuthorID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		tagIDs := uniqueIDs(in.Tags)
		if err := requireTags(ctx, tx, tagIDs); err != nil {
			return err
		}
		lines := toLines(in.Ingredients)
		if err := requireIngredients(ctx, tx, lines); err != nil {
			return err
		}

		r := &domain.Recipe{
			AuthorID:    in.AuthorID,
			Name:        in.Name,
			Image:       ref,
			Text:        in.Text,
			CookingTime: in.CookingTime,
			PubDate:     s.now(),
		}
		if err := repo.CreateRecipe(ctx, tx, r); err != nil {
			return err
		}
		if err := repo.ReplaceRecipeTags(ctx, tx, r.ID, tagIDs); err != nil {
			return err
		}
		if err := repo.ReplaceRecipeLines(ctx, tx, r.ID, lines); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			_, err := repo.CreateIdempotency(ctx, tx, in.AuthorID, IdempotencyScopeCreate, in.IdempotencyKey, r.ID, http.StatusCreated, s.IdempotencyTTL)
			if errors.Is(err, repo.ErrDuplicate) {
				return errReplayRace
			}
			if err != nil {
				return err
			}
		}
		recipeID = r.ID
		return nil
	})

	if errors.Is(err, errReplayRace) {
		rec, gerr := repo.GetIdempotency(ctx, s.DB, in.AuthorID, IdempotencyScopeCreate, in.IdempotencyKey, s.now())
		if gerr != nil {
			err = gerr
		} else {
			recipeID, replayed, err = rec.ResourceID, true, nil
		}
	}
	if err != nil || replayed {
		s.discardImage(ctx, ref)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("recipe.id", int64(recipeID)), attribute.Bool("replayed", replayed))

	return s.Get(ctx, recipeID, User(in.AuthorID))
}

// Update applies in to the recipe. Only the author may update it.
func (s *RecipeService) Update(ctx context.Context, recipeID, requesterID uint, in UpdateRecipeInput) (view *RecipeView, err error) {
	ctx, span := observability.Tracer("services/RecipeService").Start(ctx, "Update",
		trace.WithAttributes(
			attribute.Int64("recipe.id", int64(recipeID)),
			attribute.Int64("user.id", int64(requesterID)),
		),
	)
	defer span.End()
	defer func() { observeWrite("update", err) }()

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		in.Text = &text
	}
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if in.Ingredients != nil && len(in.Ingredients) == 0 {
		return nil, invalid("ingredients", "must contain at least 1 item(s)")
	}

	var img *media.Image
	if in.Image != nil {
		if img, err = s.decodeImage(*in.Image); err != nil {
			return nil, err
		}
	}

	var newRef string
	if img != nil {
		if s.Images == nil {
			return nil, errNoImageStore
		}
		if newRef, err = s.Images.Save(ctx, img); err != nil {
			return nil, err
		}
	}

	var oldImage string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockRecipe(ctx, tx, recipeID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRecipeNotFound
			}
			return err
		}
		current, err := repo.GetRecipe(ctx, tx, recipeID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRecipeNotFound
		}
		if err != nil {
			return err
		}
		if current.AuthorID != requesterID {
			return ErrForbidden
		}
		oldImage = current.Image

		fields := map[string]any{}
		if in.Name != nil {
			fields["name"] = *in.Name
		}
		if in.Text != nil {
			fields["text"] = *in.Text
		}
		if in.CookingTime != nil {
			fields["cooking_time"] = *in.CookingTime
		}
		if newRef != "" {
			fields["image"] = newRef
		}
		if err := repo.UpdateRecipeFields(ctx, tx, recipeID, fields); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRecipeNotFound
			}
			return err
		}

		if in.Tags != nil {
			tagIDs := uniqueIDs(in.Tags)
			if err := requireTags(ctx, tx, tagIDs); err != nil {
				return err
			}
			if err := repo.ReplaceRecipeTags(ctx, tx, recipeID, tagIDs); err != nil {
				return err
			}
		}
		if in.Ingredients != nil {
			lines := toLines(in.Ingredients)
			if err := requireIngredients(ctx, tx, lines); err != nil {
				return err
			}
			if err := repo.ReplaceRecipeLines(ctx, tx, recipeID, lines); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, newRef)
		span.RecordError(err)
		return nil, err
	}
	if newRef != "" {
		s.discardImage(ctx, oldImage)
	}

	return s.Get(ctx, recipeID, User(requesterID))
}

// Delete removes the recipe with its lines, tag links, favorites and cart
// entries. Only the author may delete it.
func (s *RecipeService) Delete(ctx context.Context, recipeID, requesterID uint) (err error) {
	ctx, span := observability.Tracer("services/RecipeService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int64("recipe.id", int64(recipeID)),
			attribute.Int64("user.id", int64(requesterID)),
		),
	)
	defer span.End()
	defer func() { observeWrite("delete", err) }()

	var image string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRecipe(ctx, tx, recipeID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRecipeNotFound
		}
		if err != nil {
			return err
		}
		if r.AuthorID != requesterID {
			return ErrForbidden
		}
		image = r.Image
		if err := repo.DeleteRecipe(ctx, tx, recipeID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRecipeNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.discardImage(ctx, image)
	return nil
}

// Get returns one recipe as seen by v.
func (s *RecipeService) Get(ctx context.Context, recipeID uint, v Viewer) (*RecipeView, error) {
	ctx, span := observability.Tracer("services/RecipeService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("recipe.id", int64(recipeID))),
	)
	defer span.End()

	r, err := repo.GetRecipe(ctx, s.DB, recipeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, []domain.Recipe{*r}, v)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns a page of recipes matching f, newest first, and the total
// number of matches.
func (s *RecipeService) List(ctx context.Context, f RecipeFilter, v Viewer, page, pageSize int) ([]RecipeView, int64, error) {
	ctx, span := observability.Tracer("services/RecipeService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
			attribute.Int("filter.tags", len(f.TagSlugs)),
			attribute.Bool("viewer.authenticated", v.Authenticated),
		),
	)
	defer span.End()

	page, pageSize = normalizePage(page, pageSize)
	scopes := f.Scopes(v)

	total, err := repo.CountRecipes(ctx, s.DB, scopes...)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []RecipeView{}, 0, nil
	}

	recipes, err := repo.ListRecipesPage(ctx, s.DB, (page-1)*pageSize, pageSize, scopes...)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.decorate(ctx, recipes, v)
	return views, total, err
}

// decorate loads lines and viewer flags for recipes in a fixed number of
// queries.
func (s *RecipeService) decorate(ctx context.Context, recipes []domain.Recipe, v Viewer) ([]RecipeView, error) {
	ids := make([]uint, len(recipes))
	authorIDs := make([]uint, 0, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
		authorIDs = append(authorIDs, recipes[i].AuthorID)
	}
	authorIDs = uniqueIDs(authorIDs)

	rows, err := repo.ListRecipeLines(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	lines := make(map[uint][]RecipeLineView, len(recipes))
	for _, row := range rows {
		lines[row.RecipeID] = append(lines[row.RecipeID], RecipeLineView{
			ID:              row.IngredientID,
			Name:            row.Name,
			MeasurementUnit: row.MeasurementUnit,
			Amount:          row.Amount,
		})
	}

	favorited, inCart, subscribed := map[uint]bool{}, map[uint]bool{}, map[uint]bool{}
	if v.Authenticated {
		if favorited, err = repo.RelatedTargets(ctx, s.DB, domain.RelationFavorite, v.UserID, ids); err != nil {
			return nil, err
		}
		if inCart, err = repo.RelatedTargets(ctx, s.DB, domain.RelationCart, v.UserID, ids); err != nil {
			return nil, err
		}
		if subscribed, err = repo.RelatedTargets(ctx, s.DB, domain.RelationSubscription, v.UserID, authorIDs); err != nil {
			return nil, err
		}
	}

	out := make([]RecipeView, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		tags := r.Tags
		if tags == nil {
			tags = []domain.Tag{}
		}
		ls := lines[r.ID]
		if ls == nil {
			ls = []RecipeLineView{}
		}
		out[i] = RecipeView{
			ID:               r.ID,
			Tags:             tags,
			Author:           userView(&r.Author, subscribed[r.AuthorID]),
			Ingredients:      ls,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
			PubDate:          r.PubDate,
		}
	}
	return out, nil
}

func (s *RecipeService) decodeImage(data string) (*media.Image, error) {
	img, err := media.DecodeDataURI(data, s.MaxImageBytes)
	if err != nil {
		return nil, invalid("image", strings.TrimPrefix(err.Error(), media.ErrInvalidImage.Error()+": "))
	}
	return img, nil
}

// discardImage removes a stored image that is no longer referenced.
func (s *RecipeService) discardImage(ctx context.Context, ref string) {
	if ref == "" || s.Images == nil {
		return
	}
	if err := s.Images.Delete(context.WithoutCancel(ctx), ref); err != nil {
		log.Warn().Err(err).Str("image", ref).Msg("failed to remove stored image")
	}
}

func (s *RecipeService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// requireTags fails with ErrTagNotFound unless every id exists.
func requireTags(ctx context.Context, db *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	tags, err := repo.FindTags(ctx, db, ids)
	if err != nil {
		return err
	}
	if len(tags) != len(ids) {
		return ErrTagNotFound
	}
	return nil
}

// requireIngredients fails with ErrIngredientNotFound unless every
// referenced ingredient exists.
func requireIngredients(ctx context.Context, db *gorm.DB, lines []domain.RecipeIngredient) error {
	ids := make([]uint, len(lines))
	for i := range lines {
		ids[i] = lines[i].IngredientID
	}
	ids = uniqueIDs(ids)
	n, err := repo.CountIngredients(ctx, db, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrIngredientNotFound
	}
	return nil
}

func toLines(in []IngredientLineInput) []domain.RecipeIngredient {
	out := make([]domain.RecipeIngredient, len(in))
	for i, l := range in {
		out[i] = domain.RecipeIngredient{IngredientID: l.ID, Amount: l.Amount}
	}
	return out
}

// uniqueIDs drops duplicates, keeping first-seen order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func observeWrite(op string, err error) {
	observability.RecipeWrites.WithLabelValues(op, outcome(err)).Inc()
}
