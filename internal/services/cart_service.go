// Package services – CartService
//
// This file implements the ingredient aggregator behind the shopping-list
// download. Every ingredient line of every recipe in a user's cart is merged
// by (ingredient name, measurement unit); the resulting document is sorted by
// name, then unit, so the output is deterministic.
package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// CartItem is one aggregated shopping-list line.
type CartItem struct {
	Name   string
	Unit   string
	Amount int
}

// CartDocument is the consolidated shopping list of one user.
type CartDocument struct {
	Username string
	Items    []CartItem

	// Recipes is the number of recipes in the cart; NewestAdded is when the
	// latest one was added, nil for an empty cart.
	Recipes     int64
	NewestAdded *time.Time
}

// Header returns the first line of the document.
func (d *CartDocument) Header() string {
	return "Shopping list for " + d.Username
}

// Text renders the document: a header line followed by one
// "{name} ({unit}) - {amount}" line per item, newline terminated.
func (d *CartDocument) Text() string {
	var b strings.Builder
	b.WriteString(d.Header())
	b.WriteByte('\n')
	for _, it := range d.Items {
		b.WriteString(it.Name)
		b.WriteString(" (")
		b.WriteString(it.Unit)
		b.WriteString(") - ")
		b.WriteString(strconv.Itoa(it.Amount))
		b.WriteByte('\n')
	}
	return b.String()
}

// CartService builds shopping-list documents.
type CartService struct {
	DB *gorm.DB
}

// NewCartService returns a CartService.
func NewCartService(db *gorm.DB) *CartService { return &CartService{DB: db} }

// BuildCartDocument aggregates the ingredients of every recipe in userID's
// cart. An empty cart yields a document with no items.
func (s *CartService) BuildCartDocument(ctx context.Context, userID uint) (*CartDocument, error) {
	ctx, span := observability.Tracer("services/CartService").Start(ctx, "BuildCartDocument",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	doc := &CartDocument{Username: u.Username, Items: []CartItem{}}
	doc.Recipes, doc.NewestAdded, err = repo.CartStats(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if doc.Recipes > 0 {
		lines, err := repo.ListCartLines(ctx, s.DB, userID)
		if err != nil {
			return nil, err
		}
		doc.Items = AggregateIngredients(lines)
	}
	span.SetAttributes(attribute.Int("cart.items", len(doc.Items)))
	observability.CartDocuments.Inc()
	return doc, nil
}

// AggregateIngredients sums amounts per (name, unit) and returns the totals
// sorted by name, then unit. The same name with different units stays
// separate.
func AggregateIngredients(lines []repo.CartLine) []CartItem {
	type key struct{ name, unit string }
	totals := make(map[key]int, len(lines))
	for _, l := range lines {
		totals[key{l.Name, l.Unit}] += l.Amount
	}

	out := make([]CartItem, 0, len(totals))
	for k, amount := range totals {
		out = append(out, CartItem{Name: k.name, Unit: k.unit, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}
