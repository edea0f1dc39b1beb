// Package services defines the business logic of the recipe backend: the
// relation manager, the ingredient aggregator behind the shopping list, recipe
// composition and the recipe query/filter layer. This file centralizes the
// service-level error values so they can be returned consistently and mapped
// to HTTP results by the handlers.
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Not-found errors.
var (
	// ErrRecipeNotFound indicates that the requested recipe does not exist.
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrUserNotFound indicates that the requested user (author) does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrTagNotFound is returned when a tag id is unknown, either on lookup
	// or when referenced from recipe input.
	ErrTagNotFound = errors.New("tag not found")

	// ErrIngredientNotFound is returned when an ingredient id is unknown.
	ErrIngredientNotFound = errors.New("ingredient not found")
)

// Conflict errors. Relation conflicts reach callers wrapped in *RelationError.
var (
	// ErrAlreadyRelated is returned when the (user, target) pair already exists.
	ErrAlreadyRelated = errors.New("already related")

	// ErrNotRelated is returned when removing a pair that does not exist.
	ErrNotRelated = errors.New("not related")

	// ErrSelfSubscription is returned when a user tries to follow themself.
	ErrSelfSubscription = errors.New("cannot subscribe to yourself")
)

// ErrForbidden is returned when the requester is not the recipe's author.
var ErrForbidden = errors.New("only the author may modify this recipe")

// RelationError carries the relation kind alongside a conflict sentinel so
// the message can name the collection involved.
type RelationError struct {
	Kind domain.RelationKind
	Err  error
}

func (e *RelationError) Error() string {
	noun := e.Kind.TargetNoun()
	switch {
	case errors.Is(e.Err, ErrSelfSubscription):
		return ErrSelfSubscription.Error()
	case errors.Is(e.Err, ErrAlreadyRelated):
		return fmt.Sprintf("%s is already in %s", noun, e.Kind.Label())
	case errors.Is(e.Err, ErrNotRelated):
		return fmt.Sprintf("%s is not in %s", noun, e.Kind.Label())
	}
	return fmt.Sprintf("%s: %v", e.Kind.Label(), e.Err)
}

func (e *RelationError) Unwrap() error { return e.Err }

// ValidationError reports field-level input problems. Fields maps a JSON
// field path (e.g. "ingredients[1].amount") to a human-readable reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// invalid builds a single-field ValidationError.
func invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}
