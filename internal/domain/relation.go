package domain

// RelationKind enumerates the user-to-entity relations: favorites and
// shopping-cart entries point at recipes, subscriptions point at authors.
type RelationKind int

const (
	RelationFavorite RelationKind = iota + 1
	RelationCart
	RelationSubscription
)

// Valid reports whether k is one of the declared kinds.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationFavorite, RelationCart, RelationSubscription:
		return true
	}
	return false
}

// String returns a stable machine name, used for metric labels and logs.
func (k RelationKind) String() string {
	switch k {
	case RelationFavorite:
		return "favorite"
	case RelationCart:
		return "shopping_cart"
	case RelationSubscription:
		return "subscription"
	}
	return "unknown"
}

// Label is the human-readable collection name used in conflict messages.
func (k RelationKind) Label() string {
	switch k {
	case RelationFavorite:
		return "favorites"
	case RelationCart:
		return "shopping cart"
	case RelationSubscription:
		return "subscriptions"
	}
	return "relations"
}

// TargetsUser reports whether the relation target is a user (author) rather
// than a recipe.
func (k RelationKind) TargetsUser() bool { return k == RelationSubscription }

// TargetNoun names the target entity ("recipe" or "author").
func (k RelationKind) TargetNoun() string {
	if k.TargetsUser() {
		return "author"
	}
	return "recipe"
}
