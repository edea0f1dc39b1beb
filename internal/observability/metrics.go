package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Label values are bounded: kind is a RelationKind name,
// op is a fixed verb and result one of ok|conflict|not_found|invalid|forbidden|error.
var (
	// RelationOps counts favorite/cart/subscription mutations.
	RelationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_relations_total",
			Help: "Relation create/delete operations by kind and outcome.",
		},
		[]string{"kind", "op", "result"},
	)

	// CartDocuments counts generated shopping lists.
	CartDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_cart_documents_total",
			Help: "Shopping-list documents generated.",
		},
	)

	// RecipeWrites counts recipe create/update/delete calls by outcome.
	RecipeWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_writes_total",
			Help: "Recipe composition writes by operation and outcome.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(RelationOps, CartDocuments, RecipeWrites)
}
