package media

import (
	"context"

	"github.com/google/uuid"
)

// ImageStore persists image bytes and returns a reference (a public URL)
// that is stored on the recipe.
type ImageStore interface {
	Save(ctx context.Context, img *Image) (string, error)
	Delete(ctx context.Context, ref string) error
}

// objectKey returns a fresh, collision-free key for img.
func objectKey(img *Image) string {
	return "recipes/images/" + uuid.NewString() + "." + img.Ext
}
