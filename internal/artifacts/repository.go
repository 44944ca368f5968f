package artifacts

import (
	"context"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
)

// Repository is an object store backend. PutObject with ifAbsent set must fail with
// apperrors.ErrConflict when the key is taken; missing keys yield apperrors.ErrNotFound.
type Repository interface {
	PutObject(ctx context.Context, loc models.Locator, data []byte, contentType string, ifAbsent bool) error
	GetObject(ctx context.Context, loc models.Locator) ([]byte, error)
	HeadObject(ctx context.Context, loc models.Locator) (*models.ObjectInfo, error)
}
