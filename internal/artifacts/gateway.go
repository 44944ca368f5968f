package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
)

// Gateway is a write-once view over a Repository.
type Gateway struct {
	repo   Repository
	logger logger.Logger
}

func NewGateway(repo Repository, log logger.Logger) *Gateway {
	return &Gateway{repo: repo, logger: log}
}

// Put writes data at loc once. Rewriting identical bytes is a no-op; different
// bytes fail with apperrors.ErrArtifactConflict and leave the stored object untouched.
func (g *Gateway) Put(ctx context.Context, loc models.Locator, data []byte, contentType string) error {
	err := g.repo.PutObject(ctx, loc, data, contentType, true)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return fmt.Errorf("failed to put %s: %w", loc, err)
	}

	existing, err := g.repo.GetObject(ctx, loc)
	if err != nil {
		return fmt.Errorf("failed to read existing %s: %w", loc, err)
	}
	if bytes.Equal(existing, data) {
		g.logger.Debugf("Put - %s already holds identical content", loc)
		return nil
	}
	return apperrors.Classifyf(apperrors.ErrArtifactConflict, "%s", loc)
}

func (g *Gateway) Get(ctx context.Context, loc models.Locator) ([]byte, error) {
	data, err := g.repo.GetObject(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", loc, err)
	}
	return data, nil
}

func (g *Gateway) Exists(ctx context.Context, loc models.Locator) (bool, error) {
	_, err := g.repo.HeadObject(ctx, loc)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", loc, err)
}

func (g *Gateway) Head(ctx context.Context, loc models.Locator) (*models.ObjectInfo, error) {
	info, err := g.repo.HeadObject(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", loc, err)
	}
	return info, nil
}
