package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	pkgerrors "github.com/pkg/errors"
)

type natsRepository struct {
	bucket string
	store  nats.ObjectStore
	// JetStream object stores have no conditional put; this serializes
	// check-then-put within one process.
	putMu sync.Mutex
}

// NewNatsRepository binds to (creating if needed) a JetStream object store bucket.
func NewNatsRepository(js nats.JetStreamContext, bucketName string) (artifacts.Repository, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Dubbing pipeline artifacts (%s)", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
		store, err = js.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucketName, err)
		}
	}
	return &natsRepository{bucket: bucketName, store: store}, nil
}

func objectName(loc models.Locator) string {
	if loc.Bucket == "" {
		return loc.Key
	}
	return loc.Bucket + "/" + loc.Key
}

func (n *natsRepository) PutObject(ctx context.Context, loc models.Locator, data []byte, contentType string, ifAbsent bool) error {
	name := objectName(loc)
	if ifAbsent {
		n.putMu.Lock()
		defer n.putMu.Unlock()
		if _, err := n.store.GetInfo(name, nats.Context(ctx)); err == nil {
			return apperrors.Classifyf(apperrors.ErrConflict, "object %s exists in %s", name, n.bucket)
		} else if !errors.Is(err, nats.ErrObjectNotFound) {
			return pkgerrors.Wrapf(apperrors.Classify(apperrors.ErrAdapterUnavailable, err), "nats stat %s", name)
		}
	}

	headers := nats.Header{}
	headers.Set("Content-Type", contentType)
	_, err := n.store.Put(&nats.ObjectMeta{Name: name, Headers: headers}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return pkgerrors.Wrapf(apperrors.Classify(apperrors.ErrAdapterUnavailable, err), "nats put %s", name)
	}
	return nil
}

func (n *natsRepository) GetObject(ctx context.Context, loc models.Locator) ([]byte, error) {
	name := objectName(loc)
	data, err := n.store.GetBytes(name, nats.Context(ctx))
	if err != nil {
		return nil, pkgerrors.Wrapf(classifyNatsError(err), "nats get %s", name)
	}
	return data, nil
}

func (n *natsRepository) HeadObject(ctx context.Context, loc models.Locator) (*models.ObjectInfo, error) {
	name := objectName(loc)
	info, err := n.store.GetInfo(name, nats.Context(ctx))
	if err != nil {
		return nil, pkgerrors.Wrapf(classifyNatsError(err), "nats stat %s", name)
	}
	return &models.ObjectInfo{
		ETag:        strings.TrimPrefix(info.Digest, "SHA-256="),
		Size:        int64(info.Size),
		ContentType: info.Headers.Get("Content-Type"),
		Metadata:    info.Metadata,
	}, nil
}

func classifyNatsError(err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) {
		return apperrors.Classify(apperrors.ErrNotFound, err)
	}
	return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
}
