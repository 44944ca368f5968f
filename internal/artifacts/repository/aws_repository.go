package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"
)

type awsRepository struct {
	client        *s3.Client
	defaultBucket string
}

func NewAwsRepository(awsClient *s3.Client, defaultBucket string) artifacts.Repository {
	return &awsRepository{
		client:        awsClient,
		defaultBucket: defaultBucket,
	}
}

func (a *awsRepository) bucket(loc models.Locator) string {
	if loc.Bucket != "" {
		return loc.Bucket
	}
	return a.defaultBucket
}

func (a *awsRepository) PutObject(ctx context.Context, loc models.Locator, data []byte, contentType string, ifAbsent bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket(loc)),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return pkgerrors.Wrapf(classifyS3Error(err), "s3 put %s", loc.Key)
	}
	return nil
}

func (a *awsRepository) GetObject(ctx context.Context, loc models.Locator) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket(loc)),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(classifyS3Error(err), "s3 get %s", loc.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(apperrors.Classify(apperrors.ErrAdapterUnavailable, err), "s3 read %s", loc.Key)
	}
	return data, nil
}

func (a *awsRepository) HeadObject(ctx context.Context, loc models.Locator) (*models.ObjectInfo, error) {
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket(loc)),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(classifyS3Error(err), "s3 head %s", loc.Key)
	}
	return &models.ObjectInfo{
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		VersionID:   aws.ToString(out.VersionId),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}, nil
}

func classifyS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return apperrors.Classify(apperrors.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return apperrors.Classify(apperrors.ErrNotFound, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return apperrors.Classify(apperrors.ErrConflict, err)
		case "SlowDown", "ThrottlingException", "RequestLimitExceeded":
			return apperrors.Classify(apperrors.ErrThrottled, err)
		}
	}
	return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
}
