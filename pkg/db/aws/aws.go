package aws

import (
	"context"
	"errors"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/translate"
)

type AIClients struct {
	Transcribe *transcribe.Client
	Translate  *translate.Client
	Polly      *polly.Client
}

func loadConfig(ctx context.Context, region, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.New("failed to load configuration, " + err.Error())
	}
	return cfg, nil
}

// NewS3Client builds the storage client. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewS3Client(c *config.Config) (*s3.Client, error) {
	cfg, err := loadConfig(context.Background(), c.S3.Region, c.S3.AccessKey, c.S3.SecretKey)
	if err != nil {
		return nil, err
	}
	endpoint := c.S3.Endpoint
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = &endpoint
		}
	}), nil
}

func NewAIClients(c *config.Config) (*AIClients, error) {
	region := c.AWS.Region
	if region == "" {
		region = c.S3.Region
	}
	cfg, err := loadConfig(context.Background(), region, c.AWS.AccessKey, c.AWS.SecretKey)
	if err != nil {
		return nil, err
	}
	return &AIClients{
		Transcribe: transcribe.NewFromConfig(cfg),
		Translate:  translate.NewFromConfig(cfg),
		Polly:      polly.NewFromConfig(cfg),
	}, nil
}
