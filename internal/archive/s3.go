package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// S3 writes versions to an S3-compatible bucket (AWS S3 or MinIO).
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, optFns ...func(*config.LoadOptions) error) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, optFns...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3) Driver() string { return DriverS3 }

// Put uploads the version document.
func (a *S3) Put(ctx context.Context, v *core.TemplateVersion) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	key := path.Join(a.prefix, Key(v))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"template-id":    v.TemplateID,
			"version-number": fmt.Sprint(v.VersionNumber),
		},
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}
