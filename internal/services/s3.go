package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Location identifies a durably stored template document. The URL is only
// built from a confirmed upload; locations are never precomputed.
type Location struct {
	Bucket string
	Key    string
	URL    string
}

// TemplateStore uploads template documents to the project artifacts bucket.
type TemplateStore struct {
	client *s3.Client
}

// NewTemplateStore creates a TemplateStore over the given client.
func NewTemplateStore(client *s3.Client) *TemplateStore {
	return &TemplateStore{client: client}
}

// Upload stores a template body under a fresh key and confirms the object is
// durable before returning its location. The key is assigned at upload time;
// callers must not guess it in advance.
func (t *TemplateStore) Upload(ctx context.Context, bucket string, body []byte) (Location, error) {
	key := fmt.Sprintf("templates/%s", ksuid.New())

	zerolog.Ctx(ctx).Debug().Str("bucket", bucket).Str("key", key).Msg("Uploading template")

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return Location{}, fmt.Errorf("failed to upload template to s3://%s/%s: %w", bucket, key, err)
	}

	// Confirm durability; the location is only handed out once the object
	// is readable.
	if _, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return Location{}, fmt.Errorf("failed to confirm template upload s3://%s/%s: %w", bucket, key, err)
	}

	region := t.client.Options().Region
	return Location{
		Bucket: bucket,
		Key:    key,
		URL:    fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key),
	}, nil
}
