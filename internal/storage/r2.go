// Package storage uploads generated media to an S3-compatible bucket
// (Cloudflare R2 in production) and returns public URLs for it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	appconfig "github.com/naman7474/vak-social-media/internal/config"
)

// Client stores media objects and maps them to public URLs. In dry-run mode
// no network calls are made and URLs are fabricated from the public base.
type Client struct {
	s3            *s3.Client
	bucket        string
	publicBaseURL string
	endpoint      string
	dryRun        bool
}

// New builds a storage client from settings. The S3 client is only
// constructed outside dry-run mode.
func New(ctx context.Context, settings *appconfig.Settings) (*Client, error) {
	c := &Client{
		bucket:        settings.StorageBucket,
		publicBaseURL: settings.StoragePublicBaseURL,
		endpoint:      strings.TrimRight(settings.StorageEndpointURL, "/"),
		dryRun:        settings.DryRun,
	}
	if c.dryRun {
		return c, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.StorageAccessKeyID, settings.StorageSecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading storage credentials: %w", err)
	}

	c.s3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
		o.UsePathStyle = true
	})
	return c, nil
}

// UploadBytes stores data under key and returns the public URL. An empty key
// gets a generated one under the "generated/" prefix.
func (c *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	safeKey := strings.Trim(key, "/")
	if safeKey == "" {
		safeKey = fmt.Sprintf("generated/%s.jpg", strings.ReplaceAll(uuid.NewString(), "-", ""))
	}

	if c.dryRun {
		base := c.publicBaseURL
		if base == "" {
			base = "https://example.com"
		}
		return base + "/" + safeKey, nil
	}

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &safeKey,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", safeKey, err)
	}

	log.Debug().Str("key", safeKey).Int("bytes", len(data)).Msg("Uploaded object")

	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + safeKey, nil
	}
	return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, safeKey), nil
}

// DeleteByURL removes the object a public URL points at. Unknown or empty
// URLs are ignored.
func (c *Client) DeleteByURL(ctx context.Context, rawURL string) error {
	if c.dryRun || rawURL == "" {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing object URL %q: %w", rawURL, err)
	}
	key := strings.Trim(parsed.Path, "/")
	if c.bucket != "" && strings.HasPrefix(key, c.bucket+"/") {
		key = strings.TrimPrefix(key, c.bucket+"/")
	}
	if key == "" {
		return nil
	}

	_, err = c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	log.Debug().Str("key", key).Msg("Deleted object")
	return nil
}
