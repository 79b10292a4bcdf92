// Package storage downloads résumé documents from S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const defaultRegion = "auto"

var (
	// ErrNotFound is returned when the object key does not exist. It is not
	// worth retrying.
	ErrNotFound = errors.New("object not found")
	// ErrTooLarge is returned when the object exceeds Config.MaxObjectBytes.
	ErrTooLarge = errors.New("object too large")
)

type Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	// UsePathStyle is needed by most self-hosted S3 implementations.
	UsePathStyle bool `mapstructure:"use-path-style"`
	// MaxObjectBytes caps a single download. Zero means unlimited.
	MaxObjectBytes int64 `mapstructure:"max-object-bytes"`

	// Static keys are optional, the default credential chain is used
	// when they are empty.
	AccessKey string `mapstructure:"-"`
	SecretKey string `mapstructure:"-"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("storage bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("storage access key and secret key must be set together")
	}
	if c.MaxObjectBytes < 0 {
		return fmt.Errorf("storage max object bytes must not be negative, got %d", c.MaxObjectBytes)
	}
	return nil
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Client struct {
	api      objectGetter
	bucket   string
	maxBytes int64
	logger   *zap.Logger
}

// New builds an S3 client from the default AWS config chain, overridden by
// whatever cfg sets.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newClient(api, cfg, logger), nil
}

func newClient(api objectGetter, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:      api,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxObjectBytes,
		logger:   logger,
	}
}

// Download returns the full object body for key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("object key is required")
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s/%s: %w", c.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting object %s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	if c.maxBytes > 0 && out.ContentLength != nil && *out.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%s/%s is %d bytes: %w", c.bucket, key, *out.ContentLength, ErrTooLarge)
	}

	var body io.Reader = out.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(out.Body, c.maxBytes+1)
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, body); err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", c.bucket, key, err)
	}
	if c.maxBytes > 0 && int64(buf.Len()) > c.maxBytes {
		return nil, fmt.Errorf("%s/%s: %w", c.bucket, key, ErrTooLarge)
	}

	c.logger.Debug("object downloaded",
		zap.String("bucket", c.bucket),
		zap.String("key", key),
		zap.Int("bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}
