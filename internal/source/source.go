// Package source turns a configured media source into something a backend can play.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultExpiry = time.Hour

var (
	ErrNoStorage     = errors.New("s3 source given but no storage is configured")
	ErrInvalidSource = errors.New("invalid media source")
)

// Config describes the object store holding sendrec recordings.
type Config struct {
	Endpoint       string
	PublicEndpoint string // Used for presigned URLs; falls back to Endpoint if empty
	AccessKey      string
	SecretKey      string
	Region         string
	Expiry         time.Duration
	// VerifyObjects makes Resolve check the object exists before presigning.
	VerifyObjects bool
}

// Resolver presigns s3:// sources and passes everything else through.
type Resolver struct {
	client    *s3.Client
	presigner *s3.PresignClient
	expiry    time.Duration
	verify    bool
}

func New(ctx context.Context, cfg Config) (*Resolver, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = defaultExpiry
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	presignEndpoint := cfg.Endpoint
	if cfg.PublicEndpoint != "" {
		presignEndpoint = cfg.PublicEndpoint
	}
	presignClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if presignEndpoint != "" {
			o.BaseEndpoint = aws.String(presignEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Resolver{
		client:    client,
		presigner: s3.NewPresignClient(presignClient),
		expiry:    cfg.Expiry,
		verify:    cfg.VerifyObjects,
	}, nil
}

// ParseS3URL splits s3://bucket/key. ok is false for any other form.
func ParseS3URL(src string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(src, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolve returns a playable location for src. http(s) URLs and local paths
// are returned unchanged; s3://bucket/key is presigned. A nil Resolver still
// passes non-s3 sources through.
func (r *Resolver) Resolve(ctx context.Context, src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSource)
	}
	if !strings.HasPrefix(src, "s3://") {
		if u, err := url.Parse(src); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
			switch u.Scheme {
			case "http", "https", "file":
			default:
				return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
			}
		}
		return src, nil
	}

	bucket, key, ok := ParseS3URL(src)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, src)
	}
	if r == nil {
		return "", ErrNoStorage
	}

	if r.verify {
		if _, _, err := r.HeadObject(ctx, bucket, key); err != nil {
			return "", err
		}
	}
	return r.GenerateDownloadURL(ctx, bucket, key, r.expiry)
}

func (r *Resolver) GenerateDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}

	return req.URL, nil
}

func (r *Resolver) HeadObject(ctx context.Context, bucket, key string) (int64, string, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, "", fmt.Errorf("head object: %w", err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	ct := ""
	if out.ContentType != nil {
		ct = *out.ContentType
	}
	return size, ct, nil
}
