package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultLinkTTL = 15 * time.Minute

type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Bucket stores export files in a single S3 bucket.
type Bucket struct {
	api            objectAPI
	presignBase    *s3.Client
	name           string
	publicEndpoint string
}

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnv("AWS_REGION")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

func NewBucket(client *s3.Client, name string, publicEndpoint string) *Bucket {
	return &Bucket{
		api:            client,
		presignBase:    client,
		name:           name,
		publicEndpoint: publicEndpoint,
	}
}

// NewBucketFromEnv reads AWS_BUCKET and AWS_PUBLIC_ENDPOINT.
func NewBucketFromEnv(ctx context.Context) (*Bucket, error) {
	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	return NewBucket(client, util.GetEnv("AWS_BUCKET"), util.GetEnv("AWS_PUBLIC_ENDPOINT")), nil
}

// InterviewPrefix is the key prefix of every object belonging to an
// interview.
func InterviewPrefix(interviewID string) string {
	return "interviews/" + interviewID + "/"
}

// ExportKey is the object key of an export file.
func ExportKey(interviewID, exportID, ext string) string {
	return fmt.Sprintf("%sexports/%s.%s", InterviewPrefix(interviewID), exportID, ext)
}

func (b *Bucket) GetFile(ctx context.Context, key string) ([]byte, error) {
	result, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Bucket) PutFile(ctx context.Context, key string, contentType string, body []byte) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

func (b *Bucket) DeleteFile(ctx context.Context, key string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// GenerateDownloadLink presigns a GET against the public endpoint so the
// signature matches the Host header browsers will send. A path prefix on the
// public endpoint is kept in front of the signed path.
func (b *Bucket) GenerateDownloadLink(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.presignBase == nil {
		return "", errors.New("bucket has no s3 client for presigning")
	}
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}

	publicURL, err := url.Parse(b.publicEndpoint)
	if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
		return "", fmt.Errorf("invalid public endpoint: %q", b.publicEndpoint)
	}
	prefix := strings.TrimSuffix(publicURL.Path, "/")

	base := b.presignBase.Options()
	presignClient := s3.NewFromConfig(
		aws.Config{
			Region:      base.Region,
			Credentials: base.Credentials,
			HTTPClient:  base.HTTPClient,
		},
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(publicURL.Scheme + "://" + publicURL.Host)
			o.UsePathStyle = true
		},
	)

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(b.name),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix == "" {
		return out.URL, nil
	}
	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}
