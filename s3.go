package centerline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client wraps artifact uploads to an S3-compatible store (R2, Wasabi,
// MinIO). A nil *S3Client is valid everywhere and means "uploads disabled".
type S3Client struct {
	client     *s3.Client
	bucket     string
	bucketPath string
	uploader   *manager.Uploader
}

// UploadResult records one artifact pushed to object storage.
type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

// NewS3Client creates a new client for the configured endpoint.
func NewS3Client(cfg S3Config) (*S3Client, error) {
	logger := slog.With("endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	logger.Info("initializing S3 client")

	// Custom resolver so non-AWS endpoints work
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &smithy.GenericAPIError{Code: "UnknownEndpoint"}
	})

	httpClient := &http.Client{Timeout: 2 * time.Minute}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithHTTPClient(httpClient),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(s3Client)

	logger.Info("S3 client initialized successfully")

	return &S3Client{
		client:     s3Client,
		bucket:     cfg.Bucket,
		bucketPath: cfg.BucketPath,
		uploader:   uploader,
	}, nil
}

// ArtifactKey returns the object key for one job artifact.
func (s *S3Client) ArtifactKey(jobID, filename string) string {
	return path.Join(s.bucketPath, "jobs", jobID, filename)
}

// UploadArtifact pushes one rendered artifact under the given key.
func (s *S3Client) UploadArtifact(ctx context.Context, key string, artifact Artifact) (*UploadResult, error) {
	logger := slog.With("key", key, "size_bytes", len(artifact.Data))
	logger.Debug("uploading artifact")

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(artifact.Data),
		ContentType: aws.String(artifact.ContentType),
	})
	if err != nil {
		logger.Error("upload failed", "error", err)
		return nil, fmt.Errorf("failed to upload artifact %s: %w", artifact.Name, err)
	}

	logger.Debug("artifact uploaded", "location", result.Location)
	return &UploadResult{Key: key, Location: result.Location}, nil
}
