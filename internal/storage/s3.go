package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxImageSize bounds uploaded image files (5 MB, matching the client)
const MaxImageSize = 5 * 1024 * 1024

// S3Uploader handles image uploads to AWS S3
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// UploadResult contains the result of an S3 upload
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Size   int64  `json:"size"`
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Uploader{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// UploadImage uploads a post image or avatar. kind is "posts" or "avatars"
// and becomes the top folder of the key:
// {kind}/{year}/{month}/{userID}/{fileID}{ext}
func (u *S3Uploader) UploadImage(ctx context.Context, imageData []byte, userID, originalFilename, kind string) (*UploadResult, error) {
	if len(imageData) > MaxImageSize {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}

	extension := strings.ToLower(filepath.Ext(originalFilename))
	contentType := imageContentType(extension)
	if contentType == "" {
		return nil, fmt.Errorf("unsupported image type %q", extension)
	}

	fileID := uuid.New().String()
	now := time.Now()
	key := fmt.Sprintf("%s/%d/%02d/%s/%s%s",
		kind, now.Year(), now.Month(), userID, fileID, extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(imageData),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=86400"),
		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": originalFilename,
			"upload-timestamp":  now.Format(time.RFC3339),
		},
	}

	if _, err := u.client.PutObject(ctx, putObjectInput); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key)

	return &UploadResult{
		Key:    key,
		URL:    publicURL,
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(imageData)),
	}, nil
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckBucketAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}
	return nil
}

// imageContentType maps allowed image extensions to MIME types.
// Returns "" for anything that is not an accepted image format.
func imageContentType(extension string) string {
	switch extension {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
