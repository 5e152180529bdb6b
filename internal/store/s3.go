package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Backend is a store backed by Amazon S3 or a compatible service.
// Publishers write with credentials; agents usually read from a bucket that
// allows public or role-based reads.
type S3Backend struct {
	client *s3.S3
	bucket string
	prefix string
}

// S3Options carries the connection parameters for an S3 store.
type S3Options struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// Prefix is the object key prefix, typically the project path.
	Prefix string
	// Region is the AWS region.
	Region string
	// Endpoint overrides the S3 endpoint for compatible services (MinIO etc.).
	Endpoint string
	// AccessKey and SecretKey are optional static credentials.
	// When absent the SDK's default credential chain applies.
	AccessKey string
	SecretKey string
}

// NewS3Backend creates an S3 store from the provided options.
func NewS3Backend(opts *S3Options) (*S3Backend, error) {
	cfg := aws.Config{
		Region: aws.String(opts.Region),
	}

	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		// Path-style addressing keeps MinIO and similar endpoints working.
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}

	return &S3Backend{
		client: s3.New(sess),
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// Fetch retrieves an object from S3.
// Returns ErrObjectNotFound when the key does not exist.
func (b *S3Backend) Fetch(ctx context.Context, object string) ([]byte, error) {
	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(object)),
	})
	if err != nil {
		if strings.Contains(err.Error(), s3.ErrCodeNoSuchKey) || strings.Contains(err.Error(), "404") {
			return nil, fmt.Errorf("%s: %w", object, ErrObjectNotFound)
		}

		return nil, fmt.Errorf("get object %s from S3: %w", object, err)
	}

	defer func() {
		_ = result.Body.Close()
	}()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s body: %w", object, err)
	}

	return data, nil
}

// Store uploads an object to S3, replacing any previous content.
// S3 PUTs are atomic per object: readers see the old or the new version.
func (b *S3Backend) Store(ctx context.Context, object string, data []byte) error {
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(object)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put object %s to S3: %w", object, err)
	}

	return nil
}

// Name returns a short identifier for logging.
func (b *S3Backend) Name() string {
	return "s3:" + b.bucket
}

// objectKey composes the full S3 key for an object name.
func (b *S3Backend) objectKey(object string) string {
	if b.prefix == "" {
		return object
	}

	return path.Join(b.prefix, object)
}
