package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shashiranjanraj/foodie/config"
)

// Image keys embed a timestamp and a random suffix, so an object never
// changes once written.
const immutable = "public, max-age=31536000, immutable"

type S3Config struct {
	Bucket string
	Region string
	// Key and Secret are optional on AWS, where the default credential
	// chain applies, and required for MinIO and R2.
	Key    string
	Secret string
	// Endpoint switches to path-style addressing against a non-AWS host.
	Endpoint string
	// PublicURL is the CDN or bucket origin images are linked from.
	PublicURL string
}

func S3ConfigFromEnv() S3Config {
	return S3Config{
		Bucket:    config.StorageS3Bucket(),
		Region:    config.StorageS3Region(),
		Key:       config.StorageS3Key(),
		Secret:    config.StorageS3Secret(),
		Endpoint:  config.StorageS3Endpoint(),
		PublicURL: config.StorageS3URL(),
	}
}

type S3Disk struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Disk(ctx context.Context, c S3Config) (*S3Disk, error) {
	if c.Bucket == "" {
		return nil, errors.New("storage/s3: S3_BUCKET is not set")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.Key != "" && c.Secret != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.Key, c.Secret, "")))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage/s3: aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	public := c.PublicURL
	switch {
	case public != "":
	case c.Endpoint != "":
		public = joinURL(c.Endpoint, c.Bucket)
	default:
		public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
	return &S3Disk{client: client, bucket: c.Bucket, publicURL: public}, nil
}

func (d *S3Disk) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	// Signing needs a seekable body. Uploads are size-capped before they
	// get here.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("storage/s3: read %s: %w", key, err)
		}
		body = bytes.NewReader(data)
	}

	in := &s3.PutObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(key),
		Body:         body,
		CacheControl: aws.String(immutable),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("storage/s3: put %s: %w", key, err)
	}
	return nil
}

// Delete is idempotent: S3 answers 204 for a missing key, and a NoSuchKey
// from stricter implementations is swallowed too.
func (d *S3Disk) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if err != nil && !errors.As(err, &missing) {
		return fmt.Errorf("storage/s3: delete %s: %w", key, err)
	}
	return nil
}

func (d *S3Disk) URL(key string) string { return joinURL(d.publicURL, key) }
