// Package publish uploads a finished index release to S3-compatible object
// storage.
package publish

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/logger"
)

const defaultConcurrency = 4

// ObjectPutter is the part of the S3 client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target is a bucket and key prefix.
type Target struct {
	Bucket string
	Prefix string
}

// ParseTarget parses an s3://bucket/prefix URL.
func ParseTarget(raw string) (Target, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid publish target %q: %w", raw, err)
	}
	if parsed.Scheme != "s3" || parsed.Host == "" {
		return Target{}, fmt.Errorf("invalid publish target %q: expected s3://bucket/prefix", raw)
	}
	return Target{
		Bucket: parsed.Host,
		Prefix: strings.Trim(parsed.Path, "/"),
	}, nil
}

// Key returns the object key for a local file.
func (target Target) Key(localPath string) string {
	name := filepath.Base(localPath)
	if target.Prefix == "" {
		return name
	}
	return path.Join(target.Prefix, name)
}

// URL returns the s3:// URL of a key.
func (target Target) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", target.Bucket, key)
}

// NewS3Client creates a client from AWS_REGION, AWS_ENDPOINT,
// AWS_ACCESS_KEY and AWS_SECRET_KEY. Path-style addressing keeps
// self-hosted endpoints working.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.GetEnv("AWS_REGION")),
	}
	if endpoint := config.GetEnv("AWS_ENDPOINT"); endpoint != "" {
		options = append(options, awsconfig.WithBaseEndpoint(endpoint))
	}
	accessKey := config.GetEnv("AWS_ACCESS_KEY")
	secretKey := config.GetEnv("AWS_SECRET_KEY")
	if accessKey != "" && secretKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// Publisher uploads files to one target.
type Publisher struct {
	client      ObjectPutter
	target      Target
	concurrency int
}

// NewPublisher creates a publisher.
func NewPublisher(client ObjectPutter, target Target) *Publisher {
	return &Publisher{
		client:      client,
		target:      target,
		concurrency: defaultConcurrency,
	}
}

// Publish uploads every file and returns their URLs in input order. The
// first failed upload cancels the rest.
func (publisher *Publisher) Publish(ctx context.Context, paths []string) ([]string, error) {
	urls := make([]string, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(publisher.concurrency)
	for index, localPath := range paths {
		group.Go(func() error {
			key := publisher.target.Key(localPath)
			if err := publisher.putFile(groupCtx, localPath, key); err != nil {
				return err
			}
			urls[index] = publisher.target.URL(key)
			logger.Info("Published file", "file", localPath, "url", urls[index])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (publisher *Publisher) putFile(ctx context.Context, localPath string, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = publisher.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(publisher.target.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", localPath, err)
	}
	return nil
}

func contentType(localPath string) string {
	extension := filepath.Ext(localPath)
	if extension == ".tsv" {
		return "text/tab-separated-values"
	}
	if mimeType := mime.TypeByExtension(extension); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
