package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// Bucket is the public bucket holding the historical archives.
	Bucket = "data.binance.vision"
	// bucketRegion is where the public bucket lives.
	bucketRegion = "ap-northeast-1"

	listMaxRetries = 3
)

// S3Lister lists object keys from the public archive bucket. The bucket
// allows anonymous reads, so the client is built with anonymous credentials.
type S3Lister struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewS3Lister builds a lister against the public bucket.
func NewS3Lister(ctx context.Context, log zerolog.Logger) (*S3Lister, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bucketRegion),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &S3Lister{
		client: s3.NewFromConfig(cfg),
		bucket: Bucket,
		log:    log.With().Str("component", "s3-lister").Logger(),
	}, nil
}

// ListKeys returns every object key under the prefix, following pagination.
// Transient listing errors are retried with exponential backoff before
// being surfaced to the caller.
func (l *S3Lister) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	list := func() error {
		keys = keys[:0]
		paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(l.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, obj := range page.Contents {
				if obj.Key == nil {
					continue
				}
				keys = append(keys, *obj.Key)
			}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newListBackOff(), listMaxRetries), ctx)

	if err := backoff.RetryNotify(list, policy, func(err error, wait time.Duration) {
		l.log.Warn().
			Err(err).
			Str("prefix", prefix).
			Dur("retry_in", wait).
			Msg("Catalog listing failed, retrying")
	}); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	l.log.Debug().Str("prefix", prefix).Int("keys", len(keys)).Msg("Listed catalog prefix")
	return keys, nil
}

func newListBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return b
}
