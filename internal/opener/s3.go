package opener

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config maps URLs under URLPrefix to objects in Bucket.
type S3Config struct {
	URLPrefix string
	Bucket    string
	Region    string
	Endpoint  string
}

type getObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener reads objects with credentials from the default AWS chain.
type S3Opener struct {
	client getObjectAPI
	cfg    S3Config
}

// NewS3Opener builds an S3 client for one download provider.
func NewS3Opener(ctx context.Context, cfg S3Config) (*S3Opener, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name not provided")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Opener{client: client, cfg: cfg}, nil
}

func newS3OpenerWithClient(client getObjectAPI, cfg S3Config) *S3Opener {
	return &S3Opener{client: client, cfg: cfg}
}

// Key maps a provider URL to an object key.
func (o *S3Opener) Key(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, o.cfg.URLPrefix) {
		return "", fmt.Errorf("url %q is outside provider prefix %q", rawURL, o.cfg.URLPrefix)
	}
	rest := strings.TrimPrefix(rawURL, o.cfg.URLPrefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rest, "/"))
	if err != nil {
		return "", fmt.Errorf("decode object key: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("url %q has no object key", rawURL)
	}
	return key, nil
}

func (o *S3Opener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	key, err := o.Key(rawURL)
	if err != nil {
		return nil, err
	}
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", o.cfg.Bucket, key, err)
	}
	return out.Body, nil
}
