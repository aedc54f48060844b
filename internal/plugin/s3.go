package plugin

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vpack/internal/emit"
)

// PutObjectAPI is the subset of the S3 client used for publishing.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures S3Publish.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string

	// Modes lists the build modes that publish. Default: ["production"].
	Modes []string

	// Concurrency bounds parallel uploads. Default: 4.
	Concurrency int

	// Client replaces the default client built from the environment.
	Client PutObjectAPI

	// Getenv looks up credentials and the default region.
	// Default: os.Getenv.
	Getenv func(string) string
}

// S3Publish uploads every asset of an emission to S3. Code assets are
// content-hashed, so they are uploaded with an immutable cache policy.
type S3Publish struct {
	opts   S3Options
	client PutObjectAPI
}

// NewS3Publish validates opts and creates the plugin. Without an explicit
// client, credentials are read from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
func NewS3Publish(opts S3Options) (*S3Publish, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 plugin: bucket is required")
	}
	if len(opts.Modes) == 0 {
		opts.Modes = []string{"production"}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Region == "" {
		opts.Region = opts.Getenv("AWS_REGION")
	}

	client := opts.Client
	if client == nil {
		s3opts := s3.Options{
			Region:      opts.Region,
			Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials(opts.Getenv))),
		}
		if opts.Endpoint != "" {
			s3opts.BaseEndpoint = aws.String(opts.Endpoint)
			s3opts.UsePathStyle = true
		}
		client = s3.New(s3opts)
	}
	return &S3Publish{opts: opts, client: client}, nil
}

func envCredentials(getenv func(string) string) func(context.Context) (aws.Credentials, error) {
	return func(context.Context) (aws.Credentials, error) {
		id := getenv("AWS_ACCESS_KEY_ID")
		secret := getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    getenv("AWS_SESSION_TOKEN"),
			Source:          "vpack environment",
		}, nil
	}
}

// Name implements emit.Plugin.
func (p *S3Publish) Name() string { return "s3" }

// AfterEmit implements emit.AfterEmitter.
func (p *S3Publish) AfterEmit(ctx context.Context, e *emit.Emission) error {
	if !p.enabled(e.Mode) {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, a := range e.Assets {
		g.Go(func() error {
			key := p.key(a.Path)
			_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:       aws.String(p.opts.Bucket),
				Key:          aws.String(key),
				Body:         bytes.NewReader(a.Content),
				ContentType:  aws.String(contentType(a.Path)),
				CacheControl: aws.String(cacheControl(a)),
				Metadata: map[string]string{
					"compilation": e.ID,
				},
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *S3Publish) enabled(mode string) bool {
	for _, m := range p.opts.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (p *S3Publish) key(assetPath string) string {
	prefix := strings.Trim(p.opts.Prefix, "/")
	if prefix == "" {
		return assetPath
	}
	return prefix + "/" + assetPath
}

func contentType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func cacheControl(a emit.Asset) string {
	if a.Kind == emit.KindCode {
		return "public, max-age=31536000, immutable"
	}
	return "no-cache"
}
