// Package publish uploads the build root to an S3 bucket.
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/internal/glob"
)

// defaultConcurrency bounds simultaneous PutObject calls.
const defaultConcurrency = 8

// Uploader is the subset of the S3 client used for publishing.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ Uploader = (*s3.Client)(nil)

// UploadError reports a file that could not be uploaded.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Options configures a Publisher.
type Options struct {
	Bucket       string
	Prefix       string
	CacheControl string
	// Exclude lists glob patterns, relative to the build root, to skip.
	Exclude []string
	// DryRun lists the keys without uploading.
	DryRun      bool
	Concurrency int
}

// Result summarizes a publish.
type Result struct {
	Keys  []string
	Bytes int64
}

// Publisher uploads a directory tree to S3.
type Publisher struct {
	client Uploader
	opts   Options
}

// New creates a Publisher from the publish configuration, loading AWS
// credentials from the default chain. It fails with a
// *config.ConfigurationError when no bucket is configured.
func New(ctx context.Context, cfg config.PublishConfig, opts Options) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, &config.ConfigurationError{Key: "publish.bucket", Reason: "no bucket configured"}
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	opts.Bucket = cfg.Bucket
	opts.Prefix = cfg.Prefix
	if opts.CacheControl == "" {
		opts.CacheControl = cfg.CacheControl
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), opts)
}

// NewWithClient creates a Publisher over an existing client.
func NewWithClient(client Uploader, opts Options) (*Publisher, error) {
	if opts.Bucket == "" {
		return nil, &config.ConfigurationError{Key: "publish.bucket", Reason: "no bucket configured"}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Publisher{client: client, opts: opts}, nil
}

// Key returns the object key for a path relative to the build root.
func (p *Publisher) Key(rel string) string {
	rel = filepath.ToSlash(rel)
	prefix := strings.Trim(p.opts.Prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// Publish uploads every file under root. Files are uploaded concurrently;
// the first failure stops scheduling further uploads and is returned as an
// *UploadError.
func (p *Publisher) Publish(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("publish: %s is not a directory", root)
	}

	patterns := []string{"**"}
	for _, ex := range p.opts.Exclude {
		patterns = append(patterns, "!"+strings.TrimPrefix(ex, "!"))
	}
	hits, err := glob.New(patterns...).Expand(root)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	res := &Result{Keys: make([]string, 0, len(hits))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, h := range hits {
		key := p.Key(h.Rel())
		file := h.Path
		g.Go(func() error {
			n, err := p.upload(gctx, key, file)
			if err != nil {
				return &UploadError{Key: key, Err: err}
			}
			mu.Lock()
			res.Keys = append(res.Keys, key)
			res.Bytes += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Publisher) upload(ctx context.Context, key, file string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if p.opts.DryRun {
		return info.Size(), nil
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType(key)),
	}
	if p.opts.CacheControl != "" {
		in.CacheControl = aws.String(p.opts.CacheControl)
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// contentTypes covers extensions the platform mime table may lack.
var contentTypes = map[string]string{
	".webmanifest": "application/manifest+json",
	".webp":        "image/webp",
	".map":         "application/json",
	".svg":         "image/svg+xml",
	".woff2":       "font/woff2",
	".woff":        "font/woff",
}

// ContentType returns the Content-Type for an object key.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
