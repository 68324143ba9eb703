// Package publish uploads finished report bundles to S3-compatible
// object storage. Uploads are optional and never block local artifact
// generation; a run is complete once the files are on disk.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salesflow/salesflow/pkg/report"
)

const tracerName = "salesflow/publish"

// Config holds S3 publisher configuration.
type Config struct {
	// Bucket is the target bucket name.
	Bucket string

	// Prefix is prepended to every object key.
	Prefix string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible
	// services).
	Endpoint string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack).
	UsePathStyle bool

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Timeout bounds each upload.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(bucket string) Config {
	return Config{
		Bucket:  bucket,
		Prefix:  "salesflow",
		Timeout: 2 * time.Minute,
	}
}

// objectPutter is the slice of the S3 API the publisher needs. The
// concrete *s3.Client satisfies it.
type objectPutter interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads run artifacts to a bucket.
type Publisher struct {
	cfg    Config
	client objectPutter
	log    zerolog.Logger
}

// New creates a publisher. The AWS credential chain applies unless
// explicit keys are configured.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish: bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Publisher{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		log:    log,
	}, nil
}

// key returns the object key for one artifact of a run.
func (p *Publisher) key(runID, name string) string {
	return path.Join(p.cfg.Prefix, runID, name)
}

// PublishRun uploads every artifact the manifest lists, then the
// manifest itself. The manifest goes last so any reader that can see
// it may assume the rest of the bundle is already there. Returns the
// uploaded object keys in upload order.
func (p *Publisher) PublishRun(ctx context.Context, paths report.Paths, m *report.Manifest) ([]string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "publish.upload")
	defer span.End()

	keys := make([]string, 0, len(m.Artifacts)+1)

	for _, artifact := range m.Artifacts {
		key := p.key(m.RunID, artifact.Name)
		if err := p.putFile(ctx, key, filepath.Join(paths.Dir, artifact.Name), artifact.Signature); err != nil {
			span.RecordError(err)
			return keys, fmt.Errorf("uploading %s: %w", artifact.Name, err)
		}
		keys = append(keys, key)
		p.log.Debug().Str("key", key).Int64("size", artifact.Size).Msg("artifact uploaded")
	}

	manifestKey := p.key(m.RunID, filepath.Base(paths.Manifest()))
	if err := p.putFile(ctx, manifestKey, paths.Manifest(), ""); err != nil {
		span.RecordError(err)
		return keys, fmt.Errorf("uploading manifest: %w", err)
	}
	keys = append(keys, manifestKey)

	span.SetAttributes(attribute.Int("publish.objects", len(keys)))
	p.log.Info().
		Str("bucket", p.cfg.Bucket).
		Str("run_id", m.RunID).
		Int("objects", len(keys)).
		Msg("report bundle published")
	return keys, nil
}

// putFile uploads one local file. The manifest signature, when known,
// rides along as object metadata so downstream consumers can verify
// integrity without re-reading the manifest.
func (p *Publisher) putFile(ctx context.Context, key, localPath, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentTypeFor(key)),
	}
	if signature != "" {
		input.Metadata = map[string]string{"sha256": signature}
	}

	_, err = p.client.PutObject(ctx, input)
	return err
}

// contentTypeFor maps an artifact extension to its MIME type.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt", ".log":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
