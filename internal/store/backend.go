package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/spigell/edge-shortlister/internal/secrets"
	"github.com/spigell/edge-shortlister/internal/talent"
)

// Backend persists the master table. Load returns nil without error when nothing was saved yet.
type Backend interface {
	Load(ctx context.Context) (*talent.Table, error)
	Save(ctx context.Context, t *talent.Table) error
	String() string
}

// FileBackend keeps the master table in a local CSV file.
type FileBackend struct {
	Path string
}

func (b *FileBackend) Load(_ context.Context) (*talent.Table, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.Path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return talent.ReadTable(data)
}

// Save overwrites the file through a temporary sibling so readers never see a partial table.
func (b *FileBackend) Save(_ context.Context, t *talent.Table) error {
	data, err := t.Bytes()
	if err != nil {
		return fmt.Errorf("encoding master table: %w", err)
	}

	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), b.Path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.Path, err)
	}
	return nil
}

func (b *FileBackend) String() string { return "file://" + b.Path }

type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes an S3-compatible bucket, R2 included.
type S3Config struct {
	Bucket              string `mapstructure:"bucket"`
	Key                 string `mapstructure:"key"`
	Region              string `mapstructure:"region"`
	Endpoint            string `mapstructure:"endpoint"`
	UsePathStyle        bool   `mapstructure:"use-path-style"`
	AccessKeyID         string `mapstructure:"access-key-id"`
	SecretAccessKey     string `mapstructure:"secret-access-key"`
	SecretAccessKeyFile string `mapstructure:"secret-access-key-file"`
}

// S3Backend keeps the master table as a single CSV object.
type S3Backend struct {
	client objectAPI
	bucket string
	key    string
}

// NewS3Backend builds an S3 client from cfg. Without an access key id the default AWS credential chain is used.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("s3 bucket and key are required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if id := strings.TrimSpace(cfg.AccessKeyID); id != "" {
		secret, err := secrets.Load(secrets.Source{
			Name:  "s3 secret access key",
			Value: cfg.SecretAccessKey,
			File:  cfg.SecretAccessKeyFile,
			Env:   "EDGE_S3_SECRET_ACCESS_KEY",
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (b *S3Backend) Load(ctx context.Context) (*talent.Table, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", b, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return talent.ReadTable(data)
}

func (b *S3Backend) Save(ctx context.Context, t *talent.Table) error {
	data, err := t.Bytes()
	if err != nil {
		return fmt.Errorf("encoding master table: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", b, err)
	}
	return nil
}

func (b *S3Backend) String() string { return "s3://" + b.bucket + "/" + b.key }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
