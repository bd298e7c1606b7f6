// Package archive exports reconciled CRM records to an S3-compatible bucket
// as JSON lines, one object per export.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

const contentType = "application/x-ndjson"

var ErrBucketRequired = errors.New("archive bucket required")

// Config holds explicit construction parameters. Empty credentials fall back
// to the default AWS credentials chain.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
	Prefix          string
}

// S3Store writes export objects into a single bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

type options struct {
	httpClient aws.HTTPClient
	now        func() time.Time
}

type Option func(*options)

// WithHTTPClient replaces the transport used by the S3 client.
func WithHTTPClient(c aws.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an S3Store from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		so.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if o.httpClient != nil {
			so.HTTPClient = o.httpClient
		}
		so.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: o.now}, nil
}

// Key builds the object key of an export: <prefix>/<account>/<entity>/<UTC timestamp>.jsonl.
func (s *S3Store) Key(account, entity string) string {
	name := s.now().UTC().Format("20060102T150405Z") + ".jsonl"
	return path.Join(s.prefix, account, entity, name)
}

// Export uploads rows as JSON lines and returns the object key.
func (s *S3Store) Export(ctx context.Context, account, entity string, rows []models.Record) (string, error) {
	body, err := Encode(rows)
	if err != nil {
		return "", err
	}
	key := s.Key(account, entity)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"account": account,
			"entity":  entity,
			"rows":    fmt.Sprint(len(rows)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Fetch downloads an export and decodes its records.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]models.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()
	return Decode(out.Body)
}

// Encode renders rows as newline-delimited JSON.
func Encode(rows []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode reads newline-delimited JSON, keeping numbers as json.Number.
func Decode(r io.Reader) ([]models.Record, error) {
	var rows []models.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec models.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
