package resource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// S3Config holds the parameters for an S3-compatible space (AWS S3 or MinIO).
// Credentials come from the default AWS chain.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string // key prefix treated as the space root
	Endpoint  string // optional custom endpoint
	PathStyle bool
}

// S3Space serves the objects of one bucket, optionally below a key prefix.
type S3Space struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Space builds a client from the default AWS configuration.
func NewS3Space(ctx context.Context, cfg S3Config) (*S3Space, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SpaceFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SpaceFromClient wraps an existing client.
func NewS3SpaceFromClient(client *s3.Client, bucket, prefix string) *S3Space {
	return &S3Space{client: client, bucket: bucket, prefix: clean(prefix)}
}

func (s *S3Space) key(p string) string {
	p = clean(p)
	if s.prefix == "" {
		return p
	}
	if p == "" {
		return s.prefix
	}
	return s.prefix + "/" + p
}

func (s *S3Space) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *S3Space) Stat(ctx context.Context, p string) (Entry, error) {
	key := s.key(p)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return Entry{}, notExist("stat", p, err)
	}
	return Entry{Path: clean(p), Size: aws.ToInt64(out.ContentLength), ModTime: aws.ToTime(out.LastModified)}, nil
}

func (s *S3Space) List(ctx context.Context, prefix string) ([]Entry, error) {
	keyPrefix := s.key(prefix)
	if keyPrefix != "" {
		keyPrefix += "/"
	}
	var out []Entry
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &keyPrefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, Entry{Path: s.rel(key), Size: aws.ToInt64(obj.Size), ModTime: aws.ToTime(obj.LastModified)})
		}
		if aws.ToBool(page.IsTruncated) && page.NextContinuationToken != nil {
			token = page.NextContinuationToken
			continue
		}
		break
	}
	return out, nil
}

func (s *S3Space) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key := s.key(p)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, notExist("open", p, err)
	}
	return out.Body, nil
}

// notExist maps a 404 from the service onto fs.ErrNotExist.
func notExist(op, p string, err error) error {
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound {
		return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
	}
	return err
}
