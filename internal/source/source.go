// Package source opens the input streams scoreline ingests: local files,
// standard input, snappy-compressed files and S3 objects.
//
// Names are interpreted as follows:
//
//	"-"               standard input
//	"s3://bucket/key" an S3 object
//	anything else     a local file path
//
// A name ending in ".sz" is decompressed as a snappy framed stream,
// regardless of where it comes from.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/golang/snappy"
)

// SnappySuffix marks snappy framed streams.
const SnappySuffix = ".sz"

// ErrNotFound is returned when the named file or object does not exist.
var ErrNotFound = errors.New("source not found")

// S3Config holds the S3 client settings.
type S3Config struct {
	// Region is the AWS region. Empty uses the SDK's default resolution.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// ObjectGetter is the subset of the S3 client Opener needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener opens named input streams. The S3 client is created on first use,
// so local-only runs never load AWS configuration.
type Opener struct {
	cfg   S3Config
	stdin io.Reader

	once   sync.Once
	client ObjectGetter
	err    error
}

// NewOpener creates an Opener.
func NewOpener(cfg S3Config) *Opener {
	return &Opener{cfg: cfg, stdin: os.Stdin}
}

// NewOpenerWithClient creates an Opener with a pre-configured S3 client.
func NewOpenerWithClient(client ObjectGetter) *Opener {
	o := &Opener{stdin: os.Stdin, client: client}
	o.once.Do(func() {})
	return o
}

// WithStdin replaces the reader used for "-".
func (o *Opener) WithStdin(r io.Reader) *Opener {
	o.stdin = r
	return o
}

// Open returns a reader over the named stream. The caller must close it.
func (o *Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	switch {
	case name == "-":
		rc = io.NopCloser(o.stdin)
	case strings.HasPrefix(name, "s3://"):
		rc, err = o.openS3(ctx, name)
	default:
		rc, err = openFile(name)
	}
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(name, SnappySuffix) {
		return &snappyReadCloser{Reader: snappy.NewReader(rc), closer: rc}, nil
	}
	return rc, nil
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(name string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(name, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", name)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q: want s3://bucket/key", name)
	}
	return bucket, key, nil
}

func (o *Opener) openS3(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(name)
	if err != nil {
		return nil, err
	}

	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("get %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return resp.Body, nil
}

func (o *Opener) s3Client(ctx context.Context) (ObjectGetter, error) {
	o.once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if o.cfg.Region != "" {
			opts = append(opts, config.WithRegion(o.cfg.Region))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			o.err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}

		var s3Opts []func(*s3.Options)
		if o.cfg.Endpoint != "" {
			s3Opts = append(s3Opts, func(so *s3.Options) {
				so.BaseEndpoint = aws.String(o.cfg.Endpoint)
			})
		}
		if o.cfg.UsePathStyle {
			s3Opts = append(s3Opts, func(so *s3.Options) {
				so.UsePathStyle = true
			})
		}
		o.client = s3.NewFromConfig(awsCfg, s3Opts...)
	})
	return o.client, o.err
}

type snappyReadCloser struct {
	*snappy.Reader
	closer io.Closer
}

func (s *snappyReadCloser) Close() error {
	return s.closer.Close()
}
