package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactExt is appended to artifact names to form file names and object keys.
const ArtifactExt = ".gob"

// Source locates model artifacts by name (for example "IF_pH_level").
type Source interface {
	// Exists reports whether the artifact is present.
	Exists(ctx context.Context, name string) (bool, error)
	// Fetch returns the artifact bytes.
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Location describes where name is read from, for logs and errors.
	Location(name string) string
}

// FileSource reads artifacts from a directory.
type FileSource struct {
	Dir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

func (s *FileSource) Location(name string) string {
	return filepath.Join(s.Dir, name+ArtifactExt)
}

func (s *FileSource) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.Location(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileSource) Fetch(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(s.Location(name))
}

// S3Config configures an S3-compatible artifact bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// S3Source reads artifacts from an S3-compatible bucket.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Source creates an S3 client for cfg.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 source requires endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Source) key(name string) string {
	return objectKey(s.prefix, name)
}

func objectKey(prefix, name string) string {
	return path.Join(prefix, name+ArtifactExt)
}

func (s *S3Source) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3Source) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("s3 stat object: %w", err)
}

func (s *S3Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	return b, nil
}
