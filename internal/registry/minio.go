package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/singleflight"
)

// MinioOptions locates a registry document in an S3-compatible bucket.
type MinioOptions struct {
	Endpoint  string
	Bucket    string
	Object    string
	Secure    bool
	AccessKey string
	SecretKey string
	// Region skips the bucket location lookup when set.
	Region string
}

// MinioStore reads a YAML Document from an object.  Concurrent queries
// share one download.
type MinioStore struct {
	client *minio.Client
	bucket string
	object string
	group  singleflight.Group
}

// NewMinioStore creates a client for opts.  No request is made until
// the first query.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", opts.Endpoint, err)
	}
	return &MinioStore{client: client, bucket: opts.Bucket, object: opts.Object}, nil
}

func (s *MinioStore) load(ctx context.Context) (*Document, error) {
	v, err, _ := s.group.Do(s.object, func() (interface{}, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
		if err != nil {
			return nil, translateError(err, s.bucket, s.object)
		}
		defer func() {
			_ = obj.Close()
		}()

		data, err := io.ReadAll(obj)
		if err != nil {
			return nil, translateError(err, s.bucket, s.object)
		}
		return ParseDocument(data)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

func translateError(err error, bucket, object string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s/%s: not found: %w", bucket, object, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%s/%s: access denied: %w", bucket, object, err)
	}
	return fmt.Errorf("%s/%s: %w", bucket, object, err)
}

func (s *MinioStore) Hosts(ctx context.Context) ([]string, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.HostIDs(), nil
}

func (s *MinioStore) Rules(ctx context.Context) ([]string, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.RuleIDs(), nil
}

// Close is a no-op.
func (s *MinioStore) Close() error { return nil }
