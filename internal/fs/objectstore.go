package fs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures an S3/MinIO-compatible backend for one
// music folder.
type ObjectStoreConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

// ObjectStore backs a music folder stored in an S3-compatible bucket.
// Grounded on alexander-bruun/orb's pkg/objstore.S3Store, extended with
// Walk (prefix listing) and SourceForTranscode (presigned URL).
type ObjectStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio.New: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, presignTTL: ttl}, nil
}

func (s *ObjectStore) Join(parts ...string) string { return path.Join(parts...) }

func (s *ObjectStore) StripPrefix(full, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(full, prefix) {
		return "", false
	}
	return strings.TrimPrefix(full, prefix), true
}

func (s *ObjectStore) Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

func (s *ObjectStore) WithExt(p, ext string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}

func (s *ObjectStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *ObjectStore) Stat(ctx context.Context, key string) (FileInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: info.Size, LastModified: info.LastModified}, nil
}

// Walk lists every object under root (used as a key prefix) whose
// extension matches exts. Listing errors surface once via onErr; the
// channel is closed either way.
func (s *ObjectStore) Walk(ctx context.Context, root string, exts map[string]struct{}, onErr func(path string, err error)) (<-chan PathInfo, error) {
	out := make(chan PathInfo, walkChanBuffer)
	prefix := strings.TrimSuffix(root, "/") + "/"

	go func() {
		defer close(out)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				onErr(obj.Key, obj.Err)
				continue
			}
			ext := strings.ToLower(path.Ext(obj.Key))
			if _, ok := exts[ext]; !ok {
				continue
			}
			rel, _ := s.StripPrefix(obj.Key, root)
			pi := PathInfo{
				AbsolutePath: obj.Key,
				RelativePath: rel,
				Size:         obj.Size,
				LastModified: obj.LastModified,
			}
			select {
			case out <- pi:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *ObjectStore) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if length > 0 {
		if err := opts.SetRange(offset, offset+length-1); err != nil {
			return nil, fmt.Errorf("set range: %w", err)
		}
	} else if offset > 0 {
		if err := opts.SetRange(offset, 0); err != nil {
			return nil, fmt.Errorf("set range: %w", err)
		}
	}
	return s.client.GetObject(ctx, s.bucket, key, opts)
}

// SourceForTranscode issues a presigned GET URL so the libav-based
// transcode pipeline can open the object as an HTTP input without the
// server ever buffering it.
func (s *ObjectStore) SourceForTranscode(ctx context.Context, key string) (TranscodeSource, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return TranscodeSource{}, fmt.Errorf("presign: %w", err)
	}
	return TranscodeSource{PresignedURL: u.String()}, nil
}
