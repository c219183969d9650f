package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
	"google.golang.org/api/iterator"
)

// StorageGCS is a Google Cloud Storage-based blob store.
// All names are placed under Prefix, so several datasets can share a bucket.
type StorageGCS struct {
	bucketName string
	prefix     string
	client     *gcs.Client
	bucket     *gcs.BucketHandle
	log        logs.Log
}

// NewStorageGCS uses the application default credentials.
// prefix may be empty, otherwise it is treated as a directory ("dataset" and "dataset/" are the same).
func NewStorageGCS(log logs.Log, bucketName, prefix string) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Failed to create GCS client: %w", err)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &StorageGCS{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
		bucket:     client.Bucket(bucketName),
		log:        log,
	}, nil
}

func (s *StorageGCS) WriteFile(name string) (io.WriteCloser, error) {
	ctx := context.Background()
	s.log.Debugf("Writing gs://%v/%v%v", s.bucketName, s.prefix, name)
	w := s.bucket.Object(s.prefix + name).NewWriter(ctx)
	if strings.HasSuffix(name, ".png") {
		w.ContentType = "image/png"
	} else if strings.HasSuffix(name, ".txt") {
		w.ContentType = "text/plain"
	}
	return w, nil
}

func (s *StorageGCS) ReadFile(name string) (*File, error) {
	ctx := context.Background()
	r, err := s.bucket.Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%v: %w", name, err)
		}
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) DeleteFile(name string) error {
	ctx := context.Background()
	s.log.Infof("Deleting gs://%v/%v%v", s.bucketName, s.prefix, name)
	return s.bucket.Object(s.prefix + name).Delete(ctx)
}

func (s *StorageGCS) List(prefix string) ([]string, error) {
	ctx := context.Background()
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: s.prefix + prefix})
	names := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	return names, nil
}

func (s *StorageGCS) String() string {
	return "gs://" + s.bucketName + "/" + s.prefix
}

func (s *StorageGCS) Close() error {
	return s.client.Close()
}
