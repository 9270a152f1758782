package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
)

// objectAPI is the slice of the MinIO client the blob store depends on.
type objectAPI interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// ObjectClient adapts minio.Client to the objectAPI interface.
type ObjectClient struct {
	client *minio.Client
}

// NewObjectClient constructs an adapter.
func NewObjectClient(client *minio.Client) *ObjectClient {
	return &ObjectClient{client: client}
}

func (c *ObjectClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return c.client.StatObject(ctx, bucketName, objectName, opts)
}

func (c *ObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return c.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (c *ObjectClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	object, err := c.client.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return object, nil
}

func (c *ObjectClient) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return c.client.ListObjects(ctx, bucketName, opts)
}

func (c *ObjectClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return c.client.RemoveObject(ctx, bucketName, objectName, opts)
}

// Blob is the object-store variant of the dated store. Date buckets map to
// key prefixes ("2025-01-02/name"), satisfying the same contract as Dated.
type Blob struct {
	api    objectAPI
	bucket string
	clock  Clock
	logger *log.Logger
}

// NewBlob constructs an object-store backed dated store.
func NewBlob(api objectAPI, bucket string, clock Clock, logger *log.Logger) *Blob {
	return &Blob{api: api, bucket: bucket, clock: clock, logger: logger}
}

// EnsureBucket is a no-op for the blob backend: date buckets are key prefixes
// that come into existence with their first object.
func (b *Blob) EnsureBucket(ctx context.Context, date string) error {
	if !ValidDate(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// WriteStream stores the source stream under a collision-free key inside the
// date prefix and returns the final name.
func (b *Blob) WriteStream(ctx context.Context, date, base, ext, contentType string, src io.Reader) (string, error) {
	if !ValidName(base + ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, base+ext)
	}
	if !ValidDate(date) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	name, err := b.uniqueName(ctx, date, base, ext)
	if err != nil {
		return "", err
	}

	key := date + "/" + name
	if _, err := b.api.PutObject(ctx, b.bucket, key, src, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		// Best effort: a failed multipart upload may leave a visible partial object.
		_ = b.api.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
		return "", fmt.Errorf("%w: %q: %v", ErrWriteInterrupted, name, err)
	}
	return name, nil
}

// List returns the entries under a date prefix. An unknown date is an empty
// listing, not an error.
func (b *Blob) List(ctx context.Context, date string) ([]Entry, error) {
	if !ValidDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	prefix := date + "/"
	entries := []Entry{}
	for info := range b.api.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list prefix %q: %w", prefix, info.Err)
		}
		entries = append(entries, Entry{
			Name:       strings.TrimPrefix(info.Key, prefix),
			Size:       info.Size,
			UploadedAt: info.LastModified,
		})
	}
	return entries, nil
}

// OpenRead opens a stored object for streaming.
func (b *Blob) OpenRead(ctx context.Context, date, name string) (io.ReadCloser, Entry, error) {
	if !ValidDate(date) {
		return nil, Entry{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if !ValidName(name) {
		return nil, Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	key := date + "/" + name
	info, err := b.api.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, Entry{}, fmt.Errorf("stat object %q: %w", key, err)
	}

	object, err := b.api.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Entry{}, fmt.Errorf("fetch object %q: %w", key, err)
	}

	return object, Entry{Name: name, Size: info.Size, UploadedAt: info.LastModified}, nil
}

// AppendText rewrites the shared text log object with the new drop appended.
func (b *Blob) AppendText(ctx context.Context, content string) error {
	// GetObject defers missing-key errors to the first read, so both paths
	// funnel through the ReadAll error check.
	var existing []byte
	object, err := b.api.GetObject(ctx, b.bucket, textLogName, minio.GetObjectOptions{})
	if err == nil {
		body, readErr := io.ReadAll(object)
		object.Close()
		if readErr == nil {
			existing = body
		} else if minio.ToErrorResponse(readErr).Code != "NoSuchKey" {
			return fmt.Errorf("read text log: %w", readErr)
		}
	}

	stamp := b.clock.Now().Format("2006-01-02 15:04:05")
	buf := bytes.NewBuffer(existing)
	fmt.Fprintf(buf, "[%s]\n%s\n\n", stamp, content)

	if _, err := b.api.PutObject(ctx, b.bucket, textLogName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{ContentType: "text/plain"}); err != nil {
		return fmt.Errorf("write text log: %w", err)
	}
	return nil
}

// Buckets returns the date prefixes currently present.
func (b *Blob) Buckets(ctx context.Context) ([]string, error) {
	var buckets []string
	for info := range b.api.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list buckets: %w", info.Err)
		}
		if !strings.HasSuffix(info.Key, "/") {
			continue
		}
		buckets = append(buckets, strings.TrimSuffix(info.Key, "/"))
	}
	return buckets, nil
}

// RemoveBucket deletes every object under the date prefix.
func (b *Blob) RemoveBucket(ctx context.Context, date string) error {
	prefix := date + "/"
	for info := range b.api.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return fmt.Errorf("list prefix %q: %w", prefix, info.Err)
		}
		if err := b.api.RemoveObject(ctx, b.bucket, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %q: %w", info.Key, err)
		}
	}
	return nil
}

// uniqueName probes the date prefix for an unused object name.
func (b *Blob) uniqueName(ctx context.Context, date, base, ext string) (string, error) {
	candidate := base + ext
	for i := 1; ; i++ {
		_, err := b.api.StatObject(ctx, b.bucket, date+"/"+candidate, minio.StatObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return candidate, nil
			}
			return "", fmt.Errorf("probe object %q: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
