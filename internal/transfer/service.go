// Package transfer implements the upload, listing and download surface of the
// file drop on top of a dated store.
package transfer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"

	"github.com/haoyun/filedrop/internal/metrics"
	"github.com/haoyun/filedrop/internal/store"
)

const fallbackContentType = "application/octet-stream"

// fileStore is the store contract the service depends on. Both the
// filesystem and the object-store backends satisfy it.
type fileStore interface {
	EnsureBucket(ctx context.Context, date string) error
	WriteStream(ctx context.Context, date, base, ext, contentType string, src io.Reader) (string, error)
	List(ctx context.Context, date string) ([]store.Entry, error)
	OpenRead(ctx context.Context, date, name string) (io.ReadCloser, store.Entry, error)
	AppendText(ctx context.Context, content string) error
}

// recorder receives one event per served download.
type recorder interface {
	Record(client, date string, names []string)
}

// Service coordinates the store, the activity log and the archive streamer.
type Service struct {
	store    fileStore
	activity recorder
	clock    store.Clock
	logger   *log.Logger
}

// NewService constructs a transfer service.
func NewService(fileStore fileStore, activity recorder, clock store.Clock, logger *log.Logger) *Service {
	return &Service{store: fileStore, activity: activity, clock: clock, logger: logger}
}

// Today returns the current date in bucket form.
func (s *Service) Today() string {
	return store.FormatDate(s.clock.Now())
}

// Upload sanitizes the client-supplied name and streams the payload into
// today's bucket (or the given date). Returns the collision-free final name.
func (s *Service) Upload(ctx context.Context, date, rawName, contentType string, src io.Reader) (string, error) {
	if date == "" {
		date = s.Today()
	}
	if !store.ValidDate(date) {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidDate, date)
	}
	if contentType == "" {
		contentType = fallbackContentType
	}

	base, ext := store.SplitExt(store.Sanitize(rawName))
	counter := &countingReader{r: src}
	finalName, err := s.store.WriteStream(ctx, date, base, ext, contentType, counter)
	if err != nil {
		return "", err
	}

	metrics.UploadsTotal.Inc()
	metrics.UploadBytesTotal.Add(float64(counter.count))
	s.logger.Info("file received", "name", finalName, "date", date, "bytes", counter.count)
	return finalName, nil
}

// countingReader tracks how many payload bytes passed through an upload.
type countingReader struct {
	r     io.Reader
	count int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.count += int64(n)
	return n, err
}

// List returns the entries of a date bucket. Missing buckets list empty.
func (s *Service) List(ctx context.Context, date string) ([]store.Entry, error) {
	if !store.ValidDate(date) {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidDate, date)
	}
	return s.store.List(ctx, date)
}

// ValidateDownload rejects a download request before any store access:
// malformed date, empty name list, or any unsafe name fails the whole request.
func (s *Service) ValidateDownload(date string, names []string) error {
	if !store.ValidDate(date) {
		return fmt.Errorf("%w: %q", store.ErrInvalidDate, date)
	}
	if len(names) == 0 {
		return ErrNoNames
	}
	for _, name := range names {
		if !store.ValidName(name) {
			return fmt.Errorf("%w: %q", store.ErrInvalidName, name)
		}
	}
	return nil
}

// OpenFile is the single-download fast path: it returns the stored stream,
// its metadata and a best-effort content type, avoiding archive overhead.
func (s *Service) OpenFile(ctx context.Context, date, name string) (io.ReadCloser, store.Entry, string, error) {
	reader, entry, err := s.store.OpenRead(ctx, date, name)
	if err != nil {
		return nil, store.Entry{}, "", err
	}

	contentType := detectContentType(name, reader)
	metrics.DownloadsTotal.WithLabelValues("single").Inc()
	return reader, entry, contentType, nil
}

// RecordDownload forwards one served download to the activity log.
func (s *Service) RecordDownload(client, date string, names []string) {
	s.activity.Record(client, date, names)
}

// ReceiveText appends a trimmed text drop to the store's text log.
func (s *Service) ReceiveText(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyText
	}
	if err := s.store.AppendText(ctx, content); err != nil {
		return err
	}
	s.logger.Info("text received", "length", len(content))
	return nil
}

// detectContentType sniffs the stream when it is seekable, falling back to
// the generic type. The reader is rewound before returning.
func detectContentType(name string, reader io.Reader) string {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return fallbackContentType
	}

	detected, err := mimetype.DetectReader(reader)
	if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return fallbackContentType
	}
	return detected.String()
}
