package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const textLogName = "text.log"

// Dated owns the on-disk layout root/<YYYY-MM-DD>/<filename>. Buckets are
// created lazily on first write and never by reads or listings.
type Dated struct {
	fs     afero.Fs
	root   string
	clock  Clock
	logger *log.Logger
}

// NewDated constructs a filesystem-backed dated store.
func NewDated(fs afero.Fs, root string, clock Clock, logger *log.Logger) *Dated {
	return &Dated{fs: fs, root: root, clock: clock, logger: logger}
}

// Root returns the base directory the store manages.
func (d *Dated) Root() string { return d.root }

// EnsureBucket creates the bucket directory for date if absent. Idempotent;
// a directory that already exists is success, not failure.
func (d *Dated) EnsureBucket(ctx context.Context, date string) error {
	if !ValidDate(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if err := d.fs.MkdirAll(filepath.Join(d.root, date), 0o755); err != nil {
		return fmt.Errorf("create bucket %q: %w", date, err)
	}
	return nil
}

// WriteStream stores the source stream under a collision-free name inside the
// date bucket and returns the final name. On any copy failure, including
// client disconnect, the partial file is removed before the error returns.
// The content type is not persisted on the filesystem backend; downloads
// re-detect it from the stored bytes.
func (d *Dated) WriteStream(ctx context.Context, date, base, ext, contentType string, src io.Reader) (string, error) {
	if !ValidName(base + ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, base+ext)
	}
	if err := d.EnsureBucket(ctx, date); err != nil {
		return "", err
	}

	dir := filepath.Join(d.root, date)
	for {
		name, err := UniqueName(d.fs, dir, base, ext)
		if err != nil {
			return "", err
		}

		target := filepath.Join(dir, name)
		file, err := d.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			// Lost the resolution race to a concurrent upload; probe again.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create file %q: %w", target, err)
		}

		written, err := io.Copy(file, &contextReader{ctx: ctx, r: src})
		if err == nil {
			err = file.Close()
		} else {
			file.Close()
		}
		if err != nil {
			if removeErr := d.fs.Remove(target); removeErr != nil {
				d.logger.Error("remove partial file", "path", target, "error", removeErr)
			}
			return "", fmt.Errorf("%w: %q after %d bytes: %v", ErrWriteInterrupted, name, written, err)
		}

		return name, nil
	}
}

// List returns the entries of a bucket. A missing bucket is an empty listing,
// not an error. Iteration order is directory order; callers sort client-side.
func (d *Dated) List(ctx context.Context, date string) ([]Entry, error) {
	if !ValidDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	infos, err := afero.ReadDir(d.fs, filepath.Join(d.root, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("list bucket %q: %w", date, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Name:       info.Name(),
			Size:       info.Size(),
			UploadedAt: info.ModTime(),
		})
	}
	return entries, nil
}

// OpenRead opens a stored file for streaming. The handler validates names
// before calling; unsafe names are still rejected here.
func (d *Dated) OpenRead(ctx context.Context, date, name string) (io.ReadCloser, Entry, error) {
	if !ValidDate(date) {
		return nil, Entry{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if !ValidName(name) {
		return nil, Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	target := filepath.Join(d.root, date, name)
	info, err := d.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Entry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, date, name)
		}
		return nil, Entry{}, fmt.Errorf("stat file %q: %w", target, err)
	}
	if info.IsDir() {
		return nil, Entry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, date, name)
	}

	file, err := d.fs.Open(target)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("open file %q: %w", target, err)
	}

	return file, Entry{Name: name, Size: info.Size(), UploadedAt: info.ModTime()}, nil
}

// AppendText appends a timestamped text drop to the shared text log at the
// store root.
func (d *Dated) AppendText(ctx context.Context, content string) error {
	if err := d.fs.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create store root: %w", err)
	}

	target := filepath.Join(d.root, textLogName)
	file, err := d.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open text log: %w", err)
	}
	defer file.Close()

	stamp := d.clock.Now().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(file, "[%s]\n%s\n\n", stamp, content); err != nil {
		return fmt.Errorf("append text: %w", err)
	}
	return nil
}

// Buckets returns the names of the directories directly under the store root.
// A missing root is created and reported as empty. Names are returned as-is;
// the caller decides which of them are managed date buckets.
func (d *Dated) Buckets(ctx context.Context) ([]string, error) {
	if err := d.fs.MkdirAll(d.root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	infos, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	var buckets []string
	for _, info := range infos {
		if info.IsDir() {
			buckets = append(buckets, info.Name())
		}
	}
	return buckets, nil
}

// RemoveBucket deletes a bucket directory and everything in it.
func (d *Dated) RemoveBucket(ctx context.Context, date string) error {
	if !ValidName(date) {
		return fmt.Errorf("%w: %q", ErrInvalidName, date)
	}
	if err := d.fs.RemoveAll(filepath.Join(d.root, date)); err != nil {
		return fmt.Errorf("remove bucket %q: %w", date, err)
	}
	return nil
}

// contextReader aborts an in-flight copy once the request context is done so
// a dead client stops consuming the source promptly.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
