package transfer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/haoyun/filedrop/internal/metrics"
	"github.com/haoyun/filedrop/internal/store"
)

// StreamArchive writes a zip of the requested files incrementally to w,
// never materializing the full archive. A missing file is logged and
// skipped; the archive still completes with whatever subset exists. The
// central directory is written only after every name has been attempted.
// Returns the number of entries actually added.
func (s *Service) StreamArchive(ctx context.Context, date string, names []string, w io.Writer) (int, error) {
	archive := zip.NewWriter(w)
	added := 0

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			// Client went away; stop reading source files for a dead
			// connection. The partial zip is unusable either way.
			archive.Close()
			return added, err
		}

		reader, entry, err := s.store.OpenRead(ctx, date, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Error("file not found for zip", "date", date, "name", name)
				metrics.ArchiveEntriesTotal.WithLabelValues("missing").Inc()
				continue
			}
			archive.Close()
			return added, err
		}

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: entry.UploadedAt,
		}
		entryWriter, err := archive.CreateHeader(header)
		if err != nil {
			reader.Close()
			archive.Close()
			return added, fmt.Errorf("create archive entry %q: %w", name, err)
		}

		_, err = io.Copy(entryWriter, reader)
		reader.Close()
		if err != nil {
			// Downstream write failure: the response already started, so
			// the connection just dies. No further writes are legal.
			return added, fmt.Errorf("write archive entry %q: %w", name, err)
		}

		metrics.ArchiveEntriesTotal.WithLabelValues("added").Inc()
		added++
	}

	if err := archive.Close(); err != nil {
		return added, fmt.Errorf("finalize archive: %w", err)
	}

	metrics.DownloadsTotal.WithLabelValues("archive").Inc()
	if added < len(names) {
		s.logger.Warn("archive completed with missing files", "date", date, "added", added, "requested", len(names))
	}
	return added, nil
}
