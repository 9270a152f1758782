package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/haoyun/filedrop/internal/logging"
	"github.com/haoyun/filedrop/internal/store"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

type fakeRecorder struct {
	clients []string
	dates   []string
	names   [][]string
}

func (f *fakeRecorder) Record(client, date string, names []string) {
	f.clients = append(f.clients, client)
	f.dates = append(f.dates, date)
	f.names = append(f.names, names)
}

func newTestService(t *testing.T) (*Service, *fakeRecorder, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, _ := logging.NewTestLogger()
	clock := &stubClock{now: time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)}
	dated := store.NewDated(fs, "/files", clock, logger)
	recorder := &fakeRecorder{}
	return NewService(dated, recorder, clock, logger), recorder, fs
}

func seedFile(t *testing.T, service *Service, date, name, content string) string {
	t.Helper()
	finalName, err := service.Upload(context.Background(), date, name, "", strings.NewReader(content))
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return finalName
}

func TestUploadSanitizesClientNames(t *testing.T) {
	service, _, _ := newTestService(t)

	finalName, err := service.Upload(context.Background(), "", "../../evil?.txt", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if strings.ContainsAny(finalName, `/\`) || strings.Contains(finalName, "..") {
		t.Fatalf("sanitized name still unsafe: %q", finalName)
	}

	// Empty date defaults to today's bucket.
	entries, err := service.List(context.Background(), "2025-04-05")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != finalName {
		t.Fatalf("uploaded file not in today's bucket: %+v", entries)
	}
}

func TestUploadRejectsInvalidDate(t *testing.T) {
	service, _, _ := newTestService(t)

	if _, err := service.Upload(context.Background(), "05-04-2025", "a.txt", "", strings.NewReader("x")); !errors.Is(err, store.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestUploadDisambiguatesRepeatedNames(t *testing.T) {
	service, _, _ := newTestService(t)

	first := seedFile(t, service, "2025-04-05", "report.pdf", "v1")
	second := seedFile(t, service, "2025-04-05", "report.pdf", "v2")

	if first != "report.pdf" || second != "report_1.pdf" {
		t.Fatalf("expected report.pdf then report_1.pdf, got %q and %q", first, second)
	}

	// Original upload is never overwritten.
	reader, _, _, err := service.OpenFile(context.Background(), "2025-04-05", "report.pdf")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != "v1" {
		t.Fatalf("first upload overwritten, got %q", data)
	}
}

func TestValidateDownload(t *testing.T) {
	service, _, _ := newTestService(t)

	cases := []struct {
		label string
		date  string
		names []string
		want  error
	}{
		{"ok", "2025-04-05", []string{"a.txt"}, nil},
		{"bad date", "20250405", []string{"a.txt"}, store.ErrInvalidDate},
		{"no names", "2025-04-05", nil, ErrNoNames},
		{"traversal", "2025-04-05", []string{"a.txt", "../b"}, store.ErrInvalidName},
		{"separator", "2025-04-05", []string{"a/b.txt"}, store.ErrInvalidName},
		{"absolute", "2025-04-05", []string{"/etc/passwd"}, store.ErrInvalidName},
	}

	for _, tc := range cases {
		err := service.ValidateDownload(tc.date, tc.names)
		if tc.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.label, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.label, tc.want, err)
		}
	}
}

func TestStreamArchiveCompletesWithMissingFiles(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	seedFile(t, service, "2025-04-05", "a.txt", "alpha")
	seedFile(t, service, "2025-04-05", "b.txt", "bravo")

	var buf bytes.Buffer
	added, err := service.StreamArchive(ctx, "2025-04-05", []string{"a.txt", "missing.txt", "b.txt"}, &buf)
	if err != nil {
		t.Fatalf("StreamArchive: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 entries added, got %d", added)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("resulting stream is not a valid zip: %v", err)
	}

	contents := map[string]string{}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[file.Name] = string(data)
	}

	if len(contents) != 2 || contents["a.txt"] != "alpha" || contents["b.txt"] != "bravo" {
		t.Fatalf("unexpected archive contents %v", contents)
	}
}

func TestStreamArchiveStopsOnCancelledContext(t *testing.T) {
	service, _, _ := newTestService(t)

	seedFile(t, service, "2025-04-05", "a.txt", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if _, err := service.StreamArchive(ctx, "2025-04-05", []string{"a.txt"}, &buf); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenFileDetectsContentType(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	seedFile(t, service, "2025-04-05", "notes.txt", "plain text body")

	reader, entry, contentType, err := service.OpenFile(ctx, "2025-04-05", "notes.txt")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer reader.Close()

	if !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", contentType)
	}

	// Detection must not consume the stream.
	data, _ := io.ReadAll(reader)
	if string(data) != "plain text body" {
		t.Fatalf("stream consumed by detection, got %q", data)
	}
	if entry.Size != int64(len("plain text body")) {
		t.Fatalf("unexpected size %d", entry.Size)
	}
}

func TestOpenFileNotFound(t *testing.T) {
	service, _, _ := newTestService(t)

	if _, _, _, err := service.OpenFile(context.Background(), "2025-04-05", "ghost.txt"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordDownloadForwardsToActivityLog(t *testing.T) {
	service, recorder, _ := newTestService(t)

	service.RecordDownload("10.1.1.1", "2025-04-05", []string{"a.txt", "b.txt"})

	if len(recorder.clients) != 1 || recorder.clients[0] != "10.1.1.1" {
		t.Fatalf("unexpected recorded clients %v", recorder.clients)
	}
	if len(recorder.names[0]) != 2 {
		t.Fatalf("unexpected recorded names %v", recorder.names)
	}
}

func TestReceiveText(t *testing.T) {
	service, _, fs := newTestService(t)
	ctx := context.Background()

	if err := service.ReceiveText(ctx, "  \n "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}

	if err := service.ReceiveText(ctx, "hello drop"); err != nil {
		t.Fatalf("ReceiveText: %v", err)
	}

	data, err := afero.ReadFile(fs, "/files/text.log")
	if err != nil {
		t.Fatalf("read text log: %v", err)
	}
	if !strings.Contains(string(data), "hello drop") {
		t.Fatalf("text log missing content: %q", data)
	}
}
