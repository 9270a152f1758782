package store

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const dateLayout = "2006-01-02"

var (
	dateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	unsafeCharRe = regexp.MustCompile(`[/\\?%*:|"<>]`)
)

// ValidDate reports whether date is a well-formed YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	if !dateRe.MatchString(date) {
		return false
	}
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

// ParseDate parses a bucket date. Returns an error for anything ValidDate rejects.
func ParseDate(date string) (time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// FormatDate renders t as a bucket date.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ValidName reports whether name is safe to use below a bucket directory.
// Rejects empty names, traversal sequences, path separators and absolute paths.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	if filepath.IsAbs(name) {
		return false
	}
	return true
}

// Sanitize rewrites a client-supplied file name into a safe base name:
// reserved characters become underscores and traversal sequences are dropped.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeCharRe.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, "..", "")
	if name == "" {
		return "upload"
	}
	return name
}

// SplitExt separates a file name into base name and extension, keeping the
// dot with the extension ("notes.txt" -> "notes", ".txt").
func SplitExt(name string) (base, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// UniqueName probes dir for an unused file name, trying base+ext first and
// then base_1+ext, base_2+ext and so on. It does not reserve the name; the
// check-then-create window is closed by the exclusive create in WriteStream.
func UniqueName(fs afero.Fs, dir, base, ext string) (string, error) {
	candidate := base + ext
	for i := 1; ; i++ {
		exists, err := afero.Exists(fs, filepath.Join(dir, candidate))
		if err != nil {
			return "", fmt.Errorf("probe name %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
