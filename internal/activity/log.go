// Package activity buffers per-client download events and persists them to a
// JSON journal with time-window deduplication.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/haoyun/filedrop/internal/store"
)

// Event is one recorded download, single file or archive.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"download_date"`
	Files     []string  `json:"files"`
}

// Journal maps a client identity to its deduplicated, time-sorted events.
type Journal map[string][]Event

// Log is the download activity recorder. Record is memory-only; the journal
// file is rewritten by the periodic flush and once more on shutdown.
type Log struct {
	fs            afero.Fs
	journalPath   string
	flushInterval time.Duration
	dedupWindow   time.Duration
	clock         store.Clock
	logger        *log.Logger

	mu     sync.Mutex
	buffer map[string][]Event

	// flushMu serializes whole flushes so two read-modify-write cycles never
	// overlap on the journal file.
	flushMu sync.Mutex
}

// NewLog constructs an activity log. Nothing runs until Run is called.
func NewLog(fs afero.Fs, journalPath string, flushInterval, dedupWindow time.Duration, clock store.Clock, logger *log.Logger) *Log {
	return &Log{
		fs:            fs,
		journalPath:   journalPath,
		flushInterval: flushInterval,
		dedupWindow:   dedupWindow,
		clock:         clock,
		logger:        logger,
		buffer:        make(map[string][]Event),
	}
}

// Record appends a download event for the client. Never touches disk.
func (l *Log) Record(client, date string, names []string) {
	event := Event{
		Timestamp: l.clock.Now(),
		Date:      date,
		Files:     append([]string(nil), names...),
	}

	l.mu.Lock()
	l.buffer[client] = append(l.buffer[client], event)
	l.mu.Unlock()
}

// Flush merges buffered events into the journal, sorts per client by
// timestamp, deduplicates rapid repeats and rewrites the journal file.
// A failed flush keeps the buffered events for the next attempt.
func (l *Log) Flush() error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	pending := l.buffer
	l.buffer = make(map[string][]Event)
	l.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	journal, err := l.readJournal()
	if err == nil {
		for client, events := range pending {
			merged := append(journal[client], events...)
			sort.SliceStable(merged, func(i, j int) bool {
				return merged[i].Timestamp.Before(merged[j].Timestamp)
			})
			journal[client] = dedup(merged, l.dedupWindow)
		}
		err = l.writeJournal(journal)
	}

	if err != nil {
		// Put the events back so they are retried on the next flush.
		l.mu.Lock()
		for client, events := range pending {
			l.buffer[client] = append(events, l.buffer[client]...)
		}
		l.mu.Unlock()
		l.logger.Error("flush download records", "error", err)
		return err
	}

	l.logger.Info("saved download records", "clients", len(pending))
	return nil
}

// Snapshot forces a flush of anything buffered and returns the full journal.
func (l *Log) Snapshot() (Journal, error) {
	l.mu.Lock()
	buffered := len(l.buffer) > 0
	l.mu.Unlock()

	if buffered {
		if err := l.Flush(); err != nil {
			return nil, err
		}
	}

	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	return l.readJournal()
}

// Run flushes on every interval tick until the context is cancelled. The
// caller is responsible for the final Shutdown flush.
func (l *Log) Run(ctx context.Context) {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.Flush()
		}
	}
}

// Shutdown flushes any remaining buffered events. Callers must wait for it
// before process exit or the last interval's events are lost.
func (l *Log) Shutdown() {
	l.mu.Lock()
	buffered := len(l.buffer) > 0
	l.mu.Unlock()

	if buffered {
		l.logger.Info("shutting down, flushing download records")
		_ = l.Flush()
	}
}

func (l *Log) readJournal() (Journal, error) {
	data, err := afero.ReadFile(l.fs, l.journalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Journal{}, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var journal Journal
	if err := json.Unmarshal(data, &journal); err != nil {
		// A corrupt journal should not wedge recording forever.
		l.logger.Warn("journal unreadable, starting fresh", "error", err)
		return Journal{}, nil
	}
	return journal, nil
}

func (l *Log) writeJournal(journal Journal) error {
	data, err := json.Marshal(journal)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	if dir := filepath.Dir(l.journalPath); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	if err := afero.WriteFile(l.fs, l.journalPath, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// dedup walks a time-sorted sequence and drops events landing within the
// window after the previously kept event when their file sets match. Rapid
// repeat clicks collapse into the earliest record.
func dedup(events []Event, window time.Duration) []Event {
	kept := make([]Event, 0, len(events))
	var lastTime time.Time
	lastFiles := ""
	for _, event := range events {
		files := fileSetKey(event.Files)
		if len(kept) == 0 || event.Timestamp.Sub(lastTime) >= window || files != lastFiles {
			kept = append(kept, event)
			lastTime = event.Timestamp
			lastFiles = files
		}
	}
	return kept
}

func fileSetKey(files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
