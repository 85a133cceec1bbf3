// Package logstore keeps the device activity log: an append-only text file
// with one timestamped entry per line, and an in-memory line offset index
// that lets the log view jump straight to any page.
//
// The index is a cache. It is rebuilt from the file whenever it is empty and
// is never written to storage. Only the most recent MaxCachedLines lines are
// indexed, so only those are reachable through LoadPage.
package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/kabili207/lorachat/core/clock"
)

const (
	// DefaultPath is the activity log location on the device's SD card.
	DefaultPath = "/LoRaChat/logs.txt"

	// DefaultLinesPerPage is the number of entries on one log page.
	DefaultLinesPerPage = 4

	// DefaultMaxCachedLines caps how many recent lines the index retains.
	DefaultMaxCachedLines = 200

	// DefaultOpenRetries is how many times opening storage is retried.
	DefaultOpenRetries = 3

	// DefaultRetryInterval is the pause between storage open attempts.
	DefaultRetryInterval = 100 * time.Millisecond

	// LatestPage requests the newest page; any page past the end clamps to it.
	LatestPage = math.MaxInt
)

// ErrUnavailable is returned when the log file cannot be opened or created.
var ErrUnavailable = errors.New("log storage unavailable")

// Entry is one line of the activity log.
type Entry struct {
	Timestamp string
	Content   string
}

// Page is the result of LoadPage. Number is zero-based with 0 the oldest
// retained page; Total is always at least 1.
type Page struct {
	Entries []Entry
	Number  int
	Total   int
}

// Config configures a Store.
type Config struct {
	// Path is the log file location. Parent directories are created.
	// Default: DefaultPath.
	Path string

	// LinesPerPage is the number of entries per page. Default: 4.
	LinesPerPage int

	// MaxCachedLines caps the number of indexed lines. Default: 200.
	MaxCachedLines int

	// Clock stamps appended lines. Default: clock.New().
	Clock *clock.Clock

	// OpenRetries is the number of retries when storage cannot be opened.
	// Default: 3.
	OpenRetries int

	// RetryInterval is the pause between open retries. Default: 100ms.
	RetryInterval time.Duration

	// Logger for storage events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Store is the append-only activity log. All methods are safe for
// concurrent use; appends and page loads are serialised.
type Store struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	available bool
	offsets   []int64 // nil means the index must be rebuilt
	indexed   int64   // file size the index describes
	page      int
	pages     int
}

// New creates a Store. Call Open before use; Append and LoadPage also try
// to open storage lazily.
func New(cfg Config) *Store {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.LinesPerPage <= 0 {
		cfg.LinesPerPage = DefaultLinesPerPage
	}
	if cfg.MaxCachedLines <= 0 {
		cfg.MaxCachedLines = DefaultMaxCachedLines
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.OpenRetries < 0 {
		cfg.OpenRetries = 0
	} else if cfg.OpenRetries == 0 {
		cfg.OpenRetries = DefaultOpenRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:   cfg,
		log:   logger.WithGroup("logstore"),
		pages: 1,
	}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.cfg.Path
}

// Open prepares storage, creating the log file and its directory if needed.
// Failed attempts are retried OpenRetries times.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *Store) openLocked() error {
	if s.available {
		return nil
	}
	if s.cfg.Path == "" {
		return fmt.Errorf("%w: no path configured", ErrUnavailable)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryInterval), uint64(s.cfg.OpenRetries))
	err := backoff.Retry(s.prepare, policy)
	if err != nil {
		s.log.Error("log storage unavailable", "path", s.cfg.Path, "error", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.available = true
	s.offsets = nil
	return nil
}

func (s *Store) prepare() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Available returns true once storage has been opened successfully.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Append writes "<timestamp> <text>" as a new line and syncs it to storage.
// Line breaks inside text are replaced by spaces so that one call is always
// one line. When storage is unavailable the entry is dropped and
// ErrUnavailable is returned; callers should log it and carry on.
func (s *Store) Append(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return err
	}

	line := s.cfg.Clock.Stamp() + " " + flatten(text) + "\n"

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.available = false
		s.offsets = nil
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer f.Close()

	// The index can be extended in place only if it describes the whole file.
	before := int64(-1)
	if st, err := f.Stat(); err == nil {
		before = st.Size()
	}

	if _, err := f.WriteString(line); err != nil {
		s.offsets = nil
		return fmt.Errorf("writing log line: %w", err)
	}
	if err := f.Sync(); err != nil {
		s.offsets = nil
		return fmt.Errorf("syncing log file: %w", err)
	}

	if s.offsets != nil && before == s.indexed {
		s.indexed += int64(len(line))
		s.offsets = appendOffset(s.offsets, s.indexed, s.cfg.MaxCachedLines+1)
	} else {
		s.offsets = nil
	}
	return nil
}

// BuildIndex rescans the log file and replaces the line offset index.
func (s *Store) BuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return err
	}
	return s.buildIndexLocked()
}

func (s *Store) buildIndexLocked() error {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		s.offsets = nil
		return fmt.Errorf("opening log file for indexing: %w", err)
	}
	defer f.Close()

	offsets, size, err := scanOffsets(f, s.cfg.MaxCachedLines+1)
	if err != nil {
		s.offsets = nil
		return fmt.Errorf("indexing log file: %w", err)
	}
	s.offsets = offsets
	s.indexed = size
	return nil
}

// Invalidate drops the line index so the next LoadPage rescans the file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = nil
}

// LoadPage returns the entries of page n, oldest first. Page 0 is the oldest
// retained page and Total-1 the newest; n is clamped into that range. For a
// given file state LoadPage is idempotent. On storage failure an empty page
// is returned together with the error.
func (s *Store) LoadPage(n int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		s.page, s.pages = 0, 1
		return Page{Total: 1}, err
	}

	if s.offsets == nil {
		if err := s.buildIndexLocked(); err != nil {
			s.log.Warn("failed to index log file", "error", err)
			s.available = false
			s.page, s.pages = 0, 1
			return Page{Total: 1}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	lines := min(len(s.offsets)-1, s.cfg.MaxCachedLines)
	per := s.cfg.LinesPerPage
	s.pages = max(1, (lines+per-1)/per)
	s.page = min(max(n, 0), s.pages-1)

	page := Page{Number: s.page, Total: s.pages}
	start := s.page * per
	end := min(start+per, lines)
	if start >= end {
		return page, nil
	}

	f, err := os.Open(s.cfg.Path)
	if err != nil {
		s.offsets = nil
		return page, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(s.offsets[start], io.SeekStart); err != nil {
		s.offsets = nil
		return page, fmt.Errorf("seeking log file: %w", err)
	}

	r := bufio.NewReader(f)
	for range end - start {
		raw, err := r.ReadString('\n')
		if raw == "" && err != nil {
			break
		}
		if e, ok := parseLine(raw); ok {
			page.Entries = append(page.Entries, e)
		}
		if err != nil {
			break
		}
	}
	return page, nil
}

// CurrentPage returns the page number of the last LoadPage.
func (s *Store) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// TotalPages returns the page count computed by the last LoadPage.
func (s *Store) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// parseLine splits a raw log line into timestamp and content. A line that
// starts with a fixed-width stamp is split right after it; any other line is
// split at its first space. Empty lines and lines without a space are
// rejected.
func parseLine(raw string) (Entry, bool) {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return Entry{}, false
	}
	if len(line) > clock.StampLen && line[clock.StampLen] == ' ' {
		if _, err := time.Parse(clock.StampLayout, line[:clock.StampLen]); err == nil {
			return Entry{Timestamp: line[:clock.StampLen], Content: line[clock.StampLen+1:]}, true
		}
	}
	i := strings.IndexByte(line, ' ')
	if i <= 0 {
		return Entry{}, false
	}
	return Entry{Timestamp: line[:i], Content: line[i+1:]}, true
}

func flatten(text string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
}
