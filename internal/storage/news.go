// Package storage persists accepted news as append-only, human-readable
// day files partitioned by commodity bucket: <root>/<Bucket>/<YYYYMMDD>.txt.
package storage

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/quantbench/newswatch/internal/types"
)

// NoContentMarker is written in place of an empty article body.
const NoContentMarker = "(no detailed content)"

// separator is the 80-dash line closing each record block.
var separator = strings.Repeat("-", 80)

// recordHeader matches the first line of a record: "[<id>] <title>".
var recordHeader = regexp.MustCompile(`^\[(\d+)\] (.*)$`)

// flattenTitle collapses all whitespace runs, newlines included, to
// single spaces. The header line must stay a single line: a title with
// an embedded newline would spill into the record body and corrupt the
// recovery scan after restart.
func flattenTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// dayState is the in-memory view of one (bucket, day) file: the last
// assigned sequence ID and the set of titles already written. Loaded by
// one scan on first touch, maintained incrementally afterwards.
type dayState struct {
	lastID int
	titles map[string]struct{}
}

// NewsStore owns all writes to the day files. A single goroutine
// serializes every operation, which gives the exclusivity guarantee
// advisory file locks cannot: IDs within a file are strictly increasing
// from 1 with no gaps, and duplicate titles are rejected atomically with
// respect to concurrent callers.
type NewsStore struct {
	root    string
	logger  *slog.Logger
	archive *MongoArchive // optional, nil when disabled

	ops    chan func()
	done   chan struct{}
	closed sync.Once

	// days is touched only from the actor goroutine.
	days map[string]*dayState
}

// NewNewsStore creates the store and starts its writer goroutine.
// Bucket directories are created up front so the commodity mapper can
// enumerate them.
func NewNewsStore(root string, buckets []string, logger *slog.Logger) (*NewsStore, error) {
	for _, b := range append([]string{"Others"}, buckets...) {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir %s: %w", b, err)
		}
	}

	s := &NewsStore{
		root:   root,
		logger: logger.With("component", "news_store"),
		ops:    make(chan func()),
		done:   make(chan struct{}),
		days:   make(map[string]*dayState),
	}
	go s.run()
	return s, nil
}

// WithArchive attaches an optional archive mirror. Must be called
// before the store is handed to the crawler.
func (s *NewsStore) WithArchive(a *MongoArchive) *NewsStore {
	s.archive = a
	return s
}

// Root returns the markets root directory.
func (s *NewsStore) Root() string { return s.root }

func (s *NewsStore) run() {
	defer close(s.done)
	for op := range s.ops {
		op()
	}
}

// Close stops the writer goroutine after draining queued operations.
func (s *NewsStore) Close() error {
	s.closed.Do(func() { close(s.ops) })
	<-s.done
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}

// submit runs fn on the actor goroutine and waits for completion.
func (s *NewsStore) submit(fn func()) (err error) {
	// Sending on the closed ops channel panics; report it as a
	// store-closed error instead of taking the caller down.
	defer func() {
		if recover() != nil {
			err = types.ErrStoreClosed
		}
	}()

	doneCh := make(chan struct{})
	wrapped := func() {
		defer close(doneCh)
		fn()
	}
	select {
	case s.ops <- wrapped:
		<-doneCh
		return nil
	case <-s.done:
		return types.ErrStoreClosed
	}
}

// Save appends one record to the (bucket, day) file and returns the
// assigned 1-based sequence ID. On any I/O failure it returns -1 and a
// StorageError; the failure does not poison the store.
func (s *NewsStore) Save(bucket string, item types.NewsItem, day time.Time) (int, error) {
	id := -1
	var saveErr error

	err := s.submit(func() {
		id, saveErr = s.doSave(bucket, item, day)
	})
	if err != nil {
		return -1, err
	}
	if saveErr != nil {
		return -1, saveErr
	}

	if s.archive != nil {
		// Best-effort mirror; a dead archive must not block persistence.
		rec := types.SavedRecord{
			Bucket:  bucket,
			ID:      id,
			Title:   item.Title,
			Content: item.Content,
			Time:    item.PublishedAt,
			SavedAt: time.Now(),
		}
		if aerr := s.archive.Mirror(rec); aerr != nil {
			s.logger.Warn("archive mirror failed", "bucket", bucket, "id", id, "error", aerr)
		}
	}
	return id, nil
}

// CheckDuplicate reports whether a record with this exact title already
// exists in the (bucket, day) file. A missing file means no duplicate.
func (s *NewsStore) CheckDuplicate(bucket, title string, day time.Time) bool {
	dup := false
	err := s.submit(func() {
		st, err := s.loadDay(bucket, day)
		if err != nil {
			s.logger.Warn("duplicate check failed open", "bucket", bucket, "error", err)
			return
		}
		_, dup = st.titles[flattenTitle(title)]
	})
	if err != nil {
		return false
	}
	return dup
}

// CountForDay returns the number of records in the (bucket, day) file.
func (s *NewsStore) CountForDay(bucket string, day time.Time) int {
	n := 0
	_ = s.submit(func() {
		st, err := s.loadDay(bucket, day)
		if err != nil {
			return
		}
		n = st.lastID
	})
	return n
}

// doSave runs on the actor goroutine.
func (s *NewsStore) doSave(bucket string, item types.NewsItem, day time.Time) (int, error) {
	path := s.dayPath(bucket, day)
	title := flattenTitle(item.Title)

	st, err := s.loadDay(bucket, day)
	if err != nil {
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: err}
	}

	if _, ok := st.titles[title]; ok {
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: types.ErrDuplicateTitle}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: err}
	}

	id := st.lastID + 1
	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = NoContentMarker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n\n", id, title)
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(separator)
	b.WriteString("\n")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: err}
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return -1, &types.StorageError{Bucket: bucket, Path: path, Err: err}
	}

	st.lastID = id
	st.titles[title] = struct{}{}
	s.logger.Debug("record saved", "bucket", bucket, "id", id, "title", title)
	return id, nil
}

// loadDay returns the cached state for (bucket, day), scanning the file
// once if this is the first touch since startup.
func (s *NewsStore) loadDay(bucket string, day time.Time) (*dayState, error) {
	key := bucket + "/" + dayKey(day)
	if st, ok := s.days[key]; ok {
		return st, nil
	}

	st := &dayState{titles: make(map[string]struct{})}
	path := s.dayPath(bucket, day)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.days[key] = st
			return st, nil
		}
		return nil, err
	}
	defer f.Close()

	count, titles, err := scanRecords(f)
	if err != nil {
		return nil, err
	}
	st.lastID = count
	for _, t := range titles {
		st.titles[t] = struct{}{}
	}
	s.days[key] = st
	return st, nil
}

// scanRecords applies the on-disk parsing rule: a record is recognized
// by a line starting with a bracketed integer, and its title is the text
// after "[id] " up to end of line. IDs are not trusted; the record count
// is.
func scanRecords(f *os.File) (int, []string, error) {
	var titles []string
	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := recordHeader.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		count++
		titles = append(titles, m[2])
	}
	if err := sc.Err(); err != nil {
		return 0, nil, err
	}
	return count, titles, nil
}

func (s *NewsStore) dayPath(bucket string, day time.Time) string {
	return filepath.Join(s.root, bucket, dayKey(day)+".txt")
}

func dayKey(day time.Time) string {
	return day.Format("20060102")
}
