package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/telemetry"
)

// FileStore keeps one JSON file per record under a directory, named
// <timestamp>_<agent>.json so records are externally addressable. Appends are
// serialized with a mutex; a bounded retention policy prunes the oldest
// records once MaxRecords is exceeded.
type FileStore struct {
	dir        string
	maxRecords int
	logger     *slog.Logger
	metrics    *telemetry.RouterMetrics

	mu  sync.Mutex
	now func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithMaxRecords bounds the store to n records, pruning oldest first.
// Zero means unbounded.
func WithMaxRecords(n int) FileOption {
	return func(s *FileStore) {
		s.maxRecords = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) FileOption {
	return func(s *FileStore) {
		s.logger = l
	}
}

// WithMetrics sets the metrics tracker. A nil tracker is safe.
func WithMetrics(m *telemetry.RouterMetrics) FileOption {
	return func(s *FileStore) {
		s.metrics = m
	}
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.CodePersistence, "create context directory", err).
			WithContext("dir", dir)
	}
	s := &FileStore{
		dir:        dir,
		maxRecords: 1000,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultDir returns the per-user context directory, ~/.pulser/context.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New(errors.CodeConfig, "resolve home directory", err)
	}
	return filepath.Join(home, ".pulser", "context"), nil
}

// Append implements ContextStore.
func (s *FileStore) Append(ctx context.Context, record ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&record, s.now())

	name := fmt.Sprintf("%s_%s.json", record.Timestamp, record.Agent)
	path := filepath.Join(s.dir, name)
	// Same-second appends for the same agent get a unique suffix instead of
	// overwriting the earlier record.
	for seq := 1; fileExists(path); seq++ {
		name = fmt.Sprintf("%s_%s_%d.json", record.Timestamp, record.Agent, seq)
		path = filepath.Join(s.dir, name)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		s.metrics.RecordPersistenceError(ctx, "append")
		return errors.New(errors.CodePersistence, "marshal context record", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.metrics.RecordPersistenceError(ctx, "append")
		return errors.New(errors.CodePersistence, "write context record", err).
			WithContext("path", path)
	}

	s.logger.InfoContext(ctx, "saved context record",
		slog.String("path", path),
		slog.String("agent", record.Agent))

	if s.maxRecords > 0 {
		s.prune(ctx)
	}
	return nil
}

// Recent implements ContextStore.
func (s *FileStore) Recent(ctx context.Context, limit int) ([]ContextRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	files, err := s.sortedFiles()
	if err != nil {
		s.metrics.RecordPersistenceError(ctx, "read")
		s.logger.WarnContext(ctx, "listing context directory failed", slog.String("error", err.Error()))
		return nil, nil
	}

	records := make([]ContextRecord, 0, limit)
	for _, f := range files {
		if len(records) == limit {
			break
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			s.metrics.RecordPersistenceError(ctx, "read")
			s.logger.WarnContext(ctx, "unreadable context record skipped",
				slog.String("path", f.path), slog.String("error", err.Error()))
			continue
		}
		var rec ContextRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.metrics.RecordPersistenceError(ctx, "read")
			s.logger.WarnContext(ctx, "corrupt context record skipped",
				slog.String("path", f.path), slog.String("error", err.Error()))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

type contextFile struct {
	path    string
	modTime time.Time
}

// sortedFiles lists record files newest first, by modification time with the
// file name as tie-break.
func (s *FileStore) sortedFiles() ([]contextFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	files := make([]contextFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, contextFile{
			path:    filepath.Join(s.dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path > files[j].path
		}
		return files[i].modTime.After(files[j].modTime)
	})
	return files, nil
}

// prune deletes the oldest records beyond the retention bound.
func (s *FileStore) prune(ctx context.Context) {
	files, err := s.sortedFiles()
	if err != nil || len(files) <= s.maxRecords {
		return
	}
	for _, f := range files[s.maxRecords:] {
		if err := os.Remove(f.path); err != nil {
			s.logger.WarnContext(ctx, "pruning context record failed",
				slog.String("path", f.path), slog.String("error", err.Error()))
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var _ ContextStore = (*FileStore)(nil)
