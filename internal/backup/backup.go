// Package backup takes periodic snapshots of the PowerSwitch database and
// prunes old ones.
//
// Snapshot files are named powerswitch-<UTC timestamp>.db. The timestamp
// layout is fixed width, so sorting the names sorts them by age.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "powerswitch-"
	fileSuffix = ".db"
	timeLayout = "20060102T150405.000Z"

	dirPermissions = 0o750
)

// Backuper writes a consistent copy of the database to path.
// *persistence.Store implements it.
type Backuper interface {
	Backup(ctx context.Context, path string) error
}

// Logger is the logging surface the scheduler needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls where snapshots go and how many are kept.
type Config struct {
	Dir      string
	Interval time.Duration
	Keep     int
}

// Scheduler writes snapshots into a directory.
type Scheduler struct {
	src    Backuper
	cfg    Config
	logger Logger
	now    func() time.Time
}

// New creates a scheduler writing snapshots of src.
func New(src Backuper, cfg Config) *Scheduler {
	return &Scheduler{
		src:    src,
		cfg:    cfg,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for snapshot results.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Snapshot writes one snapshot and prunes the directory down to Keep files.
// It returns the path of the new snapshot.
func (s *Scheduler) Snapshot(ctx context.Context) (string, error) {
	if s.cfg.Dir == "" {
		return "", fmt.Errorf("backup directory not configured")
	}
	if err := os.MkdirAll(s.cfg.Dir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, fileName(s.now()))
	if err := s.src.Backup(ctx, path); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	removed, err := s.prune()
	if err != nil {
		return path, fmt.Errorf("pruning snapshots: %w", err)
	}
	s.logger.Info("database snapshot written", "path", path, "pruned", removed)
	return path, nil
}

// Run takes a snapshot every Interval until ctx is cancelled.
// A zero Interval returns immediately. Failed snapshots are logged and
// the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.logger.Error("database snapshot failed", "error", err)
			}
		}
	}
}

// List returns the snapshot paths in Dir, oldest first.
func (s *Scheduler) List() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(s.cfg.Dir, name)
	}
	return paths, nil
}

func (s *Scheduler) prune() (int, error) {
	if s.cfg.Keep <= 0 {
		return 0, nil
	}
	paths, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(paths) <= s.cfg.Keep {
		return 0, nil
	}

	stale := paths[:len(paths)-s.cfg.Keep]
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return 0, fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return len(stale), nil
}

func fileName(t time.Time) string {
	return filePrefix + t.UTC().Format(timeLayout) + fileSuffix
}
