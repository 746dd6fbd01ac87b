// Package autocommit snapshots the detection store into git once per hour.
package autocommit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// Result is the outcome of a commit attempt.
type Result string

const (
	Committed Result = metrics.CommitCommitted
	NoChanges Result = metrics.CommitSkipped
	Failed    Result = metrics.CommitError
)

// Config describes what to commit and when.
type Config struct {
	File         string        // file to stage and commit
	RepoDir      string        // git work tree
	GitBinary    string        // defaults to "git"
	Minute       int           // minute of the hour the commit fires on
	PollInterval time.Duration // clock check interval, defaults to one second
}

// ConfigFromSettings builds the commit config for the detection store.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		File:         s.Output.CSV.Path,
		RepoDir:      s.ResolveRepoDir(),
		GitBinary:    s.AutoCommit.GitBinary,
		Minute:       s.AutoCommit.Minute,
		PollInterval: s.AutoCommit.PollInterval,
	}
}

// Task commits the file at most once per calendar hour.
type Task struct {
	cfg     Config
	runner  Runner
	now     func() time.Time
	metrics *metrics.CommitMetrics
	log     logger.Logger

	mu      sync.Mutex
	lastKey string
}

// Option configures a Task.
type Option func(*Task)

// WithRunner replaces the git runner.
func WithRunner(r Runner) Option {
	return func(t *Task) { t.runner = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Task) { t.now = now }
}

// WithMetrics records commit metrics.
func WithMetrics(m *metrics.CommitMetrics) Option {
	return func(t *Task) { t.metrics = m }
}

// New returns a commit task.
func New(cfg Config, opts ...Option) *Task {
	if cfg.GitBinary == "" {
		cfg.GitBinary = "git"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RepoDir == "" {
		cfg.RepoDir = filepath.Dir(cfg.File)
	}

	t := &Task{
		cfg:    cfg,
		runner: ExecRunner{},
		now:    time.Now,
		log:    logger.Global().Module("autocommit"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HourKey identifies the calendar hour of t.
func HourKey(t time.Time) string {
	return t.Format(conf.HourKeyLayout)
}

// due reports whether a commit should fire at now and marks the hour as
// attempted. The whole configured minute counts, so a late poll still fires.
func (t *Task) due(now time.Time) bool {
	if now.Minute() != t.cfg.Minute {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := HourKey(now)
	if key == t.lastKey {
		return false
	}
	t.lastKey = key
	return true
}

// Start polls the clock until ctx is cancelled and commits when due.
func (t *Task) Start(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.log.Info("auto-commit task started",
		logger.String("file", t.cfg.File),
		logger.String("repo", t.cfg.RepoDir),
		logger.Int("minute", t.cfg.Minute))
	defer t.log.Info("auto-commit task stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !t.due(t.now()) {
				continue
			}
			// Failures are logged by RunOnce; the next try is next hour.
			_, _ = t.RunOnce(ctx)
		}
	}
}

// RunOnce stages and commits the file now. A clean file is not an error.
func (t *Task) RunOnce(ctx context.Context) (Result, error) {
	now := t.now()
	start := time.Now()

	result, err := t.commit(ctx, now)
	t.metrics.RecordAttempt(string(result), time.Since(start), now)

	switch {
	case err != nil:
		t.log.Error("auto-commit failed",
			logger.String("file", t.cfg.File),
			logger.String("hour", HourKey(now)),
			logger.Error(err))
	case result == NoChanges:
		t.log.Info("auto-commit skipped, no changes", logger.String("file", t.cfg.File))
	default:
		t.log.Info("auto-commit done", logger.String("file", t.cfg.File), logger.String("hour", HourKey(now)))
	}
	return result, err
}

func (t *Task) commit(ctx context.Context, now time.Time) (Result, error) {
	target := t.target()

	if _, err := t.git(ctx, "add", "--", target); err != nil {
		return Failed, t.commitError(err, "add", now)
	}

	_, err := t.git(ctx, "diff", "--cached", "--quiet", "--", target)
	if err == nil {
		return NoChanges, nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		return Failed, t.commitError(err, "diff", now)
	}

	if _, err := t.git(ctx, "commit", "-m", CommitMessage(t.cfg.File, now), "--", target); err != nil {
		return Failed, t.commitError(err, "commit", now)
	}
	return Committed, nil
}

// CommitMessage returns the commit subject for file at now.
func CommitMessage(file string, now time.Time) string {
	return fmt.Sprintf("Auto-commit %s at %s", filepath.Base(file), now.Format("2006-01-02 15:04"))
}

// target is the file path relative to the repository when possible.
func (t *Task) target() string {
	absFile, err1 := filepath.Abs(t.cfg.File)
	absRepo, err2 := filepath.Abs(t.cfg.RepoDir)
	if err1 != nil || err2 != nil {
		return t.cfg.File
	}
	if rel, err := filepath.Rel(absRepo, absFile); err == nil {
		return rel
	}
	return absFile
}

func (t *Task) git(ctx context.Context, args ...string) ([]byte, error) {
	return t.runner.Run(ctx, t.cfg.RepoDir, t.cfg.GitBinary, args...)
}

func (t *Task) commitError(err error, step string, now time.Time) error {
	return errors.New(err).
		Component("autocommit").
		Category(errors.CategoryCommit).
		Context("step", step).
		Context("file", t.cfg.File).
		Context("hour", HourKey(now)).
		Build()
}
