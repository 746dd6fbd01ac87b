package autocommit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGit records commands and answers from a script keyed by subcommand.
type fakeGit struct {
	mu       sync.Mutex
	calls    []string
	diffExit int    // 0 clean, 1 staged changes
	fail     string // subcommand that fails with exit 128
}

func (g *fakeGit) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name+" "+strings.Join(args, " ")+" @"+dir)

	switch {
	case args[0] == g.fail:
		return nil, &ExitError{Code: 128, Output: "fatal: not a git repository"}
	case args[0] == "diff" && g.diffExit != 0:
		return nil, &ExitError{Code: g.diffExit}
	}
	return nil, nil
}

func (g *fakeGit) commands() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, second, 0, time.Local)
}

func TestRunOnceCommitsStagedChanges(t *testing.T) {
	t.Parallel()

	git := &fakeGit{diffExit: 1}
	task := New(Config{File: "/srv/birds/data/output.csv", RepoDir: "/srv/birds", Minute: 1},
		WithRunner(git), WithClock(func() time.Time { return at(13, 1, 0) }))

	result, err := task.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Committed, result)

	assert.Equal(t, []string{
		"git add -- data/output.csv @/srv/birds",
		"git diff --cached --quiet -- data/output.csv @/srv/birds",
		"git commit -m Auto-commit output.csv at 2026-10-19 13:01 -- data/output.csv @/srv/birds",
	}, git.commands())
}

func TestRunOnceSkipsCleanFile(t *testing.T) {
	t.Parallel()

	git := &fakeGit{}
	task := New(Config{File: "data/output.csv", Minute: 1}, WithRunner(git))

	result, err := task.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoChanges, result)
	assert.Len(t, git.commands(), 2)
}

func TestRunOnceReportsFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		git  *fakeGit
	}{
		{"add fails", &fakeGit{fail: "add"}},
		{"diff fails", &fakeGit{diffExit: 128}},
		{"commit fails", &fakeGit{diffExit: 1, fail: "commit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := New(Config{File: "output.csv"}, WithRunner(tt.git))
			result, err := task.RunOnce(context.Background())
			require.Error(t, err)
			assert.Equal(t, Failed, result)
			assert.True(t, errors.IsCategory(err, errors.CategoryCommit))
		})
	}
}

func TestDueOncePerHour(t *testing.T) {
	t.Parallel()

	task := New(Config{File: "output.csv", Minute: 1})

	assert.False(t, task.due(at(13, 0, 59)))
	assert.True(t, task.due(at(13, 1, 0)))
	assert.False(t, task.due(at(13, 1, 1)), "same hour")
	assert.False(t, task.due(at(13, 1, 59)), "same hour")
	assert.False(t, task.due(at(13, 2, 0)))
	assert.True(t, task.due(at(14, 1, 30)), "late poll inside the minute still fires")
}

func TestStartFiresOncePerHourAndKeepsGoingAfterFailure(t *testing.T) {
	t.Parallel()

	git := &fakeGit{fail: "add"}
	clk := &clock{now: at(13, 1, 0)}
	task := New(Config{File: "output.csv", Minute: 1, PollInterval: 5 * time.Millisecond},
		WithRunner(git), WithClock(clk.Now))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Start(ctx) }()

	require.Eventually(t, func() bool { return len(git.commands()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, git.commands(), 1, "failed hour is not retried")

	clk.Set(at(14, 1, 0))
	require.Eventually(t, func() bool { return len(git.commands()) == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestCommitMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Auto-commit output.csv at 2026-10-19 09:01", CommitMessage("data/output.csv", at(9, 1, 0)))
	assert.Equal(t, "2026101909", HourKey(at(9, 59, 59)))
}

func TestExitErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
	assert.Equal(t, "exit status 128: fatal", (&ExitError{Code: 128, Output: "fatal"}).Error())
}
