package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("analysis").Module("processor")

	log.With(String("source", "sysdefault")).Info("detection stored",
		String("species", "Merel"),
		Float64("confidence", 0.87654),
		Duration("took", 1234567*time.Microsecond))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="detection stored"`)
	assert.Contains(t, out, "module=analysis.processor")
	assert.Contains(t, out, "source=sysdefault")
	assert.Contains(t, out, "species=Merel")
	assert.Contains(t, out, "confidence=0.877")
	assert.Contains(t, out, "took=1.235s")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden")
	log.Log(LogLevelInfo, "hidden")
	log.Warn("shown")
	log.Log(LogLevelError, "also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, `msg="also shown"`)
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace, time.UTC).Trace("ring buffer read", Int("bytes", 96000))

	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "bytes=96000")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(context.Background()).Info("no trace")
	log.WithContext(WithTraceID(context.Background(), "window-1")).Info("traced")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[0]), "trace_id")
	assert.Contains(t, string(lines[1]), "trace_id=window-1")
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Error(nil).Value)
	assert.Equal(t, "error", Error(os.ErrNotExist).Key)
	assert.Equal(t, os.ErrNotExist.Error(), Error(os.ErrNotExist).Value)
}

func TestCentralLoggerWritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "birdnet.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "info"},
	})
	require.NoError(t, err)

	cl.Module("autocommit").Info("auto-commit done", String("hour", "2026101907"))
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"auto-commit done"`)
	assert.Contains(t, string(data), `"module":"autocommit"`)
	assert.Contains(t, string(data), `"hour":"2026101907"`)
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}
