package tactile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
}

func TestDirectExecutor_Execute(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"hello"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Failed())
	assert.Contains(t, result.Output(), "hello")
	assert.False(t, result.StartedAt.IsZero())
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo bad input >&2; exit 3"},
	})
	require.NoError(t, err)

	// Success should be true (command ran)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
	assert.True(t, result.IsNonZeroExit())
	assert.True(t, result.Failed())
	assert.Contains(t, result.Stderr, "bad input")
}

func TestDirectExecutor_InvalidCommand(t *testing.T) {
	executor := NewDirectExecutor()

	result, err := executor.Execute(context.Background(), Command{
		Binary: "nonexistent_binary_that_does_not_exist_12345",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.True(t, result.Failed())
}

func TestDirectExecutor_EmptyBinary(t *testing.T) {
	executor := NewDirectExecutor()

	_, err := executor.Execute(context.Background(), Command{})
	assert.Error(t, err)
}

func TestDirectExecutor_NoDefaultTimeout(t *testing.T) {
	cmd := DefaultExecutorConfig().Merge(Command{Binary: "lastile"})
	require.NotNil(t, cmd.Limits)
	assert.Zero(t, cmd.Limits.TimeoutMs)
	assert.Equal(t, int64(10*1024*1024), cmd.Limits.MaxOutputBytes)
}

func TestDirectExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	start := time.Now()
	result, err := executor.Execute(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"10"},
		Limits:    &ResourceLimits{TimeoutMs: 200},
	})
	require.NoError(t, err)

	assert.True(t, result.Killed)
	assert.Contains(t, result.KillReason, "timeout")
	assert.True(t, result.Failed())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDirectExecutor_Cancel(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result, err := executor.Execute(ctx, Command{
		Binary:    "sleep",
		Arguments: []string{"10"},
	})
	require.NoError(t, err)

	assert.True(t, result.Killed)
	assert.Equal(t, "context canceled", result.KillReason)
}

func TestDirectExecutor_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	executor := NewDirectExecutor()

	result, err := executor.Execute(context.Background(), Command{
		Binary:           "sh",
		Arguments:        []string{"-c", "echo data > out.txt"},
		WorkingDirectory: dir,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data\n", string(data))
}

func TestDirectExecutor_Environment(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	result, err := executor.Execute(context.Background(), Command{
		Binary:      "sh",
		Arguments:   []string{"-c", "echo $LIDARFLOW_TEST_VAR"},
		Environment: []string{"LIDARFLOW_TEST_VAR=tile"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tile", strings.TrimSpace(result.Stdout))
}

func TestDirectExecutor_OutputTruncation(t *testing.T) {
	skipOnWindows(t)
	config := DefaultExecutorConfig()
	config.MaxOutputBytes = 100
	executor := NewDirectExecutorWithConfig(config)

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "for i in $(seq 1 100); do echo 'This is a long line of output'; done"},
	})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Positive(t, result.TruncatedBytes)
	assert.LessOrEqual(t, len(result.Stdout), 100)
}

func TestDirectExecutor_AuditEvents(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	var mu sync.Mutex
	var events []AuditEvent
	executor.SetAuditCallback(func(e AuditEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	_, err := executor.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"audit"},
		SessionID: "run-1",
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, AuditEventStart, events[0].Type)
	assert.Equal(t, AuditEventComplete, events[1].Type)
	assert.Equal(t, "run-1", events[1].SessionID)
	require.NotNil(t, events[1].Result)
	assert.Equal(t, 0, events[1].Result.ExitCode)
}

func TestLimitedWriter(t *testing.T) {
	var buf strings.Builder
	lw := &limitedWriter{w: &buf, max: 10}

	n, err := lw.Write([]byte("12345"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = lw.Write([]byte("67890ABCDE"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	assert.Equal(t, "1234567890", buf.String())
	assert.True(t, lw.truncated)
	assert.Equal(t, int64(5), lw.discarded)
}

func TestCommandString(t *testing.T) {
	cmd := Command{
		Binary:    "/opt/LAStools/bin/lasclip",
		Arguments: []string{"-poly", "/data/ground area.shp", "-donuts"},
	}
	assert.Equal(t, `/opt/LAStools/bin/lasclip -poly "/data/ground area.shp" -donuts`, cmd.CommandString())
}

func TestExecutionResultTail(t *testing.T) {
	result := &ExecutionResult{Stdout: "a\nb\nc", Stderr: "ERROR: bad tile"}
	assert.Equal(t, "c\nERROR: bad tile", result.Tail(2))
	assert.Equal(t, "", result.Tail(0))
}

func TestRecordingExecutor(t *testing.T) {
	rec := NewRecordingExecutor(nil)

	_, err := rec.Execute(context.Background(), Command{Binary: "lasinfo"})
	require.NoError(t, err)
	_, err = rec.Execute(context.Background(), Command{Binary: "lastile"})
	require.NoError(t, err)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "lasinfo", calls[0].Binary)
	assert.Equal(t, "lastile", calls[1].Binary)

	rec.Reset()
	assert.Empty(t, rec.Calls())
}

func TestRecordingExecutor_Handler(t *testing.T) {
	rec := NewRecordingExecutor(func(ctx context.Context, cmd Command) (*ExecutionResult, error) {
		return &ExecutionResult{Success: true, ExitCode: 2, Stderr: "boom"}, nil
	})

	result, err := rec.Execute(context.Background(), Command{Binary: "lasground_new"})
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Equal(t, "boom", result.Output())
}

func TestDirectExecutor_CancelKillsChildren(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	result, err := executor.Execute(ctx, Command{
		Binary:    "sh",
		Arguments: []string{"-c", "sleep 30 & sleep 30 & wait"},
	})
	require.NoError(t, err)
	assert.True(t, result.Killed)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutionMetrics(t *testing.T) {
	m := NewExecutionMetrics()
	ground := Command{Binary: "/opt/LAStools/bin/lasground_new64", Tags: map[string]string{"tool": "lasground_new"}}
	merge := Command{Binary: "/opt/LAStools/bin/lasmerge64"}

	m.Record(AuditEvent{Type: AuditEventStart, Command: ground})
	m.Record(AuditEvent{Type: AuditEventComplete, Command: ground, Result: &ExecutionResult{Success: true, Duration: 3 * time.Second}})
	m.Record(AuditEvent{Type: AuditEventStart, Command: ground})
	m.Record(AuditEvent{Type: AuditEventComplete, Command: ground, Result: &ExecutionResult{Success: true, ExitCode: 1, Duration: time.Second}})
	m.Record(AuditEvent{Type: AuditEventStart, Command: merge})
	m.Record(AuditEvent{Type: AuditEventKilled, Command: merge, Result: &ExecutionResult{Killed: true, Duration: 10 * time.Second}})

	got := m.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, ToolStats{Tool: "lasmerge64", Runs: 1, Killed: 1, Duration: 10 * time.Second}, got[0])
	assert.Equal(t, ToolStats{Tool: "lasground_new", Runs: 2, Succeeded: 1, Failed: 1, Duration: 4 * time.Second}, got[1])
}

func TestExecutionMetrics_AsAuditCallback(t *testing.T) {
	skipOnWindows(t)
	m := NewExecutionMetrics()
	executor := NewDirectExecutor()
	executor.SetAuditCallback(m.Record)

	_, err := executor.Execute(context.Background(), Command{Binary: "true", Tags: map[string]string{"tool": "lasinfo"}})
	require.NoError(t, err)

	got := m.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "lasinfo", got[0].Tool)
	assert.Equal(t, 1, got[0].Runs)
	assert.Equal(t, 1, got[0].Succeeded)
}
