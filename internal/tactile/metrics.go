package tactile

import (
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ExecutionMetrics tracks per-tool execution statistics from audit events.
// Record can be installed directly as an audit callback.
type ExecutionMetrics struct {
	mu    sync.Mutex
	tools map[string]*ToolStats
	order []string
}

// ToolStats aggregates executions of one tool.
type ToolStats struct {
	Tool      string
	Runs      int
	Succeeded int
	Failed    int
	Killed    int
	Duration  time.Duration
}

// NewExecutionMetrics creates an empty metrics tracker.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{tools: make(map[string]*ToolStats)}
}

// Record updates the statistics of the event's tool.
func (m *ExecutionMetrics) Record(event AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats(toolName(event.Command))
	switch event.Type {
	case AuditEventStart:
		stats.Runs++
	case AuditEventComplete:
		if event.Result != nil && event.Result.ExitCode == 0 {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	case AuditEventKilled:
		stats.Killed++
	case AuditEventError:
		stats.Failed++
	}
	if event.Result != nil {
		stats.Duration += event.Result.Duration
	}
}

func (m *ExecutionMetrics) stats(tool string) *ToolStats {
	s, ok := m.tools[tool]
	if !ok {
		s = &ToolStats{Tool: tool}
		m.tools[tool] = s
		m.order = append(m.order, tool)
	}
	return s
}

// Snapshot returns a copy of the statistics, slowest tool first. Ties keep
// first-use order.
func (m *ExecutionMetrics) Snapshot() []ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ToolStats, 0, len(m.order))
	for _, tool := range m.order {
		out = append(out, *m.tools[tool])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration > out[j].Duration })
	return out
}

func toolName(cmd Command) string {
	if tool := cmd.Tags["tool"]; tool != "" {
		return tool
	}
	return filepath.Base(cmd.Binary)
}
