package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	AuditRunStart      AuditEventType = "run_start"
	AuditRunComplete   AuditEventType = "run_complete"
	AuditRunError      AuditEventType = "run_error"
	AuditStageStart    AuditEventType = "stage_start"
	AuditStageComplete AuditEventType = "stage_complete"
	AuditStageError    AuditEventType = "stage_error"
	AuditFileCopy      AuditEventType = "file_copy"
	AuditTileSize      AuditEventType = "tile_size"
)

// AuditEvent is one structured entry of the run audit trail.
type AuditEvent struct {
	EventType AuditEventType
	Target    string // stage name, file, or directory
	Success   bool
	Duration  time.Duration
	Error     string
	Message   string
	Fields    []zap.Field
}

// AuditLogger writes audit events for one processing run. Every entry carries
// the run id so interleaved runs in one log file can be told apart.
type AuditLogger struct {
	runID string
}

// AuditWithRun creates an audit logger scoped to a run
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	fields := make([]zap.Field, 0, len(event.Fields)+6)
	fields = append(fields,
		zap.String("event", string(event.EventType)),
		zap.String("run", a.runID),
		zap.Bool("success", event.Success),
	)
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	fields = append(fields, event.Fields...)

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}

	logger := L().Named("audit")
	if event.Success {
		logger.Debug(msg, fields...)
		return
	}
	logger.Warn(msg, fields...)
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// RunStart logs the beginning of a processing run
func (a *AuditLogger) RunStart(source, destination string) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		Target:    destination,
		Success:   true,
		Fields:    []zap.Field{zap.String("source", source)},
	})
}

// RunComplete logs the end of a processing run
func (a *AuditLogger) RunComplete(duration time.Duration, stages int, err error) {
	event := AuditEvent{
		EventType: AuditRunComplete,
		Success:   err == nil,
		Duration:  duration,
		Fields:    []zap.Field{zap.Int("stages", stages)},
	}
	if err != nil {
		event.EventType = AuditRunError
		event.Error = err.Error()
	}
	a.Log(event)
}

// StageStart logs a stage invocation
func (a *AuditLogger) StageStart(stage, output string) {
	a.Log(AuditEvent{
		EventType: AuditStageStart,
		Target:    stage,
		Success:   true,
		Fields:    []zap.Field{zap.String("odir", output)},
	})
}

// StageComplete logs a stage completion
func (a *AuditLogger) StageComplete(stage string, duration time.Duration, err error) {
	event := AuditEvent{
		EventType: AuditStageComplete,
		Target:    stage,
		Success:   err == nil,
		Duration:  duration,
	}
	if err != nil {
		event.EventType = AuditStageError
		event.Error = err.Error()
	}
	a.Log(event)
}

// FileCopy logs a working-copy file operation
func (a *AuditLogger) FileCopy(path string, size int64, err error) {
	event := AuditEvent{
		EventType: AuditFileCopy,
		Target:    path,
		Success:   err == nil,
		Fields:    []zap.Field{zap.Int64("bytes", size)},
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.Log(event)
}

// TileSize logs the derived tile size
func (a *AuditLogger) TileSize(maxDensity float64, size int) {
	a.Log(AuditEvent{
		EventType: AuditTileSize,
		Success:   true,
		Fields: []zap.Field{
			zap.Float64("max_density", maxDensity),
			zap.Int("tile_size", size),
		},
	})
}
