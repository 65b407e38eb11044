package ledger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditWriter appends structured audit lines to a size-rotated file. Rotation
// keeps a bounded number of backups so the audit trail cannot grow without
// limit.
type AuditWriter struct {
	log    zerolog.Logger
	closer io.Closer
}

// NewAuditWriter opens the rotating audit log described by cfg.
func NewAuditWriter(cfg config.LedgerConfig) *AuditWriter {
	sink := &lumberjack.Logger{
		Filename:   cfg.AuditLogPath,
		MaxSize:    cfg.AuditMaxSize,
		MaxBackups: cfg.AuditMaxFiles,
	}
	return newAuditWriterTo(sink, sink)
}

func newAuditWriterTo(w io.Writer, closer io.Closer) *AuditWriter {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log := zerolog.New(w).With().Timestamp().Logger()
	return &AuditWriter{log: log, closer: closer}
}

// Record appends one audit line. Failures surface through the underlying
// writer and are intentionally not returned; the caller treats the audit
// trail as best effort.
func (w *AuditWriter) Record(event string, fields map[string]any) {
	if w == nil {
		return
	}
	entry := w.log.Info().Str("event", event)
	for key, value := range fields {
		entry = entry.Interface(key, value)
	}
	entry.Msg("audit")
}

// Close flushes and closes the rotating file.
func (w *AuditWriter) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
