package logger

import (
	"go.uber.org/zap/zapcore"
)

// DBCore is a zap core that copies every entry to the DB writer before passing it on
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
}

// NewDBCore wraps an existing core (like console logger) and adds DB logging
func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps the DB tee on child loggers created with logger.With
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.writer.AddLog(newLogEntry(entry, fields))

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// newLogEntry picks the SLA fields we index on out of the structured fields
func newLogEntry(entry zapcore.Entry, fields []zapcore.Field) LogEntry {
	le := LogEntry{
		Level:   entry.Level,
		Message: entry.Message,
		Caller:  entry.Caller.Function,
	}

	for _, f := range fields {
		if f.Type != zapcore.StringType {
			continue
		}
		switch f.Key {
		case "case_id":
			le.CaseID = f.String
		case "rule_id":
			le.RuleID = f.String
		case "ip":
			le.IpAddress = f.String
		}
	}

	return le
}
