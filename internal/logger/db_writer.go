package logger

import (
	"context"
	"fmt"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/config"
	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	CaseID    string
	RuleID    string
	IpAddress string
	Caller    string // Function name
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appId      string
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		collection: mongodb.DB.Collection("logs"),
		logChan:    make(chan LogEntry, 1000), // Buffer 1000 logs
		appId:      cfg.AppId,
	}

	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop the log rather than block the caller
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		w.collection.InsertOne(ctx, toRecord(w.appId, entry))
		cancel()
	}
}

func toRecord(appId string, entry LogEntry) common_models.Log {
	return common_models.Log{
		AppId:        appId,
		Message:      entry.Message,
		Caller:       entry.Caller,
		CaseID:       entry.CaseID,
		RuleID:       entry.RuleID,
		IpAddress:    entry.IpAddress,
		LogLevelId:   mapLevelToInt(entry.Level),
		CreatedOnUtc: time.Now().UTC(),
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
