package logger

import (
	"context"

	"go-cats/internal/config"
	"go-cats/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the console logger and tees it into the logs collection
func NewLogger(lc fx.Lifecycle, cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Important: Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	dbWriter := NewDBLogWriter(mongodb, cfg)

	logger := zap.New(NewDBCore(baseLogger.Core(), dbWriter), zap.AddCaller()).
		With(zap.String("app_id", cfg.AppId))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}
