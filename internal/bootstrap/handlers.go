package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/focus-backend/internal/stream"
	"github.com/eleven-am/focus-backend/internal/study"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	StudyHandler  *study.Handler
	StreamHandler *stream.Handler
	Config        *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api/v1")

	studyGroup := api.Group("/study")
	studyGroup.Use(RateLimiter(RateLimiterConfig{
		RequestsPerSecond: params.Config.APIRateLimit,
		Burst:             params.Config.APIRateBurst,
	}))
	params.StudyHandler.RegisterRoutes(studyGroup)

	params.StreamHandler.RegisterRoutes(api.Group("/stream"))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return logger
}

func ProvideStudyHandler(service *study.Service, logger *slog.Logger) *study.Handler {
	return study.NewHandler(service, logger)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideStudyHandler,
	),
	fx.Invoke(RegisterRoutes),
)
