package bootstrap

import (
	"github.com/eleven-am/focus-backend/internal/health"
	"github.com/eleven-am/focus-backend/internal/stream"
	"github.com/eleven-am/focus-backend/internal/vision"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(
	db *gorm.DB,
	redis *redis.Client,
	sidecar *vision.SidecarClient,
	analyzer *vision.Analyzer,
	streamHandler *stream.Handler,
) *health.Handler {
	return health.NewHandler(db, redis, sidecar, analyzer, streamHandler, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(h.Middleware())
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
