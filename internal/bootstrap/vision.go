package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/focus-backend/internal/stream"
	"github.com/eleven-am/focus-backend/internal/study"
	"github.com/eleven-am/focus-backend/internal/vision"
	"go.uber.org/fx"
)

func ProvideVisionConfig(cfg *Config) vision.Config {
	return vision.Config{
		SidecarURL:             cfg.VisionSidecarURL,
		Timeout:                cfg.VisionTimeout,
		ResultTTL:              cfg.ResultTTL,
		MinDetectionConfidence: cfg.MinDetectionConfidence,
		MinTrackingConfidence:  cfg.MinTrackingConfidence,
	}
}

func ProvideSidecarClient(cfg vision.Config) *vision.SidecarClient {
	return vision.NewSidecarClient(cfg)
}

// ProvideAnalyzer builds the process-wide analyzer. Detectors open on the
// first frame and are released when the app stops.
func ProvideAnalyzer(lc fx.Lifecycle, cfg vision.Config, logger *slog.Logger) *vision.Analyzer {
	analyzer := vision.NewAnalyzer(vision.NewSidecarDetectors(cfg), logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return analyzer.Close()
		},
	})
	return analyzer
}

func ProvideFrameDecoder(cfg *Config) *vision.FrameDecoder {
	return vision.NewFrameDecoder(cfg.MaxFrameBytes)
}

func ProvideStreamHandler(
	analyzer *vision.Analyzer,
	decoder *vision.FrameDecoder,
	results *vision.Store,
	sessions *study.Service,
	cfg *Config,
	logger *slog.Logger,
) *stream.Handler {
	return stream.NewHandler(analyzer, decoder, results, sessions, stream.Config{
		FrameRate:   cfg.FrameRateLimit,
		FrameBurst:  cfg.FrameBurst,
		MaxFrameAge: cfg.MaxFrameAge,
	}, logger)
}

var VisionModule = fx.Options(
	fx.Provide(
		ProvideVisionConfig,
		ProvideSidecarClient,
		ProvideAnalyzer,
		ProvideFrameDecoder,
		ProvideStreamHandler,
	),
)
