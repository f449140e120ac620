package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/focus-backend/internal/study"
	"github.com/eleven-am/focus-backend/internal/vision"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStudyStore(redisClient *redis.Client) *study.Store {
	return study.NewStore(redisClient)
}

func ProvideStudyArchive(db *gorm.DB) *study.Archive {
	return study.NewArchive(db)
}

func ProvideResultStore(redisClient *redis.Client, cfg *Config) *vision.Store {
	return vision.NewStore(redisClient, cfg.ResultTTL)
}

func ProvideStudyService(store *study.Store, archive *study.Archive, results *vision.Store, logger *slog.Logger) *study.Service {
	return study.NewService(store, archive, results, logger)
}

func RunMigrations(archive *study.Archive) error {
	return archive.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideStudyStore,
		ProvideStudyArchive,
		ProvideResultStore,
		ProvideStudyService,
	),
	fx.Invoke(RunMigrations),
)
