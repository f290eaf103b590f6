package global

import (
	"github.com/moonseeker1/agent-manage/backend/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	Config *config.Config
	Logger zerolog.Logger
	Mdb    *gorm.DB
	Rdb    *redis.Client
)

// SetLogLevel applies a level name at runtime; unknown names are ignored.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		Logger.Warn().Str("level", level).Msg("unknown log level")
		return
	}
	Logger = Logger.Level(lvl)
}
