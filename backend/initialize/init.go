package initialize

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/controllers"
	"github.com/moonseeker1/agent-manage/backend/app/db"
	jwtutil "github.com/moonseeker1/agent-manage/backend/app/jwt"
	"github.com/moonseeker1/agent-manage/backend/app/middleware"
	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/notify"
	"github.com/moonseeker1/agent-manage/backend/app/queue"
	"github.com/moonseeker1/agent-manage/backend/app/repo"
	"github.com/moonseeker1/agent-manage/backend/app/services"
	"github.com/moonseeker1/agent-manage/backend/config"
	"github.com/moonseeker1/agent-manage/backend/global"
	"github.com/moonseeker1/agent-manage/backend/router"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Rdb      *redis.Client
	Router   http.Handler
	Users    *services.UserService
	Agents   *services.AgentService
	Commands *services.CommandService
	Monitor  *services.CommandMonitor
}

func Build(configPath string) (*App, error) {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	global.Config = cfg
	global.SetLogLevel(cfg.LogLevel)
	if err := config.WatchLevel(configPath, global.SetLogLevel); err != nil {
		global.Logger.Warn().Err(err).Msg("watch config")
	}

	// Connect DB
	gdb, err := db.Connect(db.Config{Host: cfg.DB.Host, Port: cfg.DB.Port, User: cfg.DB.User, Password: cfg.DB.Pass, DBName: cfg.DB.Name})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	global.Mdb = gdb

	// Migrate
	if err := gdb.AutoMigrate(&models.User{}, &models.Agent{}, &models.AgentCommand{}, &models.AgentActivity{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	global.Rdb = rdb

	// Redis-backed dispatch structures
	cmdQueue := queue.NewCommandQueue(rdb, cfg.Command.QueueRetention)
	watch := queue.NewTimeoutWatch(rdb)
	cache := queue.NewResultCache(rdb, cfg.Command.ResultTTL, cfg.Command.ProgressTTL)
	notifier := notify.NewRedisNotifier(rdb, "")

	// Services
	userRepo := repo.NewUserRepository(gdb)
	agentRepo := repo.NewAgentRepository(gdb)
	cmdRepo := repo.NewAgentCommandRepository(gdb)
	actRepo := repo.NewActivityRepository(gdb)
	userSvc := services.NewUserService(userRepo)
	agentSvc := services.NewAgentService(agentRepo)
	actSvc := services.NewActivityService(actRepo, 100)
	cmdSvc := services.NewCommandService(cmdRepo, agentRepo, cmdQueue, watch, cache, notifier, services.CommandServiceOptions{
		DefaultTimeout:    cfg.Command.DefaultTimeout,
		DefaultMaxRetries: cfg.Command.DefaultMaxRetries,
		FetchLimit:        cfg.Command.FetchLimit,
	})
	monitor := services.NewCommandMonitor(cmdSvc, cfg.Command.MonitorInterval, cfg.Command.ReconcileEvery)
	if err := userSvc.EnsureAdmin("admin", "admin123"); err != nil {
		global.Logger.Warn().Err(err).Msg("ensure admin")
	}

	// Controllers
	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	mw := &middleware.Auth{Signer: signer}
	authCtrl := controllers.NewAuthController(userSvc, signer)
	adminCtrl := controllers.NewAdminController(userSvc)
	agentCtrl := controllers.NewAgentController(agentSvc)
	cmdCtrl := controllers.NewCommandController(cmdSvc)
	actCtrl := controllers.NewActivityController(actSvc)

	h := router.NewRouter(authCtrl, adminCtrl, agentCtrl, cmdCtrl, actCtrl, mw)

	return &App{Cfg: cfg, DB: gdb, Rdb: rdb, Router: h, Users: userSvc, Agents: agentSvc, Commands: cmdSvc, Monitor: monitor}, nil
}
