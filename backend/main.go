package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moonseeker1/agent-manage/backend/global"
	"github.com/moonseeker1/agent-manage/backend/initialize"
	"github.com/moonseeker1/agent-manage/backend/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	app, err := initialize.Build(*configPath)
	if err != nil {
		global.Logger.Fatal().Err(err).Msg("initialize")
	}

	app.Monitor.Start()

	srv := server.NewHTTPServer(app.Cfg.HTTP.Host, app.Cfg.HTTP.Port, app.Router)
	go func() {
		global.Logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			global.Logger.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	global.Logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		global.Logger.Error().Err(err).Msg("http shutdown")
	}
	if err := app.Monitor.Stop(ctx); err != nil {
		global.Logger.Error().Err(err).Msg("monitor shutdown")
	}
	if err := app.Rdb.Close(); err != nil {
		global.Logger.Error().Err(err).Msg("redis close")
	}
}
