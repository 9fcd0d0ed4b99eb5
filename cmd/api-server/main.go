package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/app"
	"github.com/TETRIX8/anime/internal/config"
	"github.com/TETRIX8/anime/internal/logger"
	"github.com/TETRIX8/anime/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}

	log := logger.New(cfg.Log.Level)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer container.Close()

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: container.Router(),
	}

	tree := supervisor.NewTree(log, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.Add(supervisor.NewHTTPService(httpSrv, cfg.Server.ShutdownTimeout))
	log.WithField("addr", cfg.Server.HTTPAddr).Info("HTTP API server listening")

	if cfg.Server.GRPCAddr != "" {
		tree.Add(supervisor.NewGRPCService(cfg.Server.GRPCAddr, container.GRPCServer, cfg.Server.ShutdownTimeout))
		log.WithField("addr", cfg.Server.GRPCAddr).Info("gRPC catalog server listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("supervisor stopped")
	}
	log.Info("servers stopped")
}
