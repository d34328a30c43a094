// Package main runs the cloudmask HTTP API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"cloudmask/adapters/engine"
	"cloudmask/api"
	"cloudmask/internal/config"
	"cloudmask/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	cfgFile := flag.String("config", "", "config file path")
	flag.Parse()

	if *cfgFile != "" {
		cfg, err := config.Load(*cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Set(cfg)
	}
	cfg := config.Get()
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	defer logging.Sync()

	session, err := engine.NewSession(context.Background(), engine.Config{
		Endpoint: cfg.Engine.Endpoint,
		Project:  cfg.Engine.Project,
		Token:    os.Getenv(cfg.Engine.TokenEnv),
		Timeout:  time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logging.Error("connecting to image service", zap.Error(err))
		os.Exit(1)
	}

	server := api.NewServer("0.1.0", session, cfg.Output.Zoom, cfg.Output.MinZoom)
	logging.Info("listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, server.Handler()); err != nil {
		logging.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
