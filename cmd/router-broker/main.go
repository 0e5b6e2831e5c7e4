package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/life-stream-dev/router-telemetry-broker/internal/config"
	"github.com/life-stream-dev/router-telemetry-broker/internal/database"
	"github.com/life-stream-dev/router-telemetry-broker/internal/event"
	"github.com/life-stream-dev/router-telemetry-broker/internal/history"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/server"
)

func openStore(cfg config.Config) (database.StateStore, error) {
	if cfg.Store.Type == "mongo" {
		return database.ConnectMongo(cfg.Store.Mongo, cfg.AppName)
	}
	logger.Warn("Using the in-memory store, states are lost on restart")
	return database.NewMemoryStore(), nil
}

func main() {
	configPath := pflag.StringP("config", "c", "config.json", "configuration file (.json, .yaml or .yml)")
	debug := pflag.Bool("debug", false, "enable debug logging")
	port := pflag.IntP("port", "p", 0, "listen port, overrides the configuration file")
	bind := pflag.String("bind", "", "bind address, overrides the configuration file")
	pflag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("debug") {
		cfg.DebugMode = *debug
	}
	if pflag.CommandLine.Changed("port") {
		cfg.Port = *port
	}
	if pflag.CommandLine.Changed("bind") {
		cfg.Bind = *bind
	}
	if err := cfg.Validate(); err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		os.Exit(1)
	}

	loggerCallback := logger.Init(cfg.DebugMode, cfg.LogDir)
	logger.Debug("Application initializing...")
	fatal := func(format string, v ...interface{}) {
		logger.FatalF(format, v...)
		_ = loggerCallback.Invoke(context.Background())
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		fatal("Error occured while initializing database, details: %v", err)
	}

	var recorder history.Recorder = history.Nop{}
	historyClient, err := history.Connect(cfg.InfluxDB)
	switch {
	case err == nil:
		recorder = historyClient
	case errors.Is(err, history.ErrDisabled):
	default:
		logger.ErrorF("Telemetry history unavailable, continuing without it, details: %v", err)
	}

	broker, err := server.NewBroker(cfg, store, recorder)
	if err != nil {
		fatal("Error occured while initializing broker, details: %v", err)
	}
	if err := broker.Start(context.Background()); err != nil {
		_ = store.Close(context.Background())
		fatal("MQTT Server Start error: %v", err)
	}

	cleaner := event.NewCleaner(15 * time.Second)
	cleaner.Add(broker)
	if historyClient != nil {
		cleaner.Add(historyClient)
	}
	cleaner.Add(event.CallableFunc(store.Close))
	cleaner.Add(loggerCallback)

	cleaner.WaitForSignal(context.Background())
	if err := cleaner.Clean(); err != nil {
		os.Exit(1)
	}
}
