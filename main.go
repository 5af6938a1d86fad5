package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"pagesmith/engine"
	"pagesmith/engine/config"
	"pagesmith/engine/db"
	"pagesmith/www"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var opts struct {
	logger struct {
		level string
	}
	configPath string
}

func main() {
	// parse command line options
	flag.StringVar(&opts.logger.level, "log-level", "debug", "Set the log level")
	flag.StringVar(&opts.configPath, "config", "./config/pagesmith.conf", "Path to the config file")
	flag.Parse()

	logLevel, ok := logLevels[opts.logger.level]
	if !ok {
		log.Fatalf("Invalid log level: %s", opts.logger.level)
	}
	var handler slog.Handler
	handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// load and validate the config, then keep watching it for edits
	conf := config.ConfigSettings{}
	if err := conf.SetConfig(opts.configPath); err != nil {
		log.Fatalln("Failed to load config:", err)
	}
	if err := conf.WatchConfig(opts.configPath); err != nil {
		slog.Warn("config watcher not started", "error", err)
	}

	db.Connect(conf.RequiredSettings.DBConnectURL)

	be := engine.NewEngine(&conf)

	// start engine, restart if it stops
	go func() {
		for {
			be.Start()
		}
	}()

	// start web server
	router := www.Router{Config: &conf, Engine: be}
	router.Start()
}
