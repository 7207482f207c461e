package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Versifine/strider/internal/config"
	"github.com/Versifine/strider/internal/logger"
)

const defaultConfigPath = "configs/strider.yaml"

type overrideFlags []string

func (o *overrideFlags) String() string { return strings.Join(*o, ",") }

func (o *overrideFlags) Set(v string) error {
	*o = append(*o, v)
	return nil
}

func main() {
	var (
		envFile    = flag.String("env", ".env", "dotenv file to load before reading config (optional)")
		configPath = flag.String("config", "", "config file (default $STRIDER_CONFIG or "+defaultConfigPath+")")
		script     = flag.String("script", "", "Lua scenario driving the input (overrides scenario.script)")
		overrides  overrideFlags
	)
	flag.Var(&overrides, "set", "override a config key, e.g. -set body.move_speed=3 (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: strider [flags] run|serve|console\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "run"
	}
	if mode != "run" && mode != "serve" && mode != "console" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load env:", err)
		os.Exit(1)
	}

	if lvl := os.Getenv("STRIDER_LOG_LEVEL"); lvl != "" {
		overrides = append([]string{"logging.level=" + lvl}, overrides...)
	}
	if *script != "" {
		overrides = append(overrides, "scenario.script="+*script)
	}
	cfg, err := loadConfig(*configPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logCfg := logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File}
	if mode == "console" && logCfg.File == "" {
		// The console owns the terminal.
		logCfg.Output = io.Discard
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, mode)
	if err != nil {
		slog.Error("Failed to build rig", "error", err)
		os.Exit(1)
	}
	runErr := a.run(ctx, mode)
	if err := a.close(); err != nil {
		slog.Warn("Shutdown incomplete", "error", err)
	}
	if runErr != nil {
		slog.Error("Run failed", "mode", mode, "error", runErr)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when no path was given and the default file is missing.
func loadConfig(path string, overrides []string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("STRIDER_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path, overrides...)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Parse(nil, overrides...)
	}
	return cfg, err
}
