package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"boardwatch/internal/app"
	logx "boardwatch/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./boardwatch.yaml", "path to config (yaml or json)")
	flag.Parse()

	// Used until the config (and its logging section) is loaded.
	boot := logx.NewConsole("info").With(logx.String("comp", "main"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Options{ConfigPath: cfgPath})
	if err != nil {
		boot.Error("fatal: startup failed", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		boot.Error("fatal: stopped with error", logx.Err(err))
		os.Exit(1)
	}
}
