package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quizbot/internal/app"
	"quizbot/internal/config"
	logx "quizbot/pkg/logx"
	"quizbot/pkg/systemd"
)

func main() {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file with BOT_TOKEN")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println("fatal: load env:", err)
		os.Exit(1)
	}

	a, err := app.New(cfgPath, envOverlay)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	log := logx.NewConsole("INFO").Component("main")
	systemd.Ready(log)
	wdCtx, wdCancel := context.WithCancel(ctx)
	go systemd.Watchdog(wdCtx, log)

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	signal.Stop(sigs)
	wdCancel()
	systemd.Stopping(log)

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

// envOverlay fills secrets the config file left empty.
func envOverlay(cfg *config.Config) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	}
	if cfg.Storage != nil && cfg.Storage.Valkey != nil && cfg.Storage.Valkey.Password == "" {
		cfg.Storage.Valkey.Password = os.Getenv("VALKEY_PASSWORD")
	}
	if cfg.HTTP.Token == "" {
		cfg.HTTP.Token = os.Getenv("HTTP_TOKEN")
	}
}
