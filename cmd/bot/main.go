package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sigmah735-debug/telegrambot/internal/app"
)

func main() {
	var settingsPath string
	flag.StringVar(&settingsPath, "settings", "./settings.json", "path to settings file (json or yaml)")
	flag.Parse()

	// Best-effort: a local .env may carry TELEGRAM_TOKEN during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(settingsPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = a.Stop(context.Background())
}
