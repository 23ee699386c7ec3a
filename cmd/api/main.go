package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/screenseat/booking-engine/internal/app"
)

func main() {
	// missing .env is fine, flags and real env vars still apply
	godotenv.Load()

	err := app.Run()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stdout, nil)).Error(err.Error())
		os.Exit(1)
	}
}
