package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"go-social-feed/internal/database"
	"go-social-feed/internal/logger"
)

func main() {
	_ = godotenv.Load()

	direction := flag.String("direction", database.DirectionUp, "migration direction: up or down")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.Parse()

	slog.SetDefault(logger.New(os.Stdout, slog.LevelInfo, os.Getenv("LOG_FORMAT")))

	if err := database.Migrate(*databaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
