package main

import (
	"flag"
	"os"

	"github.com/julo/lendcore/internal/config"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/observability"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	direction := "up"
	if *down {
		direction = "down"
	}
	if err := db.Migrate(cfg.DatabaseURL, !*down); err != nil {
		logger.Error("migration failed", "direction", direction, "err", err)
		os.Exit(1)
	}
	logger.Info("migration finished", "direction", direction)
}
