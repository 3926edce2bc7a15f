package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/closet/internal/app"
	"github.com/closet/internal/config"
	"github.com/closet/internal/logger"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("closetctl"),
		kong.Description("Maintenance commands for the closet server"),
		kong.UsageOnError(),
	)

	cfg := config.Load()
	if cli.Database != "" {
		cfg.DatabaseDriver = config.DriverSQLite
		cfg.DatabasePath = cli.Database
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	appLog, err := logger.New("development", cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer appLog.Sync()

	a, err := app.New(context.Background(), cfg, appLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := kctx.Run(newContext(a.Services(), a.Table, cfg.Location(), os.Stdout)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
