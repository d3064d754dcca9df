package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	accountsdb "ms-passes/internal/accounts/db"
	accounts "ms-passes/internal/accounts/service"
	"ms-passes/internal/config"
	"ms-passes/internal/database"
	"ms-passes/internal/database/migrations"
	"ms-passes/internal/logger"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	seed := flag.Bool("seed", true, "create the default admin account after migrating up")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("[Config] .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Console: os.Stdout, MinLevel: logger.INFO})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "Schema dropped")
		return
	}

	if err := runner.MigrateUp(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *seed {
		users := accounts.NewUserService(&accountsdb.DB{Bun: bunDB}, log)
		if err := users.EnsureDefaultAdmin(ctx, cfg.Auth.DefaultAdmin, cfg.Auth.DefaultPassword); err != nil {
			log.Fatal("ACCOUNTS", err.Error())
		}
	}

	log.Info("MIGRATE", "Done")
}
