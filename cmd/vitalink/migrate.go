package main

import (
	"fmt"

	"github.com/vitalinkhq/vitalink/internal/config"
	"github.com/vitalinkhq/vitalink/internal/db"
)

func runMigrate() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conn, err := db.Open(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}
