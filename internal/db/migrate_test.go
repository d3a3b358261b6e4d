package db

import (
	"testing"

	"github.com/rankbridge/rankbridge/internal/config"
)

func TestRunMigrateUnknownCommand(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "rankbridge",
		Password: "secret",
		Database: "rankbridge",
		SSLMode:  "disable",
	}
	err := RunMigrate(nil, cfg, nil, "invalid", nil)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunMigrateForceRequiresVersion(t *testing.T) {
	cfg := config.PostgresConfig{Host: "localhost", Port: 5432}
	err := RunMigrate(nil, cfg, nil, "force", nil)
	if err == nil {
		t.Fatal("expected error for missing version argument")
	}
}
