package internal

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/kohaven/medley/internal/api"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/internal/feed"
)

// MedleyConfig is the struct used to contain the
// various user config supplied by file, or
// manually inside the code.
type MedleyConfig struct {
	Services      ServiceConfig           `yaml:"docker_services"`
	Database      database.DatabaseConfig `yaml:"database" env-required:"true"`
	IngestService feed.Config             `yaml:"ingestion"`
	RestConfig    api.RestConfig          `yaml:"api"`
}

// ServiceConfig is used to enable/disable the internal intialisation of
// supporting services for Medley. By default, these will be enabled so that
// Medley will initialise them automatically.
type ServiceConfig struct {
	EnablePostgres bool `yaml:"enable_postgres" env:"SERVICE_ENABLE_POSTGRES" env-default:"true"`
	EnablePgAdmin  bool `yaml:"enable_pg_admin" env:"SERVICE_ENABLE_PGADMIN" env-default:"true"`
}

// Loads a configuration file formatted in YAML in to a
// MedleyConfig struct ready to be passed to Medley
func (config *MedleyConfig) LoadFromFile(configPath string) error {
	err := cleanenv.ReadConfig(configPath, config)
	if err != nil {
		return fmt.Errorf("failed to load configuration for MedleyConfig - %v", err.Error())
	}

	return nil
}
