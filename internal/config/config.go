package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config carries everything a fleet process reads from the environment.
type Config struct {
	DBName   string
	DBUser   string
	Password string
	Host     string
	Port     string

	Version     string
	Worker      string
	AppManager  string
	Environment string

	MicroserviceSecretKey string
	ListenAddr            string

	DefaultTechTableID    string
	GoogleCredentialsFile string
}

// Load reads configuration from the environment. WORKER falls back to a
// generated identity so two unconfigured workers never share a lease owner.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5432")
	v.SetDefault("LISTEN_ADDR", ":5553")
	v.SetDefault("ENVIRONMENT", "dev")

	cfg := &Config{
		DBName:                v.GetString("DBNAME"),
		DBUser:                v.GetString("DBUSER"),
		Password:              v.GetString("PASSWORD"),
		Host:                  v.GetString("HOST"),
		Port:                  v.GetString("PORT"),
		Version:               v.GetString("VERSION"),
		Worker:                v.GetString("WORKER"),
		AppManager:            v.GetString("APP_MANAGER"),
		Environment:           v.GetString("ENVIRONMENT"),
		MicroserviceSecretKey: v.GetString("MICROSERVICE_SECRET_KEY"),
		ListenAddr:            v.GetString("LISTEN_ADDR"),
		DefaultTechTableID:    v.GetString("DEFAULT_WB_TECH_TABLE_ID"),
		GoogleCredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
	}

	if cfg.DBName == "" || cfg.DBUser == "" || cfg.Host == "" {
		return nil, fmt.Errorf("database configuration incomplete: DBNAME, DBUSER and HOST are required")
	}
	if cfg.Worker == "" {
		cfg.Worker = "worker-" + uuid.New().String()[:8]
	}

	return cfg, nil
}

// ConnString builds a pgx connection string. The session timezone is pinned
// so freshness predicates compare against the marketplace's business day.
func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?timezone=%s",
		c.DBUser, c.Password, c.Host, c.Port, c.DBName, "Europe/Moscow",
	)
}

// ManagerService is the identity the manager writes into leases and health rows.
func (c *Config) ManagerService() string {
	return c.AppManager + "_app_manager"
}

// IsDev reports whether exports must be redirected to the default workbook.
func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}
