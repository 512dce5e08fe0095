package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/issueimport/internal/db"
)

// Config aggregates everything the server needs at startup.
type Config struct {
	DB     db.Config
	Server ServerConfig
	// NotifiedEvents lists the notification categories the store emits,
	// e.g. issue_added and issue_updated.
	NotifiedEvents []string
	// AllowedOrigins configures CORS for the tracker frontend.
	AllowedOrigins []string
	MigrationsPath string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// Load reads config.yaml from configPath, with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		DB:             db.DefaultConfig(),
		Server:         ServerConfig{Addr: ":8080"},
		NotifiedEvents: []string{"issue_added", "issue_updated"},
		AllowedOrigins: []string{"http://localhost:3000"},
		MigrationsPath: "./migrations",
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()              // allow environment overrides
	v.SetEnvPrefix("ISSUEIMPORT") // map env vars like ISSUEIMPORT_DATABASE.HOST

	// Optional: Map nested keys to flat env vars
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("notifications.events") {
		cfg.NotifiedEvents = v.GetStringSlice("notifications.events")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}

	return cfg, nil
}
