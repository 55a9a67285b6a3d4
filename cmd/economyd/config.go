package main

import (
	"fmt"
	"log/slog"
	"time"
)

type serverConfig struct {
	Port            uint16        `env:"PORT"             default:"8080"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"        default:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s"`

	Postgres PostgresConf

	MaxConnectAttempts  int           `env:"DB_MAX_CONNECT_ATTEMPTS" default:"5"`
	ConnectBackoff      time.Duration `env:"DB_CONNECT_BACKOFF"      default:"1s"`
	ConnectBackoffCap   time.Duration `env:"DB_CONNECT_BACKOFF_CAP"  default:"30s"`
	ConnectTimeout      time.Duration `env:"DB_CONNECT_TIMEOUT"      default:"5s"`
	HealthInterval      time.Duration `env:"DB_HEALTH_INTERVAL"      default:"30s"`
	MaintenanceInterval time.Duration `env:"DB_MAINTENANCE_INTERVAL" default:"6h"`
	RetentionAge        time.Duration `env:"DB_RETENTION_AGE"        default:"2160h"`
	ReconnectInterval   time.Duration `env:"DB_RECONNECT_INTERVAL"   default:"60s"`

	// AllowRestricted short-circuits the compliance gate for every user.
	// Only for isolated development guilds.
	AllowRestricted bool `env:"ALLOW_RESTRICTED" default:"false"`
}

type PostgresConf struct {
	Host     string `env:"PG_HOST"     default:"localhost"`
	Port     string `env:"PG_PORT"     default:"5432"`
	User     string `env:"PG_USER"     default:"myuser"`
	Password string `env:"PG_PASSWORD" default:"mypassword"`
	DBName   string `env:"PG_DBNAME"   default:"growmies"`
}

func (pc PostgresConf) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.DBName,
	)
}
