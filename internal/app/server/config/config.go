package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"punchclock/internal/domain/punch"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	// DevEnrollmentKey используется вне prod, если ключ не задан.
	DevEnrollmentKey = "dev-enrollment-key"
)

type Config struct {
	Env     string
	DB      DB
	Server  Server
	Logger  Logger
	Punch   Punch
	Devices Devices
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Punch struct {
	// DedupWindow - ширина окна, внутри которого отметки одного типа
	// одного сотрудника считаются одной.
	DedupWindow time.Duration `env:"DEDUP_WINDOW_SECONDS"`
}

type Devices struct {
	EnrollmentKey string        `env:"ENROLLMENT_KEY"`
	TokenTTL      time.Duration `env:"DEVICE_TOKEN_TTL_HOURS"`
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("run_address", ":8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("migrations_path", "migrations")
	viper.SetDefault("dedup_window_seconds", int(punch.DefaultDedupWindow/time.Second))
	viper.SetDefault("device_token_ttl_hours", 24*365)

	cfg := Config{
		Env: viper.GetString("app_env"),
		DB: DB{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
		},
		Server: Server{RunAddress: viper.GetString("run_address")},
		Logger: Logger{LogLevel: viper.GetString("log_level")},
		Punch: Punch{
			DedupWindow: time.Duration(viper.GetInt("dedup_window_seconds")) * time.Second,
		},
		Devices: Devices{
			EnrollmentKey: viper.GetString("enrollment_key"),
			TokenTTL:      time.Duration(viper.GetInt("device_token_ttl_hours")) * time.Hour,
		},
	}

	if err := cfg.validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return &cfg
}

func (c *Config) validate() error {
	if c.Devices.EnrollmentKey == "" {
		if c.Env == EnvProd {
			return errors.New("ENROLLMENT_KEY is required in prod")
		}
		c.Devices.EnrollmentKey = DevEnrollmentKey
	}
	if c.Punch.DedupWindow <= 0 {
		return errors.New("DEDUP_WINDOW_SECONDS must be positive")
	}
	if c.Devices.TokenTTL <= 0 {
		return errors.New("DEVICE_TOKEN_TTL_HOURS must be positive")
	}
	return nil
}

// InMemory - сервер без базы данных, отметки живут до перезапуска.
func (c *Config) InMemory() bool {
	return c.DB.DatabaseURI == ""
}
