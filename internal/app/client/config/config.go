package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/queue"
	"punchclock/internal/domain/verification"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".punchclock"
	defaultDBName        = "punchclock.db"
	defaultStateName     = "state.json"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	DBPath        string `mapstructure:"db_path"`
	StatePath     string `mapstructure:"state_path"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	CACertPath    string `mapstructure:"ca_cert_path"`
	// MetricsAddress - адрес /metrics агента run; пусто - не слушать.
	MetricsAddress string `mapstructure:"metrics_address"`

	Sync      Sync
	Queue     queue.Config
	Site      verification.Policy
	Telemetry Telemetry
}

type Telemetry struct {
	Enabled  bool
	Endpoint string
}

type Sync struct {
	// Enabled включает фоновый агент run. Ручной sync работает всегда.
	Enabled       bool
	Interval      time.Duration
	BatchSize     int
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Пробуем найти .env в родительской директории
		envPath = "../.env"
	}

	// Загружаем .env файл если существует
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()
	setDefaults()

	config, err := build()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	return config
}

func setDefaults() {
	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("ENABLE_TLS", true)

	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	viper.SetDefault("SYNC_ENABLED", true)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("SYNC_BATCH_SIZE", 20)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 10)
	viper.SetDefault("PROBE_TIMEOUT_SECONDS", 5)

	viper.SetDefault("QUEUE_MAX_ATTEMPTS", queue.DefaultMaxAttempts)
	viper.SetDefault("QUEUE_SUBMISSION_TIMEOUT_SECONDS", int(queue.DefaultSubmissionTimeout/time.Second))
	viper.SetDefault("BACKOFF_BASE_MS", int(queue.DefaultBackoffBase/time.Millisecond))
	viper.SetDefault("BACKOFF_CAP_SECONDS", int(queue.DefaultBackoffCap/time.Second))
	viper.SetDefault("BACKOFF_JITTER", queue.DefaultBackoffJitter)

	viper.SetDefault("SITE_ID", "default")
	viper.SetDefault("SITE_RADIUS_METERS", 150.0)
	viper.SetDefault("SITE_TOLERANCE_FACTOR", 0.5)
	viper.SetDefault("SITE_MAX_ACCURACY_METERS", 50.0)
	viper.SetDefault("LOCATION_TIMEOUT_SECONDS", int(verification.DefaultLocationTimeout/time.Second))
	viper.SetDefault("BIOMETRIC_TIMEOUT_SECONDS", int(verification.DefaultBiometricTimeout/time.Second))
	viper.SetDefault("MAX_BIOMETRIC_ATTEMPTS", verification.DefaultMaxBiometricAttempts)
}

func build() (*Config, error) {
	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	// Создаем директории если их нет
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	dbPath := viper.GetString("DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(configDir, defaultDBName)
	}

	config := &Config{
		Env:            viper.GetString("APP_ENV"),
		ServerAddress:  viper.GetString("SERVER_ADDRESS"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		ConfigDir:      configDir,
		DBPath:         dbPath,
		StatePath:      filepath.Join(configDir, defaultStateName),
		EnableTLS:      viper.GetBool("ENABLE_TLS"),
		CACertPath:     viper.GetString("CA_CERT_PATH"),
		MetricsAddress: viper.GetString("METRICS_ADDRESS"),
		Telemetry: Telemetry{
			Enabled:  viper.GetBool("OTEL_ENABLED"),
			Endpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Sync: Sync{
			Enabled:       viper.GetBool("SYNC_ENABLED"),
			Interval:      seconds("SYNC_INTERVAL_SECONDS"),
			BatchSize:     viper.GetInt("SYNC_BATCH_SIZE"),
			ProbeInterval: seconds("PROBE_INTERVAL_SECONDS"),
			ProbeTimeout:  seconds("PROBE_TIMEOUT_SECONDS"),
		},
		Queue: queue.Config{
			MaxAttempts:       viper.GetInt("QUEUE_MAX_ATTEMPTS"),
			SubmissionTimeout: seconds("QUEUE_SUBMISSION_TIMEOUT_SECONDS"),
			Backoff: queue.Backoff{
				Base:   time.Duration(viper.GetInt("BACKOFF_BASE_MS")) * time.Millisecond,
				Factor: queue.DefaultBackoffFactor,
				Cap:    seconds("BACKOFF_CAP_SECONDS"),
				Jitter: viper.GetFloat64("BACKOFF_JITTER"),
			},
		},
		Site: verification.Policy{
			Policy: geofence.Policy{
				SiteID: viper.GetString("SITE_ID"),
				Center: geofence.Coordinate{
					Lat: viper.GetFloat64("SITE_LAT"),
					Lon: viper.GetFloat64("SITE_LON"),
				},
				RadiusMeters:                viper.GetFloat64("SITE_RADIUS_METERS"),
				AllowedMethods:              viper.GetStringSlice("SITE_ALLOWED_METHODS"),
				ToleranceFactor:             viper.GetFloat64("SITE_TOLERANCE_FACTOR"),
				MaxAcceptableAccuracyMeters: viper.GetFloat64("SITE_MAX_ACCURACY_METERS"),
			},
			LocationTimeout:      seconds("LOCATION_TIMEOUT_SECONDS"),
			BiometricTimeout:     seconds("BIOMETRIC_TIMEOUT_SECONDS"),
			MaxBiometricAttempts: viper.GetInt("MAX_BIOMETRIC_ATTEMPTS"),
		},
	}

	// Валидация конфигурации
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync_batch_size должен быть больше нуля")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть больше нуля")
	}
	if c.Queue.Backoff.Jitter < 0 || c.Queue.Backoff.Jitter >= 1 {
		return fmt.Errorf("backoff_jitter должен быть в диапазоне [0, 1)")
	}
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("политика площадки: %w", err)
	}
	return nil
}

// BaseURL возвращает адрес сервера со схемой
func (c *Config) BaseURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
