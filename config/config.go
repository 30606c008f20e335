package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Session SessionConfig
	LLM     LLMConfig
	Booking BookingConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DBConfig selects the appointment store. Driver is "postgres" or "sqlite";
// Path is only used by sqlite.
type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret   string
	Expiry   time.Duration
	StateTTL time.Duration
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int32
	Temperature float32
	AWSRegion   string
}

type BookingConfig struct {
	DefaultPatientName string
	CancelKeyword      string
	LockTTL            time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	apiKey := viper.GetString("LLM_API_KEY")
	if apiKey == "" {
		apiKey = viper.GetString("OPENAI_API_KEY")
	}

	config := &Config{
		App: AppConfig{
			Port:     viper.GetString("APP_PORT"),
			Env:      viper.GetString("APP_ENV"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			Path:     viper.GetString("DB_PATH"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			Secret:   viper.GetString("SESSION_SECRET"),
			Expiry:   parseDuration("SESSION_EXPIRY", 24*time.Hour),
			StateTTL: parseDuration("SESSION_TTL", 24*time.Hour),
		},
		LLM: LLMConfig{
			Provider:    viper.GetString("LLM_PROVIDER"),
			Model:       viper.GetString("LLM_MODEL"),
			APIKey:      apiKey,
			BaseURL:     viper.GetString("LLM_BASE_URL"),
			Timeout:     parseDuration("LLM_TIMEOUT", 0),
			MaxTokens:   viper.GetInt32("LLM_MAX_TOKENS"),
			Temperature: float32(viper.GetFloat64("LLM_TEMPERATURE")),
			AWSRegion:   viper.GetString("AWS_REGION"),
		},
		Booking: BookingConfig{
			DefaultPatientName: viper.GetString("BOOKING_DEFAULT_PATIENT_NAME"),
			CancelKeyword:      viper.GetString("BOOKING_CANCEL_KEYWORD"),
			LockTTL:            parseDuration("BOOKING_LOCK_TTL", 10*time.Second),
		},
	}

	if config.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_PATH", "appointments.db")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("LLM_PROVIDER", "openai")
	viper.SetDefault("LLM_MAX_TOKENS", 512)
	viper.SetDefault("LLM_TEMPERATURE", 0.2)
	viper.SetDefault("BOOKING_DEFAULT_PATIENT_NAME", "User")
	viper.SetDefault("BOOKING_CANCEL_KEYWORD", "cancel")
}

// parseDuration falls back when the key is unset or not a valid duration.
func parseDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}
