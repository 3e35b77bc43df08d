package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	AppName string `validate:"required"`
	AppEnv  string
	Port    string `validate:"required,numeric"`

	EngineURL string `validate:"required,url"`

	DebugConsoleLog       bool
	DataDownloadEnabled   bool
	DataDownloadAuto      bool
	DataDownloadFilename  string `validate:"required"`
	ReadyToMeasuringDelay int    `validate:"gte=0,lte=60"`

	RateLimit float64 `validate:"gt=0"`
	RateBurst int     `validate:"gt=0"`
}

// LoadAppConfig reads the process environment, filling in defaults, and
// validates the result.
func LoadAppConfig(validate *validator.Validate) (AppConfig, error) {
	cfg := AppConfig{
		AppName:              getEnv("APP_NAME", "Face Measurement Demo"),
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("APP_PORT", "3000"),
		EngineURL:            getEnv("AI_FACE_MEASUREMENT_URL", "ws://localhost:8000/api/v1/face/measure/ws"),
		DataDownloadFilename: getEnv("DATA_DOWNLOAD_FILENAME", "face_detection_rgb_data.txt"),
	}

	var err error
	if cfg.DebugConsoleLog, err = getEnvBool("MEASUREMENT_DEBUG_LOG", false); err != nil {
		return AppConfig{}, err
	}
	if cfg.DataDownloadEnabled, err = getEnvBool("DATA_DOWNLOAD_ENABLED", false); err != nil {
		return AppConfig{}, err
	}
	if cfg.DataDownloadAuto, err = getEnvBool("DATA_DOWNLOAD_AUTO", false); err != nil {
		return AppConfig{}, err
	}
	if cfg.ReadyToMeasuringDelay, err = getEnvInt("READY_TO_MEASURING_DELAY", 5); err != nil {
		return AppConfig{}, err
	}
	if cfg.RateBurst, err = getEnvInt("RATE_LIMIT_BURST", 100); err != nil {
		return AppConfig{}, err
	}
	if cfg.RateLimit, err = getEnvFloat("RATE_LIMIT_PER_SECOND", 50); err != nil {
		return AppConfig{}, err
	}

	if err := validate.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
