package config

import (
	"fmt"
	"os"
	"time"

	"assessment-service/internal/logging"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port" validate:"omitempty,numeric"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
		RequestTimeout  string `yaml:"requestTimeout"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
	} `yaml:"redis"`
	Leaderboard struct {
		TTL          string `yaml:"ttl"`
		DefaultLimit int    `yaml:"defaultLimit" validate:"gte=0"`
	} `yaml:"leaderboard"`
	Performance struct {
		Window         int     `yaml:"window" validate:"gte=0"`
		DefaultAverage float64 `yaml:"defaultAverage" validate:"gte=0,lte=100"`
	} `yaml:"performance"`
	Difficulty struct {
		HardThreshold   float64 `yaml:"hardThreshold" validate:"gte=0,lte=100"`
		MediumThreshold float64 `yaml:"mediumThreshold" validate:"gte=0,lte=100,ltefield=HardThreshold"`
	} `yaml:"difficulty"`
	Generator struct {
		BaseURL           string  `yaml:"baseURL" validate:"omitempty,url"`
		APIKey            string  `yaml:"apiKey"`
		Model             string  `yaml:"model"`
		Timeout           string  `yaml:"timeout"`
		RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"gte=0"`
		Burst             int     `yaml:"burst" validate:"gte=0"`
	} `yaml:"generator"`
	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Server.RequestTimeout = "15s"
	cfg.Leaderboard.TTL = "30s"
	cfg.Leaderboard.DefaultLimit = 10
	cfg.Performance.Window = 5
	cfg.Performance.DefaultAverage = 50
	cfg.Difficulty.HardThreshold = 80
	cfg.Difficulty.MediumThreshold = 60
	cfg.Generator.Model = "gpt-4o-mini"
	cfg.Generator.Timeout = "30s"
	cfg.Generator.RequestsPerSecond = 2
	cfg.Generator.Burst = 4
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path on top of Default and validates it.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if key := os.Getenv("GENERATOR_API_KEY"); key != "" {
		cfg.Generator.APIKey = key
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
