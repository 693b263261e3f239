package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	GC        GCConfig        `yaml:"gc"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	BasePath          string `yaml:"base_path"`
	MaxFileSize       int64  `yaml:"max_file_size"`
	DefaultUserQuota  int64  `yaml:"default_user_quota"`
	DefaultExpiryDays int    `yaml:"default_expiry_days"`
	MaxExpiryDays     int    `yaml:"max_expiry_days"`
	FileIDLength      int    `yaml:"file_id_length"`
}

type ThumbnailConfig struct {
	Quality    int    `yaml:"quality"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	// 指针区分「未配置」和显式的 0 秒偏移。
	FrameOffset *float64 `yaml:"frame_offset"`
}

type GCConfig struct {
	// 指针区分「未配置」和显式的午夜零点。
	DailyHour          *int `yaml:"daily_hour"`
	SweepEveryNMinutes int  `yaml:"sweep_every_n_minutes"`
	BatchSize          int  `yaml:"batch_size"`
}

type RateLimitConfig struct {
	Enabled          bool `yaml:"enabled"`
	UploadsPerMinute int  `yaml:"uploads_per_minute"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data"
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 512 * 1024 * 1024
	}
	if cfg.Storage.DefaultUserQuota == 0 {
		cfg.Storage.DefaultUserQuota = 10 * 1024 * 1024 * 1024
	}
	if cfg.Storage.DefaultExpiryDays == 0 {
		cfg.Storage.DefaultExpiryDays = 30
	}
	if cfg.Storage.MaxExpiryDays == 0 {
		cfg.Storage.MaxExpiryDays = 365
	}
	if cfg.Storage.FileIDLength == 0 {
		cfg.Storage.FileIDLength = 10
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = 85
	}
	if cfg.Thumbnail.FFmpegPath == "" {
		cfg.Thumbnail.FFmpegPath = "ffmpeg"
	}
	if cfg.Thumbnail.FrameOffset == nil {
		offset := 1.0
		cfg.Thumbnail.FrameOffset = &offset
	}
	if cfg.GC.DailyHour == nil {
		hour := 2
		cfg.GC.DailyHour = &hour
	}
	if cfg.GC.SweepEveryNMinutes == 0 {
		cfg.GC.SweepEveryNMinutes = 60
	}
	if cfg.GC.BatchSize == 0 {
		cfg.GC.BatchSize = 500
	}
	if cfg.RateLimit.UploadsPerMinute == 0 {
		cfg.RateLimit.UploadsPerMinute = 30
	}
}
