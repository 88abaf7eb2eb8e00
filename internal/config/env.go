package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// APIKey protects every route except health and metrics when set.
	APIKey   string `envconfig:"API_KEY"`
	Timezone string `envconfig:"TIMEZONE" default:"Local"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:"."`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"ultrona/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	// MinIO settings (used when Type == "minio")
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET"`
	MinioPrefix    string `envconfig:"MINIO_PREFIX" default:"ultrona/"`
	MinioRegion    string `envconfig:"MINIO_REGION"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"true"`
}

type RecordEnv struct {
	RecordFile  string `envconfig:"RECORD_FILE" default:"registro_mant_ultrona.xlsx"`
	BackupDir   string `envconfig:"BACKUP_DIR" default:"backups_ultrona"`
	OptionsFile string `envconfig:"OPTIONS_FILE"`
}

type Env struct {
	BaseEnv
	StorageEnv
	RecordEnv
}

const namespace = "MANTLOG"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if _, err := env.Location(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// Location resolves Timezone; backup names and default timestamps use it.
func (e *BaseEnv) Location() (*time.Location, error) {
	if e == nil || e.Timezone == "" || e.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}
