package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/flagx"
	"github.com/dmitrijs2005/taskkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15s"/"7d" strings and integer nanoseconds parse.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr              string         `json:"http_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	StorageBackend        string         `json:"storage"`
	SecretKey             string         `json:"secret_key"`
	TokenIssuer           string         `json:"token_issuer"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	RedisURL              string         `json:"redis_url"`
	CacheTTL              timex.Duration `json:"cache_ttl"`
	CORSOrigins           []string       `json:"cors_origins"`
	LogLevel              string         `json:"log_level"`
	LogBackend            string         `json:"log_backend"`
	ReadTimeout           timex.Duration `json:"read_timeout"`
	WriteTimeout          timex.Duration `json:"write_timeout"`
	ShutdownTimeout       timex.Duration `json:"shutdown_timeout"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
}

// parseJSON loads the file named by -c/-config, if any, and overlays the
// non-zero values onto config.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := sonic.ConfigStd.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	overlay(&config.HTTPAddr, c.HTTPAddr)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.StorageBackend, c.StorageBackend)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.TokenIssuer, c.TokenIssuer)
	overlay(&config.TokenValidityDuration, c.TokenValidityDuration.Duration)
	overlay(&config.RedisURL, c.RedisURL)
	overlay(&config.CacheTTL, c.CacheTTL.Duration)
	overlay(&config.LogLevel, c.LogLevel)
	overlay(&config.LogBackend, c.LogBackend)
	overlay(&config.ReadTimeout, c.ReadTimeout.Duration)
	overlay(&config.WriteTimeout, c.WriteTimeout.Duration)
	overlay(&config.ShutdownTimeout, c.ShutdownTimeout.Duration)
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	return nil
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
