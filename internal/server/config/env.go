package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/flagx"
	"github.com/dmitrijs2005/taskkeeper/internal/timex"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays Config with environment variables.
//
// A dotenv file is loaded first: the path given with -env, or ./.env when
// present. Variables already set in the process environment win over the
// file.
//
// Recognized variables:
//
//	TASKKEEPER_HTTP_ADDR, PORT           REST bind address (PORT becomes ":PORT")
//	TASKKEEPER_DATABASE_DSN, DATABASE_URL
//	TASKKEEPER_STORAGE                   postgres | memory
//	TASKKEEPER_SECRET_KEY, JWT_SECRET
//	TASKKEEPER_TOKEN_VALIDITY, JWT_EXPIRE  e.g. "7d", "12h"
//	TASKKEEPER_TOKEN_ISSUER
//	TASKKEEPER_REDIS_URL, REDIS_URL
//	TASKKEEPER_CACHE_TTL
//	TASKKEEPER_CORS_ORIGINS              comma separated
//	TASKKEEPER_LOG_LEVEL, TASKKEEPER_LOG_BACKEND
//	TASKKEEPER_S3_USER, TASKKEEPER_S3_PASSWORD, TASKKEEPER_S3_BUCKET,
//	TASKKEEPER_S3_REGION, TASKKEEPER_S3_ENDPOINT
func parseEnv(config *Config, args []string) error {
	if err := loadDotenv(flagx.EnvFile(args)); err != nil {
		return err
	}

	if v, ok := lookup("PORT"); ok {
		config.HTTPAddr = ":" + v
	}
	setString(&config.HTTPAddr, "TASKKEEPER_HTTP_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_URL", "TASKKEEPER_DATABASE_DSN")
	setString(&config.StorageBackend, "TASKKEEPER_STORAGE")
	setString(&config.SecretKey, "JWT_SECRET", "TASKKEEPER_SECRET_KEY")
	setString(&config.TokenIssuer, "TASKKEEPER_TOKEN_ISSUER")
	setString(&config.RedisURL, "REDIS_URL", "TASKKEEPER_REDIS_URL")
	setString(&config.LogLevel, "TASKKEEPER_LOG_LEVEL")
	setString(&config.LogBackend, "TASKKEEPER_LOG_BACKEND")
	setString(&config.S3RootUser, "TASKKEEPER_S3_USER")
	setString(&config.S3RootPassword, "TASKKEEPER_S3_PASSWORD")
	setString(&config.S3Bucket, "TASKKEEPER_S3_BUCKET")
	setString(&config.S3Region, "TASKKEEPER_S3_REGION")
	setString(&config.S3BaseEndpoint, "TASKKEEPER_S3_ENDPOINT")

	if v, ok := lookup("TASKKEEPER_CORS_ORIGINS"); ok {
		config.CORSOrigins = splitList(v)
	}

	if err := setDuration(&config.TokenValidityDuration, "JWT_EXPIRE", "TASKKEEPER_TOKEN_VALIDITY"); err != nil {
		return err
	}
	return setDuration(&config.CacheTTL, "TASKKEEPER_CACHE_TTL")
}

func loadDotenv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// lookup treats an empty variable as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// setString applies keys in order; later keys take precedence.
func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v, ok := lookup(k); ok {
			*dst = v
		}
	}
}

func setDuration(dst *time.Duration, keys ...string) error {
	for _, k := range keys {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*dst = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
