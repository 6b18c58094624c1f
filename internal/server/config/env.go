package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/formauth/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "FORMAUTH_"

// parseEnv overlays FORMAUTH_* environment variables. A dotenv file given
// with -env-file is loaded first and must exist; otherwise ".env" in the
// working directory is loaded when present. Variables already set in the
// process environment win over the file. Unparsable values panic.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	if v, ok := os.LookupEnv(envPrefix + "GRPC_ADDR"); ok {
		config.EndpointAddrGRPC = v
	}
	envString("DATABASE_DRIVER", &config.DatabaseDriver)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envString("SESSION_BACKEND", &config.SessionBackend)
	envDuration("SESSION_TTL", &config.SessionTTL)
	envDuration("SESSION_SWEEP_INTERVAL", &config.SessionSweepInterval)
	envString("REDIS_ADDR", &config.RedisAddr)
	envString("REDIS_PASSWORD", &config.RedisPassword)
	envInt("REDIS_DB", &config.RedisDB)
	envString("REDIS_KEY_PREFIX", &config.RedisKeyPrefix)
	envString("PASSWORD_HASH_ALGORITHM", &config.PasswordHashAlgorithm)
	envInt("BCRYPT_COST", &config.BcryptCost)
	envInt("MIN_PASSWORD_LENGTH", &config.MinPasswordLength)
	envBool("SECURE_COOKIES", &config.SecureCookies)
	envDuration("HEALTH_PROBE_INTERVAL", &config.HealthProbeInterval)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("LOG_FORMAT", &config.LogFormat)
}

func envString(key string, dst *string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	*dst = b
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	*dst = d
}
