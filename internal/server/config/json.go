package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/formauth/internal/flagx"
	"github.com/dmitrijs2005/formauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// "1m" style strings or integer nanoseconds. Absent keys leave the current
// value untouched.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      *string        `json:"endpoint_addr_grpc"`
	DatabaseDriver        string         `json:"database_driver"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	SessionBackend        string         `json:"session_backend"`
	SessionTTL            timex.Duration `json:"session_ttl"`
	SessionSweepInterval  timex.Duration `json:"session_sweep_interval"`
	RedisAddr             string         `json:"redis_addr"`
	RedisPassword         string         `json:"redis_password"`
	RedisDB               *int           `json:"redis_db"`
	RedisKeyPrefix        string         `json:"redis_key_prefix"`
	PasswordHashAlgorithm string         `json:"password_hash_algorithm"`
	BcryptCost            int            `json:"bcrypt_cost"`
	MinPasswordLength     *int           `json:"min_password_length"`
	SecureCookies         *bool          `json:"secure_cookies"`
	HealthProbeInterval   timex.Duration `json:"health_probe_interval"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing is loaded; an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	if c.EndpointAddrGRPC != nil {
		config.EndpointAddrGRPC = *c.EndpointAddrGRPC
	}
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SessionBackend, c.SessionBackend)
	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.SessionSweepInterval.Duration > 0 {
		config.SessionSweepInterval = c.SessionSweepInterval.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.RedisKeyPrefix, c.RedisKeyPrefix)
	setString(&config.PasswordHashAlgorithm, c.PasswordHashAlgorithm)
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MinPasswordLength != nil {
		config.MinPasswordLength = *c.MinPasswordLength
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if c.HealthProbeInterval.Duration > 0 {
		config.HealthProbeInterval = c.HealthProbeInterval.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
