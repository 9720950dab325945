package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig lists the environment variables understood by the server. It is
// pre-filled from the current Config so that variables which are not set
// leave the existing value in place.
type envConfig struct {
	EndpointAddrHTTP     string        `env:"HTTP_ADDR"`
	DatabaseDSN          string        `env:"DATABASE_DSN"`
	MaxOpenConns         int           `env:"DB_MAX_OPEN_CONNS"`
	SecretKey            string        `env:"JWT_SECRET"`
	TokenIssuer          string        `env:"JWT_ISSUER"`
	TokenAudience        string        `env:"JWT_AUDIENCE"`
	AccessTokenMinutes   int           `env:"JWT_EXPIRY_MINUTES"`
	RefreshTokenMinutes  int           `env:"REFRESH_TOKEN_EXPIRY_MINUTES"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT"`
	MaxActiveSessions    int           `env:"MAX_ACTIVE_SESSIONS"`
	RequireRefreshSecret bool          `env:"REFRESH_REQUIRE_SECRET"`
	LogLevel             string        `env:"LOG_LEVEL"`
	S3RootUser           string        `env:"S3_ROOT_USER"`
	S3RootPassword       string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket             string        `env:"S3_BUCKET"`
	S3Region             string        `env:"S3_REGION"`
	S3BaseEndpoint       string        `env:"S3_BASE_ENDPOINT"`
	S3PublicBaseURL      string        `env:"S3_PUBLIC_BASE_URL"`
	AvatarUploadValidity time.Duration `env:"AVATAR_UPLOAD_TTL"`
	Argon2MemoryKiB      uint32        `env:"ARGON2_MEMORY_KIB"`
	Argon2Iterations     uint32        `env:"ARGON2_ITERATIONS"`
	Argon2Parallelism    uint8         `env:"ARGON2_PARALLELISM"`
}

func parseEnv(config *Config) error {
	accessMinutes := int(config.AccessTokenValidityDuration / time.Minute)
	refreshMinutes := int(config.RefreshTokenValidityDuration / time.Minute)

	e := envConfig{
		EndpointAddrHTTP:     config.EndpointAddrHTTP,
		DatabaseDSN:          config.DatabaseDSN,
		MaxOpenConns:         config.MaxOpenConns,
		SecretKey:            config.SecretKey,
		TokenIssuer:          config.TokenIssuer,
		TokenAudience:        config.TokenAudience,
		AccessTokenMinutes:   accessMinutes,
		RefreshTokenMinutes:  refreshMinutes,
		StoreTimeout:         config.StoreTimeout,
		MaxActiveSessions:    config.MaxActiveSessions,
		RequireRefreshSecret: config.RequireRefreshSecret,
		LogLevel:             config.LogLevel,
		S3RootUser:           config.S3RootUser,
		S3RootPassword:       config.S3RootPassword,
		S3Bucket:             config.S3Bucket,
		S3Region:             config.S3Region,
		S3BaseEndpoint:       config.S3BaseEndpoint,
		S3PublicBaseURL:      config.S3PublicBaseURL,
		AvatarUploadValidity: config.AvatarUploadValidity,
		Argon2MemoryKiB:      config.Argon2.Memory,
		Argon2Iterations:     config.Argon2.Iterations,
		Argon2Parallelism:    config.Argon2.Parallelism,
	}

	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	config.EndpointAddrHTTP = e.EndpointAddrHTTP
	config.DatabaseDSN = e.DatabaseDSN
	config.MaxOpenConns = e.MaxOpenConns
	config.SecretKey = e.SecretKey
	config.TokenIssuer = e.TokenIssuer
	config.TokenAudience = e.TokenAudience
	if e.AccessTokenMinutes != accessMinutes {
		config.AccessTokenValidityDuration = time.Duration(e.AccessTokenMinutes) * time.Minute
	}
	if e.RefreshTokenMinutes != refreshMinutes {
		config.RefreshTokenValidityDuration = time.Duration(e.RefreshTokenMinutes) * time.Minute
	}
	config.StoreTimeout = e.StoreTimeout
	config.MaxActiveSessions = e.MaxActiveSessions
	config.RequireRefreshSecret = e.RequireRefreshSecret
	config.LogLevel = e.LogLevel
	config.S3RootUser = e.S3RootUser
	config.S3RootPassword = e.S3RootPassword
	config.S3Bucket = e.S3Bucket
	config.S3Region = e.S3Region
	config.S3BaseEndpoint = e.S3BaseEndpoint
	config.S3PublicBaseURL = e.S3PublicBaseURL
	config.AvatarUploadValidity = e.AvatarUploadValidity
	config.Argon2.Memory = e.Argon2MemoryKiB
	config.Argon2.Iterations = e.Argon2Iterations
	config.Argon2.Parallelism = e.Argon2Parallelism
	return nil
}
