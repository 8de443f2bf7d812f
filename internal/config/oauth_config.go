package config

import (
	"strconv"
	"time"
)

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetTokenEntropyBytes() int
	GetConsentPolicy() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthCodeTimeout() time.Duration {
	return getEnvDuration("AUTH_CODE_TIMEOUT", 5*time.Minute)
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return getEnvDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

func (OAuth) GetTokenEntropyBytes() int {
	return getEnvInt("TOKEN_ENTROPY_BYTES", 32) // 32 bytes = 256 bits
}

// GetConsentPolicy is "prompt" (always show the consent page) or "auto"
// (skip it when a live token already covers the requested scope).
func (OAuth) GetConsentPolicy() string {
	return GetEnv("CONSENT_POLICY", "prompt")
}

func getEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvInt(envVar string, defaultValue int) int {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
