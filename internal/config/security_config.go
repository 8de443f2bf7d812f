package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetEnableRateLimiting() bool
	GetRateLimitPerSecond() int
	GetRateLimitBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSecret signs the login session cookie. The default is only fit
// for development.
func (Security) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "dev-session-secret-change-me")
}

func (Security) GetMaxSessionAge() time.Duration {
	return getEnvDuration("MAX_SESSION_AGE", 30*time.Minute)
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnv("ENABLE_RATE_LIMITING", "true") == "true"
}

func (Security) GetRateLimitPerSecond() int {
	return getEnvInt("RATE_LIMIT_PER_SECOND", 10)
}

func (Security) GetRateLimitBurst() int {
	return getEnvInt("RATE_LIMIT_BURST", 20)
}
