package config

import "time"

type StorageConfig interface {
	GetStorageBackend() string
	GetDatabaseURL() string
	GetRedisURL() string
	GetSweepInterval() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageBackend is "memory", "postgres" or "redis".
func (Storage) GetStorageBackend() string {
	return GetEnv("STORAGE_BACKEND", "memory")
}

func (Storage) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

// GetSweepInterval controls how often expired codes and tokens are purged.
// Zero disables the sweeper.
func (Storage) GetSweepInterval() time.Duration {
	return getEnvDuration("SWEEP_INTERVAL", 10*time.Minute)
}
