package kv

import "fmt"

// Config selects and configures a storage backend.
type Config struct {
	Backend       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	DatabaseURL   string
	// QuotaBytes caps stored values; zero means unlimited.
	QuotaBytes int64
}

// New creates a Storage based on the backend name.
//
// Supported backends:
//
//	"memory"   - in-process (ephemeral, default)
//	"file"     - one file per key in DataDir
//	"redis"    - Redis at RedisAddr
//	"postgres" - kv_entries table at DatabaseURL
func New(cfg Config) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStorage(cfg.QuotaBytes), nil
	case "file":
		s, err = NewFileStorage(cfg.DataDir, cfg.QuotaBytes)
	case "redis":
		s, err = NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix, cfg.QuotaBytes)
	case "postgres":
		s, err = NewGormStorage(cfg.DatabaseURL, cfg.QuotaBytes)
	default:
		return nil, fmt.Errorf("unknown kv backend: %q (supported: memory, file, redis, postgres)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
