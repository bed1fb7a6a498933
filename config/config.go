// Package config resolves settings from three layers, later ones winning:
// config/app.json, .env, then the process environment. Only environment
// variables with a known prefix (APP_, DB_, REDIS_ ...) are picked up.
//
// Accessors load lazily, so calling config.Load at boot only surfaces
// file errors early.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu        sync.RWMutex
	values    = map[string]string{}
	overrides = map[string]string{}
)

var envPrefixes = []string{
	"APP_", "BCRYPT_", "LOG_", "DB_", "DATABASE_", "REDIS_", "JWT_", "FRONTEND_", "CORS_",
	"PAYMENT_", "STRIPE_", "TAX_", "GRPC_", "QUEUE_", "KAFKA_", "MONGO_",
	"SLACK_", "MAIL_", "STORAGE_", "S3_", "ADMIN_", "RECONCILE_",
	"PENDING_", "CACHE_", "MAX_BODY_", "RATE_LIMIT_",
}

func Load() error {
	loadOnce.Do(func() {
		loadErr = load("config/app.json", ".env")
	})
	return loadErr
}

// Set overrides key for the rest of the process. Tests use it; an empty
// value restores the accessor's fallback.
func Set(key, value string) {
	k := strings.ToUpper(key)
	mu.Lock()
	values[k] = value
	overrides[k] = value
	mu.Unlock()
}

// Get returns key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	_ = Load()
	mu.RLock()
	v := strings.TrimSpace(values[strings.ToUpper(key)])
	mu.RUnlock()
	if v == "" {
		return fallback
	}
	return v
}

// GetInt returns fallback when key is unset or not an integer.
func GetInt(key string, fallback int) int {
	n, err := strconv.Atoi(Get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// GetDuration reads a Go duration such as "90s" or "5m".
func GetDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(Get(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func load(jsonPath, envPath string) error {
	merged := map[string]string{}
	if err := readJSON(jsonPath, merged); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := readDotEnv(envPath, merged); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && fromEnv(k) {
			merged[k] = strings.TrimSpace(v)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	// Set may run before the first Load.
	for k, v := range overrides {
		merged[k] = v
	}
	values = merged
	return nil
}

// readJSON copies the string members of a flat JSON object.
func readJSON(path string, into map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	for k, v := range doc {
		if s, ok := v.(string); ok && strings.TrimSpace(k) != "" {
			into[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(s)
		}
	}
	return nil
}

func readDotEnv(path string, into map[string]string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	for k, v := range env {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			into[k] = strings.TrimSpace(v)
		}
	}
	return nil
}

func fromEnv(key string) bool {
	for _, p := range envPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
