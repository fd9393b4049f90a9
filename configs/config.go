package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicBase string
}

type Config struct {
	PostgresURI string
	RedisURI    string

	TelegramBotToken string

	GeneratorURL string

	SecretKey  string
	CookieName string

	R2 R2

	// Dispatch engine tuning.
	ScanInterval        time.Duration
	ClaimLease          time.Duration
	ScanBatchLimit      int
	DispatchConcurrency int
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", "127.0.0.1:6379"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		GeneratorURL:     getEnv("GENERATOR_URL", ""),
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "apgram_token"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicBase: getEnv("R2_PUBLIC_BASE", ""),
		},
		ScanInterval:        getEnvDuration("SCAN_INTERVAL", 10*time.Second),
		ClaimLease:          getEnvDuration("CLAIM_LEASE", 5*time.Minute),
		ScanBatchLimit:      getEnvInt("SCAN_BATCH_LIMIT", 50),
		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
