package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaostockAddr    string
	CninfoSearchURL string
	CninfoStaticURL string
	OutputDir       string
	DBPath          string
	Workers         int
	LogLevel        string
	HTTPTimeout     time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars take precedence.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BaostockAddr:    getEnv("BAOSTOCK_ADDR", "public-api.baostock.com:10030"),
		CninfoSearchURL: getEnv("CNINFO_SEARCH_URL", "https://www.cninfo.com.cn/new/fulltextSearch/full"),
		CninfoStaticURL: getEnv("CNINFO_STATIC_URL", "https://static.cninfo.com.cn/"),
		OutputDir:       getEnv("OUTPUT_DIR", "."),
		DBPath:          os.Getenv("DB_PATH"),
		Workers:         getEnvInt("WORKERS", 5),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
