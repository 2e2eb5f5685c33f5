package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	SchedulerInterval   time.Duration
	GenerationLeadTime  time.Duration
	RoundSpacing        time.Duration
	GroupMatchSpacing   time.Duration
	DefaultRating       int
	AdvancePerPool      int
	AdvanceFromKnockout int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	CORSAllowedOrigins []string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intVar(getenv, "SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		JWTSecretKey:      jwtKey,
		ServerPort:        port,
		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
	}

	durations := []struct {
		name string
		def  time.Duration
		dst  *time.Duration
	}{
		{"SCHEDULER_INTERVAL", time.Minute, &cfg.SchedulerInterval},
		{"GENERATION_LEAD_TIME", 24 * time.Hour, &cfg.GenerationLeadTime},
		{"ROUND_SPACING", 24 * time.Hour, &cfg.RoundSpacing},
		{"GROUP_MATCH_SPACING", time.Hour, &cfg.GroupMatchSpacing},
	}
	for _, d := range durations {
		if *d.dst, err = durationVar(getenv, d.name, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		name string
		def  int
		dst  *int
	}{
		{"DEFAULT_RATING", 1000, &cfg.DefaultRating},
		{"ADVANCE_PER_POOL", 2, &cfg.AdvancePerPool},
		{"ADVANCE_FROM_KNOCKOUT", 2, &cfg.AdvanceFromKnockout},
	}
	for _, i := range ints {
		if *i.dst, err = intVar(getenv, i.name, i.def); err != nil {
			return nil, err
		}
		if *i.dst <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", i.name, *i.dst)
		}
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if origins := getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return v, nil
}
