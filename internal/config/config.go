package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// DefaultAdminPassword 只用于本地开发，非 dev 环境会被 Validate 拒绝。
const DefaultAdminPassword = "admin-change-me"

type Config struct {
	Port              string
	Env               string
	DatabaseDriver    string
	DatabaseDSN       string
	AdminPassword     string
	AdminPasswordHash string
	AllowedOrigins    []string
	RateLimitMax      int
	RateLimitWindowMS int
	HistoryLimit      int
	MaxMessageLength  int
	ProfanityWords    string
	StaticDir         string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 读取正整数，非法或非正值回落到默认值。
func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitOrigins(raw ...string) []string {
	var out []string
	for _, r := range raw {
		for _, o := range strings.Split(r, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func Load() Config {
	origins := splitOrigins(
		getenv("ALLOWED_ORIGINS", "http://localhost:3001,http://127.0.0.1:3001"),
		getenv("FRONTEND_URL", ""),
	)
	return Config{
		Port:              getenv("APP_PORT", "3001"),
		Env:               getenv("APP_ENV", "dev"),
		DatabaseDriver:    getenv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:       getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=chatnow port=5432 sslmode=disable TimeZone=UTC"),
		AdminPassword:     getenv("ADMIN_PASSWORD", DefaultAdminPassword),
		AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:    origins,
		RateLimitMax:      getenvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindowMS: getenvInt("RATE_LIMIT_WINDOW_MS", 1000),
		HistoryLimit:      getenvInt("HISTORY_LIMIT", 50),
		MaxMessageLength:  getenvInt("MAX_MESSAGE_LENGTH", 500),
		ProfanityWords:    getenv("PROFANITY_WORDS_FILE", ""),
		StaticDir:         getenv("STATIC_DIR", ""),
	}
}

// Validate 在启动前检查配置，生产环境禁止使用默认管理员密码。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: empty port")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: empty database dsn")
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("config: unsupported database driver " + strconv.Quote(cfg.DatabaseDriver))
	}
	if cfg.AdminPasswordHash != "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return errors.New("config: admin password is required")
	}
	if cfg.Env != "dev" && cfg.AdminPassword == DefaultAdminPassword {
		return errors.New("config: default admin password outside dev")
	}
	return nil
}
