package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	KafkaBrokers []string
	KafkaTopic   string

	FrontendURL string

	ReconcileInterval time.Duration
	ReconcileBatch    int

	NotifyWorkers int
	NotifyQueue   int

	AdminUserIDs []uint64 // 可调用运维接口的用户
}

// Load 先读取 files 指定的 .env（默认 .env，不存在则跳过），再读进程环境变量。
// 已存在的环境变量不会被 .env 覆盖
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DBDriver:      getEnv("DB_DRIVER", "mysql"),
		DBDSN:         getEnv("DB_DSN", "user:password@tcp(127.0.0.1:3306)/unihub?charset=utf8mb4&parseTime=True"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", "UniHub <no-reply@unihub.local>"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "unihub.notifications"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.ReconcileBatch, err = getInt("RECONCILE_BATCH", 500); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueue, err = getInt("NOTIFY_QUEUE", 256); err != nil {
		return nil, err
	}
	for _, v := range splitList(getEnv("ADMIN_USER_IDS", "")) {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, errors.New("ADMIN_USER_IDS: " + err.Error())
		}
		cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
	}
	if cfg.ReconcileInterval, err = time.ParseDuration(getEnv("RECONCILE_INTERVAL", "5m")); err != nil {
		return nil, errors.New("RECONCILE_INTERVAL: " + err.Error())
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = "dev-secret-key"
	}
	return cfg, nil
}

// SMTPEnabled 未配置 SMTP_HOST 时不发邮件
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }

// KafkaEnabled 未配置 KAFKA_BROKERS 时不投递 Kafka
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + ": " + err.Error())
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
