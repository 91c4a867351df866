package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// イベントの送り先
const (
	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5433）
	PostgresSSLMode  string

	JWTSecret string        // JWT署名シークレット
	AccessTTL time.Duration // アクセストークンの有効期限

	GoEnv    string // dev/prod
	FEURL    string // フロントURL（CORSで使う）
	LogLevel string // debug/info/warn/error

	CartLockTimeout  time.Duration // カート行ロックの待ち上限
	CheckoutGuardTTL time.Duration // 注文確定の二重送信ガードの保持時間
	RedisAddr        string        // 空ならガードなし

	EventBroker   string   // none/kafka/rabbitmq
	KafkaBrokers  []string // host:port のカンマ区切り
	KafkaTopic    string
	RabbitMQURI   string
	RabbitMQQueue string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    os.Getenv("GO_ENV"),
		FEURL:    os.Getenv("FE_URL"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		EventBroker:   strings.ToLower(getenv("EVENT_BROKER", BrokerNone)),
		KafkaTopic:    getenv("KAFKA_TOPIC", "orders"),
		RabbitMQURI:   os.Getenv("RABBITMQ_URI"),
		RabbitMQQueue: getenv("RABBITMQ_QUEUE", "orders"),
	}

	var err error
	if cfg.AccessTTL, err = durationOr("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CartLockTimeout, err = durationOr("CART_LOCK_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutGuardTTL, err = durationOr("CHECKOUT_GUARD_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		pgPort, err := mustAtoi("POSTGRES_PORT")
		if err != nil {
			return Config{}, err
		}
		cfg.PostgresPort = pgPort

		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.FEURL == "" {
		return Config{}, fmt.Errorf("FE_URL is required")
	}

	//ブローカーごとの必須
	switch cfg.EventBroker {
	case BrokerNone:
	case BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS is required when EVENT_BROKER=kafka")
		}
	case BrokerRabbitMQ:
		if cfg.RabbitMQURI == "" {
			return Config{}, fmt.Errorf("RABBITMQ_URI is required when EVENT_BROKER=rabbitmq")
		}
	default:
		return Config{}, fmt.Errorf("EVENT_BROKER must be one of none/kafka/rabbitmq: %q", cfg.EventBroker)
	}

	return cfg, nil
}

// DATABASE_URLが無ければPOSTGRES_*から組み立てる
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// "3s" "500ms" などを読む
func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
