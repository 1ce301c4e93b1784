package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMemory   = "memory"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Contest   ContestConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	WebSocket WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	// Driver: "postgres" (по умолчанию) или "memory" для локального запуска без БД
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
	// MemorySeedUsers: сколько демо-пользователей создать в режиме memory
	MemorySeedUsers int `mapstructure:"memory_seed_users"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно)
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff / MaxRetryBackoff в миллисекундах
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// Configured сообщает, указан ли хотя бы один адрес Redis
func (r *RedisConfig) Configured() bool {
	return len(r.Addrs) > 0 || r.Addr != ""
}

// ContestConfig содержит настройки движка конкурсов
type ContestConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	InterRoundDelay     time.Duration `mapstructure:"inter_round_delay"`
	MaxIterations       int           `mapstructure:"max_iterations"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	StatusCacheTTL      time.Duration `mapstructure:"status_cache_ttl"`
	SystemActorID       string        `mapstructure:"system_actor_id"`
	LazyAdvanceEnabled  bool          `mapstructure:"lazy_advance_enabled"`
	LazyInterRoundDelay time.Duration `mapstructure:"lazy_inter_round_delay"`
	DisplayLimit        int           `mapstructure:"display_limit"`
}

// RateLimitConfig содержит настройки ограничения ручного продвижения раундов
type RateLimitConfig struct {
	Enabled       bool
	AdvanceLimit  int           `mapstructure:"advance_limit"`
	AdvanceWindow time.Duration `mapstructure:"advance_window"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	Cluster        ClusterConfig
	SendBuffer     int           `mapstructure:"send_buffer"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// ClusterConfig содержит настройки кластеризации
type ClusterConfig struct {
	Enabled          bool
	InstanceID       string `mapstructure:"instance_id"`
	BroadcastChannel string `mapstructure:"broadcast_channel"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.allowed_origins", []string{"*"})

	vip.SetDefault("database.driver", DatabaseDriverPostgres)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("database.memory_seed_users", 100)

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("contest.tick_interval", 10*time.Second)
	vip.SetDefault("contest.inter_round_delay", 2*time.Second)
	vip.SetDefault("contest.max_iterations", 10)
	vip.SetDefault("contest.retry_backoff", 500*time.Millisecond)
	vip.SetDefault("contest.lock_ttl", 30*time.Second)
	vip.SetDefault("contest.status_cache_ttl", 5*time.Second)
	vip.SetDefault("contest.system_actor_id", "system:auto-advance")
	vip.SetDefault("contest.lazy_advance_enabled", true)
	vip.SetDefault("contest.lazy_inter_round_delay", time.Duration(0))
	vip.SetDefault("contest.display_limit", 20)

	vip.SetDefault("rate_limit.enabled", true)
	vip.SetDefault("rate_limit.advance_limit", 10)
	vip.SetDefault("rate_limit.advance_window", time.Minute)

	vip.SetDefault("websocket.cluster.broadcast_channel", "contest:ws:broadcast")
	vip.SetDefault("websocket.send_buffer", 64)
	vip.SetDefault("websocket.ping_interval", 30*time.Second)
	vip.SetDefault("websocket.pong_wait", 60*time.Second)
	vip.SetDefault("websocket.write_wait", 10*time.Second)
	vip.SetDefault("websocket.max_message_size", 512)
}

func bindEnv(vip *viper.Viper) {
	// Database
	vip.BindEnv("database.driver", "DATABASE_DRIVER")
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")
	vip.BindEnv("database.memory_seed_users", "DATABASE_MEMORY_SEED_USERS")

	// Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Contest
	vip.BindEnv("contest.tick_interval", "CONTEST_TICK_INTERVAL")
	vip.BindEnv("contest.inter_round_delay", "CONTEST_INTER_ROUND_DELAY")
	vip.BindEnv("contest.max_iterations", "CONTEST_MAX_ITERATIONS")
	vip.BindEnv("contest.system_actor_id", "CONTEST_SYSTEM_ACTOR_ID")
	vip.BindEnv("contest.lazy_advance_enabled", "CONTEST_LAZY_ADVANCE_ENABLED")
	vip.BindEnv("contest.status_cache_ttl", "CONTEST_STATUS_CACHE_TTL")

	// Rate limit
	vip.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")

	// WebSocket Cluster
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_CLUSTER_INSTANCE_ID")
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл не обязателен: всё можно задать через env
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Driver: %s", cfg.Database.Driver)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s, configured: %t", cfg.Redis.Mode, cfg.Redis.Configured())
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Contest Tick Interval: %v", cfg.Contest.TickInterval)
		log.Printf("Contest Lazy Advance: %t", cfg.Contest.LazyAdvanceEnabled)
		log.Printf("Websocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
			return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
		}
	case DatabaseDriverMemory:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Contest.TickInterval <= 0 || c.Contest.RetryBackoff <= 0 || c.Contest.LockTTL <= 0 {
		return fmt.Errorf("contest tick_interval, retry_backoff and lock_ttl must be positive")
	}
	if c.Contest.InterRoundDelay < 0 || c.Contest.LazyInterRoundDelay < 0 {
		return fmt.Errorf("contest round delays must not be negative")
	}
	if c.Contest.MaxIterations < 4 {
		return fmt.Errorf("contest max_iterations must be at least 4, got %d", c.Contest.MaxIterations)
	}
	if c.Contest.SystemActorID == "" {
		return fmt.Errorf("contest system_actor_id is required")
	}
	if c.RateLimit.Enabled && (c.RateLimit.AdvanceLimit <= 0 || c.RateLimit.AdvanceWindow <= 0) {
		return fmt.Errorf("rate_limit advance_limit and advance_window must be positive when enabled")
	}
	if c.WebSocket.Cluster.Enabled && !c.Redis.Configured() {
		return fmt.Errorf("websocket cluster mode requires redis (check REDIS_ADDR or REDIS_ADDRS env vars)")
	}
	return nil
}
