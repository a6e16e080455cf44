package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ServiceName    = "inventory-ledger"
	ServiceVersion = "0.1.0"
	envPrefix      = "INVENTORY"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	GRPC         GRPCConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
	JWT          JWTConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
}

type AppConfig struct {
	Env string `validate:"oneof=development production test"`
}

type HTTPConfig struct {
	Addr            string `validate:"required"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Enabled bool
	Addr    string `validate:"required_if=Enabled true"`
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"gt=0"`
	User            string `validate:"required"`
	Password        string
	Name            string `validate:"required"`
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN renders the go-sql-driver DSN. Times are parsed into time.Time in UTC.
func (d DatabaseConfig) DSN() string {
	c := mysql.NewConfig()
	c.User = d.User
	c.Passwd = d.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
	c.DBName = d.Name
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN()
}

type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int
	PoolSize int
	ItemTTL  time.Duration
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string `validate:"required_if=Enabled true"`
	Topic        string   `validate:"required_if=Enabled true"`
	BatchTimeout time.Duration
}

// NotificationConfig controls low-stock notification delivery
type NotificationConfig struct {
	AdminAddress string `validate:"required,email"`
	QueueSize    int    `validate:"gte=0"`
	Workers      int    `validate:"gte=0"`
	MaxAttempts  int    `validate:"gte=0"`
	Timeout      time.Duration
	RetryDelay   time.Duration
}

type JWTConfig struct {
	Secret    string `validate:"required,min=16"`
	Issuer    string
	AdminRole string `validate:"required"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string
}

type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string `validate:"required_if=Enabled true"`
	Insecure          bool
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
}

// Load reads configuration from config.toml (optional) and INVENTORY_*
// environment variables, in that order of increasing priority, on top of
// built-in defaults. A .env file in the working directory, when present,
// seeds variables that are not already set.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "/etc/inventory-ledger"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env: v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		GRPC: GRPCConfig{
			Enabled: v.GetBool("grpc.enabled"),
			Addr:    v.GetString("grpc.addr"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			PoolSize: v.GetInt("redis.pool_size"),
			ItemTTL:  v.GetDuration("redis.item_ttl"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      v.GetStringSlice("kafka.brokers"),
			Topic:        v.GetString("kafka.topic"),
			BatchTimeout: v.GetDuration("kafka.batch_timeout"),
		},
		Notification: NotificationConfig{
			AdminAddress: v.GetString("notification.admin_address"),
			QueueSize:    v.GetInt("notification.queue_size"),
			Workers:      v.GetInt("notification.workers"),
			MaxAttempts:  v.GetInt("notification.max_attempts"),
			Timeout:      v.GetDuration("notification.timeout"),
			RetryDelay:   v.GetDuration("notification.retry_delay"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AdminRole: v.GetString("jwt.admin_role"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "inventory")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.item_ttl", 10*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "LowStockAlert")
	v.SetDefault("kafka.batch_timeout", 10*time.Millisecond)

	v.SetDefault("notification.queue_size", 1000)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.max_attempts", 1)
	v.SetDefault("notification.timeout", 5*time.Second)
	v.SetDefault("notification.retry_delay", time.Second)

	v.SetDefault("jwt.issuer", ServiceName)
	v.SetDefault("jwt.admin_role", "admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
}

// Validate checks struct constraints and returns the first violations in a
// readable form.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
