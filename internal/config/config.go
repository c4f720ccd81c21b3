package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

const defaultConfigPath = "config/config.yaml"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	PresetsPath string `yaml:"presets_path" env:"PRESETS_PATH" env-default:"config/presets.json" validate:"required"`

	Log        Log        `yaml:"log"`
	Server     Server     `yaml:"server"`
	Dispatcher Dispatcher `yaml:"dispatcher"`
	Upload     Upload     `yaml:"upload"`
	Uploader   Uploader   `yaml:"uploader"`
	Codec      Codec      `yaml:"codec"`
	Retry      Retry      `yaml:"retry"`
	MinIO      MinIO      `yaml:"minio"`
	Kafka      Kafka      `yaml:"kafka"`
	DB         DB         `yaml:"db"`
	Reporter   Reporter   `yaml:"reporter"`

	Presets Presets `yaml:"-"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=trace debug info warn error"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"0.0.0.0:4444" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
	MaxUploadSize   int64         `yaml:"max_upload_size" env:"SERVER_MAX_UPLOAD_SIZE" env-default:"33554432" validate:"gt=0"`
}

type Dispatcher struct {
	// Workers is the size of the job pool; 0 means one per CPU.
	Workers      int           `yaml:"workers" env:"DISPATCHER_WORKERS" env-default:"0" validate:"gte=0"`
	QueueSize    int           `yaml:"queue_size" env:"DISPATCHER_QUEUE_SIZE" env-default:"0" validate:"gte=0"`
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"DISPATCHER_DRAIN_TIMEOUT" env-default:"30s"`
}

type Upload struct {
	Dir string `yaml:"dir" env:"UPLOAD_DIR" env-default:"/tmp/gravure" validate:"required"`
}

type Uploader struct {
	Workers   int           `yaml:"workers" env:"UPLOADER_WORKERS" env-default:"4" validate:"gt=0"`
	QueueSize int           `yaml:"queue_size" env:"UPLOADER_QUEUE_SIZE" env-default:"256" validate:"gt=0"`
	Timeout   time.Duration `yaml:"timeout" env:"UPLOADER_TIMEOUT" env-default:"30s"`
}

type Codec struct {
	JPEGQuality int `yaml:"jpeg_quality" env:"CODEC_JPEG_QUALITY" env-default:"85" validate:"gte=1,lte=100"`
}

type Retry struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3" validate:"gte=1"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"100ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2" validate:"gte=1"`
}

type MinIO struct {
	Enabled   bool   `yaml:"enabled" env:"MINIO_ENABLED" env-default:"false"`
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" validate:"required_if=Enabled true"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," validate:"required_if=Enabled true"`
	IntakeTopic  string   `yaml:"intake_topic" env:"KAFKA_INTAKE_TOPIC" env-default:"gravure-intake"`
	ResultsTopic string   `yaml:"results_topic" env:"KAFKA_RESULTS_TOPIC" env-default:"gravure-results"`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"gravure"`
}

type DB struct {
	Enabled         bool          `yaml:"enabled" env:"DB_ENABLED" env-default:"false"`
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"gravure"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"gravure"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

type Reporter struct {
	BufferSize int           `yaml:"buffer_size" env:"REPORTER_BUFFER_SIZE" env-default:"1024" validate:"gt=0"`
	Timeout    time.Duration `yaml:"timeout" env:"REPORTER_TIMEOUT" env-default:"5s"`
}

// MustLoad reads the YAML config at path (or CONFIG_PATH, or the default
// location), applies env overrides, loads presets and validates everything.
func MustLoad(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	}

	presets, err := LoadPresets(cfg.PresetsPath)
	if err != nil {
		return nil, err
	}
	cfg.Presets = presets

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) WorkerCount() int {
	if c.Dispatcher.Workers > 0 {
		return c.Dispatcher.Workers
	}
	return runtime.NumCPU()
}

func (c *Config) QueueSize() int {
	if c.Dispatcher.QueueSize > 0 {
		return c.Dispatcher.QueueSize
	}
	return 4 * c.WorkerCount()
}
