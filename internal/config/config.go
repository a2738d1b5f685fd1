package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Storage    Storage    `mapstructure:"storage"`
	Queue      Queue      `mapstructure:"queue"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Retry      Retry      `mapstructure:"retry"`
	Processing Processing `mapstructure:"processing"`
	Limits     Limits     `mapstructure:"limits"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort        string        `mapstructure:"http_port"`        // Address to listen on, e.g. ":8080"
	MaxUploadMemory int64         `mapstructure:"max_upload_memory"` // Multipart bytes kept in memory
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Storage holds configuration for the preview blob storage.
type Storage struct {
	Driver     string `mapstructure:"driver"`   // "file" or "minio"
	BaseDir    string `mapstructure:"base_dir"` // Root directory for the file driver
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Queue selects the transport batches travel through.
type Queue struct {
	Driver string `mapstructure:"driver"` // "local" or "kafka"
	Buffer int    `mapstructure:"buffer"` // Pending batches held by the local queue
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Processing holds the defaults applied when a request leaves a control unset.
type Processing struct {
	Image ImageDefaults `mapstructure:"image"`
	PDF   PDFDefaults   `mapstructure:"pdf"`
}

// ImageDefaults are the image transcoder controls.
type ImageDefaults struct {
	Quality int    `mapstructure:"quality"` // 0..100
	Format  string `mapstructure:"format"`  // auto, png, jpeg, webp
	Resize  bool   `mapstructure:"resize"`
	MaxSide int    `mapstructure:"max_side"`
}

// PDFDefaults are the PDF rasterizer controls.
type PDFDefaults struct {
	Quality int  `mapstructure:"quality"` // 0..100
	Resize  bool `mapstructure:"resize"`
	MaxSide int  `mapstructure:"max_side"`
}

// Limits bound ingested files. Zero disables a limit.
type Limits struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
	MaxPDFPages int   `mapstructure:"max_pdf_pages"`
}

// setDefaults registers the values used when the file omits a key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.max_upload_memory", 32<<20)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.bucket_name", "iconverter")

	v.SetDefault("queue.driver", "local")
	v.SetDefault("queue.buffer", 16)

	v.SetDefault("kafka.topic", "iconverter-batches")
	v.SetDefault("kafka.group_id", "iconverter")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("processing.image.quality", 80)
	v.SetDefault("processing.image.format", "auto")
	v.SetDefault("processing.image.resize", false)
	v.SetDefault("processing.image.max_side", 1600)
	v.SetDefault("processing.pdf.quality", 70)
	v.SetDefault("processing.pdf.resize", false)
	v.SetDefault("processing.pdf.max_side", 2048)

	v.SetDefault("limits.max_file_size", 0)
	v.SetDefault("limits.max_pdf_pages", 0)
}

// bindEnv binds environment variables to Viper keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.http_port":   "HTTP_PORT",
		"storage.driver":     "STORAGE_DRIVER",
		"storage.endpoint":   "MINIO_ENDPOINT",
		"storage.access_key": "MINIO_ACCESS_KEY",
		"storage.secret_key": "MINIO_SECRET_KEY",
		"queue.driver":       "QUEUE_DRIVER",
		"kafka.brokers":      "KAFKA_BROKERS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the configuration from the YAML file at path. An empty path
// yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// KAFKA_BROKERS arrives as one comma separated string.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Str("path", path).Msg("failed to load config")
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "file", "minio":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Queue.Driver {
	case "local":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("queue driver kafka needs at least one broker")
		}
	default:
		return fmt.Errorf("unknown queue driver %q", c.Queue.Driver)
	}

	return nil
}
