package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Portal   PortalConfig   `yaml:"portal"`
	Notify   NotifyConfig   `yaml:"notify"`
	Workers  WorkersConfig  `yaml:"workers"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	Collection     string        `yaml:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type RedisConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"pool_size"`
	DetectionQueue string `yaml:"detection_queue"`
	InFlightSet    string `yaml:"in_flight_set"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type PortalConfig struct {
	BaseURL        string        `yaml:"base_url"`
	LoginPath      string        `yaml:"login_path"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

type TelegramConfig struct {
	BotToken      string        `yaml:"bot_token"`
	DefaultChatID string        `yaml:"default_chat_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type WorkersConfig struct {
	Notifier NotifierWorkerConfig `yaml:"notifier"`
}

type NotifierWorkerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	RunOnStart        bool          `yaml:"run_on_start"`
	BatchSize         int           `yaml:"batch_size"`
	BatchDelay        time.Duration `yaml:"batch_delay"`
	WatchdogThreshold time.Duration `yaml:"watchdog_threshold"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Workers.Notifier.Interval == 0 {
		c.Workers.Notifier.Interval = 2 * time.Minute
	}
	if c.Workers.Notifier.BatchSize == 0 {
		c.Workers.Notifier.BatchSize = 7
	}
	if c.Workers.Notifier.BatchDelay == 0 {
		c.Workers.Notifier.BatchDelay = 500 * time.Millisecond
	}
	if c.Workers.Notifier.WatchdogThreshold == 0 {
		c.Workers.Notifier.WatchdogThreshold = 2 * time.Minute
	}
	if c.Portal.FetchTimeout == 0 {
		c.Portal.FetchTimeout = 45 * time.Second
	}
	if c.Portal.RequestTimeout == 0 {
		c.Portal.RequestTimeout = 30 * time.Second
	}
	if c.Redis.DetectionQueue == "" {
		c.Redis.DetectionQueue = "result:detections"
	}
	if c.Redis.InFlightSet == "" {
		c.Redis.InFlightSet = "result:inflight"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "results"
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.ParseTime, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
