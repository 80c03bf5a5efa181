package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Push     PushConfig     `mapstructure:"push"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PushConfig struct {
	URL       string        `mapstructure:"url"`
	ServerKey string        `mapstructure:"server_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AuthConfig struct {
	APISecret       string   `mapstructure:"api_secret"`
	SchedulerSecret string   `mapstructure:"scheduler_secret"`
	CampaignSecret  string   `mapstructure:"campaign_secret"`
	JWTSecret       string   `mapstructure:"jwt_secret"`
	AllowedRoles    []string `mapstructure:"allowed_roles"`
}

type DispatchConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	MaxPerSecond int `mapstructure:"max_per_second"`
}

type QueueConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("loyaltynotify")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/loyaltynotify")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LOYALTYNOTIFY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/loyaltynotify.db")

	viper.SetDefault("push.timeout", 30*time.Second)

	viper.SetDefault("smtp.port", 587)

	viper.SetDefault("auth.allowed_roles", []string{"admin", "notificador"})

	viper.SetDefault("dispatch.batch_size", 500)
	viper.SetDefault("dispatch.max_per_second", 200)

	viper.SetDefault("queue.poll_interval", time.Minute)
	viper.SetDefault("queue.batch_limit", 20)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
