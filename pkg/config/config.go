package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Crawler CrawlerConfig
	Chat    ChatConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	BaseURL      string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CrawlerConfig struct {
	MaxPages          int
	PolitenessDelayMS int
	FetchTimeoutSec   int
	RenderEnabled     bool
	RenderTimeoutSec  int
	RenderGraceMS     int
	RenderPoolSize    int
	RespectRobots     bool
	ScanBudgetSec     int
}

type ChatConfig struct {
	MaxMessageLength int
	SessionTTLMin    int
	RateLimitPerMin  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sitebot")

	viper.SetEnvPrefix("SITEBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.baseURL", "http://localhost:8080")

	viper.SetDefault("sqlite.path", "./data/sitebot.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("crawler.maxPages", 20)
	viper.SetDefault("crawler.politenessDelayMS", 500)
	viper.SetDefault("crawler.fetchTimeoutSec", 15)
	viper.SetDefault("crawler.renderEnabled", true)
	viper.SetDefault("crawler.renderTimeoutSec", 30)
	viper.SetDefault("crawler.renderGraceMS", 2000)
	viper.SetDefault("crawler.renderPoolSize", 2)
	viper.SetDefault("crawler.respectRobots", true)
	viper.SetDefault("crawler.scanBudgetSec", 300)

	viper.SetDefault("chat.maxMessageLength", 2000)
	viper.SetDefault("chat.sessionTTLMin", 30)
	viper.SetDefault("chat.rateLimitPerMin", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
