package config

import (
	"fmt"
	"time"

	"selftracker/pkg/config"
)

// WorkerConfig 异步成就 worker 的配置
type WorkerConfig struct {
	DedupTTL   time.Duration `yaml:"dedup_ttl"`
	RetryTTL   time.Duration `yaml:"retry_ttl"`
	MaxRetries int64         `yaml:"max_retries"`
	HealthPort string        `yaml:"health_port"`
}

type Config struct {
	Server    config.ServerConfig    `yaml:"server"`
	DB        config.DBConfig        `yaml:"db"`
	Redis     config.RedisConfig     `yaml:"redis"`
	MQ        config.MQConfig        `yaml:"mq"`
	JWT       config.JWTConfig       `yaml:"jwt"`
	Log       config.LogConfig       `yaml:"log"`
	RateLimit config.RateLimitConfig `yaml:"rate_limit"`
	Worker    WorkerConfig           `yaml:"worker"`
}

// Load 使用统一配置中心加载配置，环境变量优先级最高
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideLogFromEnv(&cfg.Log)
	config.OverrideRateLimitFromEnv(&cfg.RateLimit)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":5000"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Second
	}
	if c.RateLimit.APIMax <= 0 {
		c.RateLimit.APIMax = 5
	}
	if c.RateLimit.AuthMax <= 0 {
		c.RateLimit.AuthMax = 3
	}
	if c.RateLimit.CreateMax <= 0 {
		c.RateLimit.CreateMax = 2
	}
	if c.Worker.DedupTTL <= 0 {
		c.Worker.DedupTTL = 24 * time.Hour
	}
	if c.Worker.RetryTTL <= 0 {
		c.Worker.RetryTTL = time.Hour
	}
	if c.Worker.MaxRetries <= 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Worker.HealthPort == "" {
		c.Worker.HealthPort = ":5001"
	}
}

// Validate 检查启动必需的配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "${JWT_SECRET}" {
		return fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host and db.name are required")
	}
	return nil
}
