package config

import "time"

type ServiceConfig struct {
	Name        string          `yaml:"name"`
	Environment string          `yaml:"environment"`
	Version     string          `yaml:"version"`
	ClientURL   string          `yaml:"client_url"`
	JWT         JWTConfig       `yaml:"jwt"`
	Redis       RedisConfig     `yaml:"redis"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Stats       StatsConfig     `yaml:"stats"`
	Reaper      ReaperConfig    `yaml:"reaper"`
}

type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig holds the per-identity request budgets. Auth covers the
// credential issue endpoint; API covers everything else.
type RateLimitConfig struct {
	AuthMaxRequests int           `yaml:"auth_max_requests"`
	AuthWindow      time.Duration `yaml:"auth_window"`
	APIMaxRequests  int           `yaml:"api_max_requests"`
	APIWindow       time.Duration `yaml:"api_window"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

type StatsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ReaperConfig struct {
	Interval time.Duration `yaml:"interval"`
}
