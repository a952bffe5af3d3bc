package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port      int
	BindAddr  string
	AdminPort int // 0 disables the admin API

	RedisURL    string
	DatabaseURL string

	// empty accepts any origin
	AllowedOrigins []string

	PingInterval time.Duration
	WriteTimeout time.Duration
}

// fileConfig mirrors the optional YAML file named by CHECKERS_CONFIG.
type fileConfig struct {
	Port            *int     `yaml:"port"`
	BindAddr        *string  `yaml:"bind_addr"`
	AdminPort       *int     `yaml:"admin_port"`
	RedisURL        *string  `yaml:"redis_url"`
	DatabaseURL     *string  `yaml:"database_url"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	PingIntervalSec *int     `yaml:"ping_interval_sec"`
	WriteTimeoutSec *int     `yaml:"write_timeout_sec"`
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:         3030,
		BindAddr:     "0.0.0.0",
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Load applies defaults, then the YAML file named by CHECKERS_CONFIG, then
// environment variables.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CHECKERS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyYAML(raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if f.Port != nil && *f.Port > 0 {
		c.Port = *f.Port
	}
	if f.BindAddr != nil && strings.TrimSpace(*f.BindAddr) != "" {
		c.BindAddr = strings.TrimSpace(*f.BindAddr)
	}
	if f.AdminPort != nil && *f.AdminPort >= 0 {
		c.AdminPort = *f.AdminPort
	}
	if f.RedisURL != nil {
		c.RedisURL = strings.TrimSpace(*f.RedisURL)
	}
	if f.DatabaseURL != nil {
		c.DatabaseURL = strings.TrimSpace(*f.DatabaseURL)
	}
	if f.AllowedOrigins != nil {
		c.AllowedOrigins = cleanList(f.AllowedOrigins)
	}
	if f.PingIntervalSec != nil && *f.PingIntervalSec > 0 {
		c.PingInterval = time.Duration(*f.PingIntervalSec) * time.Second
	}
	if f.WriteTimeoutSec != nil && *f.WriteTimeoutSec > 0 {
		c.WriteTimeout = time.Duration(*f.WriteTimeoutSec) * time.Second
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	if n, ok := envInt("PORT"); ok && n > 0 {
		c.Port = n
	}
	if v := strings.TrimSpace(os.Getenv("BIND_ADDR")); v != "" {
		c.BindAddr = v
	}
	if n, ok := envInt("ADMIN_PORT"); ok && n >= 0 {
		c.AdminPort = n
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		c.RedisURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.DatabaseURL = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = cleanList(strings.Split(v, ","))
	}
	if n, ok := envInt("PING_INTERVAL_SEC"); ok && n > 0 {
		c.PingInterval = time.Duration(n) * time.Second
	}
	if n, ok := envInt("WRITE_TIMEOUT_SEC"); ok && n > 0 {
		c.WriteTimeout = time.Duration(n) * time.Second
	}
}

func (c *AppConfig) validate() error {
	if c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.AdminPort > 65535 {
		return fmt.Errorf("ADMIN_PORT out of range: %d", c.AdminPort)
	}
	if c.AdminPort != 0 && c.AdminPort == c.Port {
		return errors.New("ADMIN_PORT must differ from PORT")
	}
	return nil
}

// Addr is the game listener address.
func (c *AppConfig) Addr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}

// AdminAddr is the admin listener address, empty when disabled.
func (c *AppConfig) AdminAddr() string {
	if c.AdminPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.AdminPort))
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cleanList(in []string) []string {
	var out []string
	for _, p := range in {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
