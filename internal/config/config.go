package config

import (
	"fmt"
	"os"
	"time"

	"github.com/links2go/links2go/internal/shortcode"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env        string    `yaml:"env"`
	BaseURL    string    `yaml:"base_url"`
	CORSOrigin string    `yaml:"cors_origin"`
	ShortCode  ShortCode `yaml:"short_code"`
	RateLimit  RateLimit `yaml:"rate_limit"`
	HTTPServer `yaml:"http_server"`
	Redis      `yaml:"redis"`
}

type ShortCode struct {
	Length   int    `yaml:"length"`
	Alphabet string `yaml:"alphabet"`
}

var defaultShortCode = ShortCode{
	Length:   shortcode.DefaultLength,
	Alphabet: shortcode.DefaultAlphabet,
}

type RateLimit struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

var defaultRateLimit = RateLimit{
	Window: 15 * time.Minute,
	Max:    100,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Redis struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

var defaultRedis = Redis{
	Host:         "localhost",
	Port:         6379,
	PoolSize:     10,
	DialTimeout:  5 * time.Second,
	ReadTimeout:  3 * time.Second,
	WriteTimeout: 3 * time.Second,
}

func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.ShortCode = defaultShortCode
	cfg.RateLimit = defaultRateLimit
	cfg.HTTPServer = defaultHTTPServer
	cfg.Redis = defaultRedis
}
