package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cwrk-planet/chat-service/internal/logger"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	AuthHeader = "header"
	AuthJWT    = "jwt"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type GRPC struct {
	Addr        string        `yaml:"addr"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
}

// Store: postgres — боевой режим, memory — всё в памяти процесса (локальная разработка).
type Store struct {
	Driver string `yaml:"driver"`
}

type JWT struct {
	PublicKeyPath string        `yaml:"publicKeyPath"` // RS256
	Secret        string        `yaml:"secret"`        // HS256, если ключа нет
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Auth struct {
	Mode string `yaml:"mode"` // header|jwt
	JWT  JWT    `yaml:"jwt"`
}

type Chat struct {
	MaxMessageLength int           `yaml:"maxMessageLength"`
	StoreTimeout     time.Duration `yaml:"storeTimeout"`
	MentionTimeout   time.Duration `yaml:"mentionTimeout"`
}

type Presence struct {
	TypingTTL     time.Duration `yaml:"typingTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type WS struct {
	SendQueue    int           `yaml:"sendQueue"`
	PingInterval time.Duration `yaml:"pingInterval"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	ReadLimit    int64         `yaml:"readLimit"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Store    Store    `yaml:"store"`
	Auth     Auth     `yaml:"auth"`
	Chat     Chat     `yaml:"chat"`
	Presence Presence `yaml:"presence"`
	WS       WS       `yaml:"ws"`
	CORS     CORS     `yaml:"cors"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.GRPC.CallTimeout == 0 {
		c.GRPC.CallTimeout = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = logger.DefaultService
	}
	// пустая среда берётся из CHAT_ENV / APP_ENV, бекенд по умолчанию выбирает logger.Init
	if c.Logging.Env == "" {
		c.Logging.Env = string(logger.DetectEnv())
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StorePostgres
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthHeader
	}
	if c.Auth.JWT.ClockSkew == 0 {
		c.Auth.JWT.ClockSkew = 30 * time.Second
	}

	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = 10000
	}
	if c.Chat.StoreTimeout == 0 {
		c.Chat.StoreTimeout = 5 * time.Second
	}
	if c.Chat.MentionTimeout == 0 {
		c.Chat.MentionTimeout = 30 * time.Second
	}
	if c.Presence.TypingTTL == 0 {
		c.Presence.TypingTTL = 5 * time.Second
	}
	if c.Presence.SweepInterval == 0 {
		c.Presence.SweepInterval = 2 * time.Second
	}

	if c.WS.SendQueue == 0 {
		c.WS.SendQueue = 256
	}
	if c.WS.PingInterval == 0 {
		c.WS.PingInterval = 15 * time.Second
	}
	if c.WS.WriteTimeout == 0 {
		c.WS.WriteTimeout = 5 * time.Second
	}
	if c.WS.ReadLimit == 0 {
		c.WS.ReadLimit = 64 << 10
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store.Driver)
	}

	switch c.Auth.Mode {
	case AuthHeader:
	case AuthJWT:
		if c.Auth.JWT.PublicKeyPath == "" && c.Auth.JWT.Secret == "" {
			return errors.New("auth.jwt needs publicKeyPath or secret")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthHeader, AuthJWT, c.Auth.Mode)
	}

	if c.Chat.MaxMessageLength < 0 {
		return errors.New("chat.maxMessageLength must be positive")
	}
	if c.Presence.SweepInterval >= c.Presence.TypingTTL {
		return errors.New("presence.sweepInterval must be shorter than presence.typingTTL")
	}
	if c.WS.SendQueue < 0 || c.WS.ReadLimit < 0 {
		return errors.New("ws.sendQueue and ws.readLimit must be positive")
	}
	return nil
}
