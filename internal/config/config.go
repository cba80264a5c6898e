// Package config loads the stickerbot configuration: the reusable core
// sections plus storage, catalog and rendering settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/stickerbot/core/cache"
	coreconfig "github.com/m3rciful/stickerbot/core/config"
	coredatabase "github.com/m3rciful/stickerbot/core/database"
	"github.com/m3rciful/stickerbot/internal/flow"
	"github.com/m3rciful/stickerbot/internal/sticker"
)

// Session backends.
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// SessionsConfig selects where conversations are kept.
type SessionsConfig struct {
	Backend string `yaml:"backend" envconfig:"SESSIONS_BACKEND"`
	// TTL bounds how long an idle session lives in Redis. Ignored in memory.
	TTL time.Duration `yaml:"ttl" envconfig:"SESSIONS_TTL"`
}

// CatalogConfig points at the pack/character list.
type CatalogConfig struct {
	Path string `yaml:"path" envconfig:"CATALOG_PATH"`
}

// FlowConfig selects the conversation variant.
type FlowConfig struct {
	StartStep string `yaml:"start_step" envconfig:"FLOW_START_STEP"`
}

// StickerConfig configures the compositing service.
type StickerConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"STICKER_BASE_URL"`
	ImageBase      string `yaml:"image_base" envconfig:"STICKER_IMAGE_BASE"`
	Delivery       string `yaml:"delivery" envconfig:"STICKER_DELIVERY"`
	MaxSize        int    `yaml:"max_size" envconfig:"STICKER_MAX_SIZE"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"STICKER_TIMEOUT_SECONDS"`
}

// Timeout returns the fetch timeout.
func (s StickerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// PreviewConfig configures style preview sheets.
type PreviewConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"PREVIEW_ENABLED"`
	CacheDir  string `yaml:"cache_dir" envconfig:"PREVIEW_CACHE_DIR"`
	ThumbSize int    `yaml:"thumb_size"`
	Columns   int    `yaml:"columns"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Redis    cache.Config        `yaml:"redis"`
	Sessions SessionsConfig      `yaml:"sessions"`
	Catalog  CatalogConfig       `yaml:"catalog"`
	Flow     FlowConfig          `yaml:"flow"`
	Sticker  StickerConfig       `yaml:"sticker"`
	Preview  PreviewConfig       `yaml:"preview"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	c.Sessions.Backend = strings.ToLower(strings.TrimSpace(c.Sessions.Backend))
	switch c.Sessions.Backend {
	case "":
		c.Sessions.Backend = SessionsMemory
	case SessionsMemory:
	case SessionsRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("redis.url is required when sessions.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid sessions.backend %q; allowed: memory, redis", c.Sessions.Backend)
	}
	if c.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl must be >= 0")
	}
	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = 24 * time.Hour
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "stickerbot"
	}

	if strings.TrimSpace(c.Catalog.Path) == "" {
		c.Catalog.Path = "data/list.json"
	}

	switch flow.Step(strings.ToLower(strings.TrimSpace(c.Flow.StartStep))) {
	case "", flow.StepSelectPack:
		c.Flow.StartStep = string(flow.StepSelectPack)
	case flow.StepSelectCharacter:
		c.Flow.StartStep = string(flow.StepSelectCharacter)
	default:
		return fmt.Errorf("invalid flow.start_step %q; allowed: select_pack, select_character", c.Flow.StartStep)
	}

	if c.Sticker.BaseURL == "" {
		c.Sticker.BaseURL = sticker.DefaultBaseURL
	}
	if c.Sticker.ImageBase == "" {
		c.Sticker.ImageBase = sticker.DefaultImageBase
	}
	switch flow.Delivery(strings.ToLower(strings.TrimSpace(c.Sticker.Delivery))) {
	case "", flow.DeliveryUpload:
		c.Sticker.Delivery = string(flow.DeliveryUpload)
	case flow.DeliveryURL:
		c.Sticker.Delivery = string(flow.DeliveryURL)
	default:
		return fmt.Errorf("invalid sticker.delivery %q; allowed: upload, url", c.Sticker.Delivery)
	}
	if c.Sticker.MaxSize < 0 {
		return fmt.Errorf("sticker.max_size must be >= 0")
	}
	if c.Sticker.MaxSize == 0 {
		c.Sticker.MaxSize = sticker.DefaultMaxSize
	}
	if c.Sticker.TimeoutSeconds < 0 {
		return fmt.Errorf("sticker.timeout_seconds must be >= 0")
	}
	if c.Sticker.TimeoutSeconds == 0 {
		c.Sticker.TimeoutSeconds = int(sticker.DefaultTimeout / time.Second)
	}

	if c.Preview.CacheDir == "" {
		c.Preview.CacheDir = "cache/previews"
	}
	return nil
}
