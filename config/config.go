package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltswap/voltswap/api"
	"github.com/voltswap/voltswap/core/metrics"
	"github.com/voltswap/voltswap/core/ranker"
	"github.com/voltswap/voltswap/core/reservation"
	"github.com/voltswap/voltswap/infra/mqtt"
	"github.com/voltswap/voltswap/infra/store"
)

// Config is the root configuration of the reservation service.
type Config struct {
	MQTT        mqtt.Config        `json:"mqtt"`
	Reservation reservation.Config `json:"reservation"`
	Ranker      ranker.Config      `json:"ranker"`
	Metrics     metrics.Config     `json:"metrics"`
	Store       store.Config       `json:"store"`
	API         api.Config         `json:"api"`
}

// Load reads the configuration file and applies VSWAP_-prefixed environment
// overrides ("__" maps to nesting, e.g. VSWAP_MQTT__BROKER).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("VSWAP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "vswap_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Reservation.SetDefaults()
	cfg.Ranker.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Reservation.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store.Enabled && cfg.Store.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required when the store is enabled")
	}
	return &cfg, nil
}
