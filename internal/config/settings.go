package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Config struct {
	Sources []Source `json:"sources"`

	Refresh struct {
		RefreshTimer Timer `json:"refresh_timer"`
		Workers      int   `json:"workers"`
	} `json:"refresh"`

	Export struct {
		Directory     string   `json:"directory"`
		CountryFilter []string `json:"country_filter"`
	} `json:"export"`

	GeoLite struct {
		DatabasePath     string `json:"database_path"`
		CrossCheck       bool   `json:"cross_check"`
		SamplePerCountry int    `json:"sample_per_country"`
	} `json:"geolite"`
}

// Source is one delegated-statistics ledger to ingest.
type Source struct {
	Registry string `json:"registry"`
	URL      string `json:"url"`
	Disabled bool   `json:"disabled,omitempty"`
}

// EnabledSources filters out disabled entries, keeping settings order.
func (c Config) EnabledSources() []Source {
	sources := make([]Source, 0, len(c.Sources))
	for _, source := range c.Sources {
		if source.Disabled || source.Registry == "" || source.URL == "" {
			continue
		}
		sources = append(sources, source)
	}
	return sources
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	configValue.Store(Config{})
}

// ReadSettings loads data/settings.json into the process, writing the
// embedded defaults there first when the file does not exist yet. Errors are
// logged and leave the previous configuration in place.
func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll("data", os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	applyConfigUpdate(newConfig, "file")
	log.Debug("Settings file loaded successfully")
}

func applyConfigUpdate(newConfig Config, source string) {
	configMu.Lock()
	defer configMu.Unlock()

	newConfig.Export.CountryFilter = mergeCountryFilter(newConfig.Export.CountryFilter, extraCountryFilter)
	configValue.Store(newConfig)
	applyIntervals()

	log.Debug("Configuration applied", "source", source)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

// extraCountryFilter holds countries added via the -country flag. They stay
// in force across settings reloads.
var extraCountryFilter []string

// AddCountryFilter appends a country to the export filter for the lifetime
// of the process, on top of whatever the settings file configures.
func AddCountryFilter(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return
	}

	configMu.Lock()
	defer configMu.Unlock()

	extraCountryFilter = append(extraCountryFilter, code)

	cfg := configValue.Load().(Config)
	cfg.Export.CountryFilter = mergeCountryFilter(cfg.Export.CountryFilter, extraCountryFilter)
	configValue.Store(cfg)
}

// mergeCountryFilter returns base plus any extra entries not yet present.
// The result is always a fresh slice so stored configs never share arrays.
func mergeCountryFilter(base, extra []string) []string {
	if len(base) == 0 && len(extra) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, code := range base {
		key := strings.ToUpper(code)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, code)
	}
	for _, code := range extra {
		if seen[code] {
			continue
		}
		seen[code] = true
		merged = append(merged, code)
	}
	return merged
}
