package config

import (
	"os"
	"path/filepath"
	"testing"
)

func restoreConfig(t *testing.T) {
	t.Helper()

	origCfg := GetConfig()
	origInterval := GetRefreshInterval()
	origExtra := extraCountryFilter
	t.Cleanup(func() {
		configValue.Store(origCfg)
		refreshInterval.Store(origInterval)
		extraCountryFilter = origExtra
	})
}

func TestReadSettingsCreatesDefaultFile(t *testing.T) {
	restoreConfig(t)
	t.Chdir(t.TempDir())

	ReadSettings()

	if _, err := os.Stat(settingsFilePath); err != nil {
		t.Fatalf("settings file was not created: %v", err)
	}

	cfg := GetConfig()
	if len(cfg.Sources) != 1 || cfg.Sources[0].Registry != "apnic" {
		t.Fatalf("default config sources = %+v, want the apnic ledger", cfg.Sources)
	}
	if cfg.Export.Directory == "" {
		t.Fatal("default config has no export directory")
	}
	if cfg.Refresh.Workers < 1 {
		t.Fatalf("default config workers = %d, want at least 1", cfg.Refresh.Workers)
	}
}

func TestReadSettingsLoadsExistingFile(t *testing.T) {
	restoreConfig(t)
	t.Chdir(t.TempDir())

	settings := `{
  "sources": [
    {"registry": "apnic", "url": "https://example.com/delegated-apnic-latest"},
    {"registry": "ripencc", "url": "https://example.com/delegated-ripencc-latest", "disabled": true}
  ],
  "refresh": {"refresh_timer": {"hours": 6}, "workers": 2},
  "export": {"directory": "out"}
}`
	if err := os.MkdirAll("data", 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	if err := os.WriteFile(filepath.Join("data", "settings.json"), []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	ReadSettings()

	cfg := GetConfig()
	if len(cfg.Sources) != 2 {
		t.Fatalf("loaded %d sources, want 2", len(cfg.Sources))
	}

	enabled := cfg.EnabledSources()
	if len(enabled) != 1 || enabled[0].Registry != "apnic" {
		t.Fatalf("EnabledSources returned %+v, want only apnic", enabled)
	}
}

func TestReadSettingsKeepsConfigOnBadFile(t *testing.T) {
	restoreConfig(t)
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("data", 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	if err := os.WriteFile(filepath.Join("data", "settings.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	var sentinel Config
	sentinel.Export.Directory = "keep-me"
	configValue.Store(sentinel)

	ReadSettings()

	if got := GetConfig().Export.Directory; got != "keep-me" {
		t.Fatalf("broken settings file replaced the config, directory = %q", got)
	}
}

func TestAddCountryFilterSurvivesReload(t *testing.T) {
	restoreConfig(t)
	t.Chdir(t.TempDir())

	settings := `{
  "sources": [{"registry": "apnic", "url": "https://example.com/a"}],
  "export": {"directory": "out", "country_filter": ["JP"]}
}`
	if err := os.MkdirAll("data", 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	if err := os.WriteFile(filepath.Join("data", "settings.json"), []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	ReadSettings()

	AddCountryFilter("us")
	AddCountryFilter("jp") // already present via the settings file

	want := []string{"JP", "US"}
	got := GetConfig().Export.CountryFilter
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("country filter = %v, want %v", got, want)
	}

	// A reload keeps the flag-added country.
	ReadSettings()
	got = GetConfig().Export.CountryFilter
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("country filter after reload = %v, want %v", got, want)
	}
}

func TestEnabledSourcesSkipsIncomplete(t *testing.T) {
	cfg := Config{Sources: []Source{
		{Registry: "apnic", URL: "https://example.com/a"},
		{Registry: "", URL: "https://example.com/b"},
		{Registry: "arin", URL: ""},
		{Registry: "ripencc", URL: "https://example.com/c", Disabled: true},
	}}

	enabled := cfg.EnabledSources()
	if len(enabled) != 1 || enabled[0].Registry != "apnic" {
		t.Fatalf("EnabledSources returned %+v, want only apnic", enabled)
	}
}
