package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// isolate points config discovery at an empty temp dir and clears every
// environment variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, env := range []string{
		"PORT", "RESTART_CONTAINER", "DATA_DIR", "MODS_DIR",
		"THUNDERDOCKERMAN_LISTEN", "THUNDERDOCKERMAN_MODS_DIR", "THUNDERDOCKERMAN_DATA_DIR",
		"THUNDERDOCKERMAN_CONTAINER_NAME", "THUNDERDOCKERMAN_AUTO_STOP_ENABLED",
		"THUNDERDOCKERMAN_THUNDERSTORE_COMMUNITIES",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	return dir
}

func TestDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "thunderdockerman") {
		t.Errorf("Dir() = %q", dir)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9876" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.ModsDir != "./BepInEx/plugins" {
		t.Errorf("ModsDir = %q", cfg.ModsDir)
	}
	if cfg.AutoStop.Enabled || cfg.AutoStop.TimeoutMinutes != 15 {
		t.Errorf("AutoStop = %+v, want disabled/15", cfg.AutoStop)
	}
	if cfg.Thunderstore.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.Thunderstore.CacheTTL)
	}
	if len(cfg.Thunderstore.Communities) != 4 {
		t.Errorf("Communities = %v", cfg.Thunderstore.Communities)
	}
	if cfg.Container.Name != "" {
		t.Errorf("Container.Name = %q, want empty", cfg.Container.Name)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	content := `
mods_dir: /srv/mods
container:
  name: valheim
  stop_timeout: 20s
auto_stop:
  enabled: true
  timeout_minutes: 30
aliases:
  BepInEx: denikson-BepInExPack_Valheim
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ModsDir != "/srv/mods" {
		t.Errorf("ModsDir = %q", cfg.ModsDir)
	}
	if cfg.Container.Name != "valheim" || cfg.Container.StopTimeout != 20*time.Second {
		t.Errorf("Container = %+v", cfg.Container)
	}
	if !cfg.AutoStop.Enabled || cfg.AutoStop.TimeoutMinutes != 30 {
		t.Errorf("AutoStop = %+v", cfg.AutoStop)
	}
	if got := cfg.ResolveAlias("bepinex"); got != "denikson-BepInExPack_Valheim" {
		t.Errorf("ResolveAlias(bepinex) = %q", got)
	}
	if got := cfg.ResolveAlias("ValheimModding-Jotunn"); got != "ValheimModding-Jotunn" {
		t.Errorf("ResolveAlias should pass unknown names through, got %q", got)
	}
}

func TestLoad_ExplicitConfigFileMissing(t *testing.T) {
	isolate(t)
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Fatal("Load() should fail for a missing explicit config file")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("THUNDERDOCKERMAN_AUTO_STOP_ENABLED", "true")
	t.Setenv("THUNDERDOCKERMAN_MODS_DIR", "/env/mods")

	cfg, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.AutoStop.Enabled {
		t.Error("AutoStop.Enabled should be set from environment")
	}
	if cfg.ModsDir != "/env/mods" {
		t.Errorf("ModsDir = %q, want /env/mods", cfg.ModsDir)
	}
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	dir := isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("RESTART_CONTAINER", "valheim-server")
	t.Setenv("DATA_DIR", "/legacy/data")

	cfg, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != "0.0.0.0:3000" {
		t.Errorf("Listen = %q, want 0.0.0.0:3000", cfg.Listen)
	}
	if cfg.Container.Name != "valheim-server" {
		t.Errorf("Container.Name = %q", cfg.Container.Name)
	}
	if cfg.DataDir != "/legacy/data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MODS_DIR", "/legacy/mods")
	t.Setenv("THUNDERDOCKERMAN_MODS_DIR", "/new/mods")

	cfg, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ModsDir != "/new/mods" {
		t.Errorf("ModsDir = %q, want /new/mods", cfg.ModsDir)
	}
}

func TestLoad_FlagsOverrideOnlyWhenChanged(t *testing.T) {
	dir := isolate(t)
	t.Setenv("THUNDERDOCKERMAN_MODS_DIR", "/env/mods")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("mods-dir", "", "")
	fs.String("listen", "", "")
	if err := fs.Parse([]string{"--mods-dir", "/flag/mods"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{
		ConfigDir: dir,
		Flags: map[string]*pflag.Flag{
			"mods_dir": fs.Lookup("mods-dir"),
			"listen":   fs.Lookup("listen"),
		},
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ModsDir != "/flag/mods" {
		t.Errorf("ModsDir = %q, want flag value", cfg.ModsDir)
	}
	if cfg.Listen != "0.0.0.0:9876" {
		t.Errorf("unset flag should not override Listen, got %q", cfg.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty mods dir", func(c *Config) { c.ModsDir = "" }},
		{"zero timeout", func(c *Config) { c.AutoStop.TimeoutMinutes = 0 }},
		{"negative ttl", func(c *Config) { c.Thunderstore.CacheTTL = -time.Second }},
		{"no communities", func(c *Config) { c.Thunderstore.Communities = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
