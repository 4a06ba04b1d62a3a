package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Config  string `toml:"-" env:"CONFIG"`
	Port    int    `toml:"server.port" env:"PORT"`
	Level   string `toml:"logging.level" env:"LOGGING_LEVEL"`
	Verbose bool   `toml:"verbose" env:"VERBOSE"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, `
verbose = true

[server]
port = 9000

[logging]
level = "debug"
`)

	opts := testOptions{Config: path, Port: 8080, Level: "info"}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Port != 9000 {
		t.Errorf("Port = %d, want 9000", opts.Port)
	}
	if opts.Level != "debug" {
		t.Errorf("Level = %q, want debug", opts.Level)
	}
	if !opts.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := writeFile(t, "[server]\nport = 9000\n")
	t.Setenv("CAMNODE_PORT", "7777")

	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Port != 7777 {
		t.Errorf("Port = %d, want env value 7777", opts.Port)
	}
}

func TestMissingFileKeepsDefaults(t *testing.T) {
	opts := testOptions{Config: "/nonexistent/camnode.toml", Port: 8080}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", opts.Port)
	}
}

func TestMalformedTOMLErrors(t *testing.T) {
	path := writeFile(t, "not [valid toml")
	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	cases := map[string]string{
		"Port":         "port",
		"LoggingLevel": "logging-level",
		"MetricsAddr":  "metrics-addr",
	}
	for in, want := range cases {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, `
[logging]
level = "warn"
format = "json"
pipeline = "debug"
device = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	if cfg.Modules["pipeline"] != "debug" || cfg.Modules["device"] != "error" {
		t.Errorf("module levels = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings", "camnode.toml")

	store := NewSettingsStore(path)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if v := store.Video(); v.Width != 1280 || v.Height != 720 {
		t.Fatalf("defaults = %dx%d, want 1280x720", v.Width, v.Height)
	}

	if err := store.ApplySession("h264", 1920, 1080, 25); err != nil {
		t.Fatal(err)
	}

	reread := NewSettingsStore(path)
	if err := reread.Load(); err != nil {
		t.Fatal(err)
	}
	v := reread.Video()
	if v.Format != "h264" || v.Width != 1920 || v.Height != 1080 || v.FPS != 25 {
		t.Fatalf("persisted settings = %+v", v)
	}
}

func TestApplySessionRejectsBadGeometry(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "camnode.toml"))
	if err := store.ApplySession("mjpeg", 0, 480, 30); err == nil {
		t.Fatal("expected geometry error")
	}
}
