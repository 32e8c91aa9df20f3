package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lemonberrylabs/bigrun/pkg/types"
)

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
host: 127.0.0.1
port: 9000
scripts_dir: ./scripts
watch: true
debug: true
heal: true
data_dir: /var/lib/bigrun
timeout: 30s
schedules:
  - script: cleanup
    every: 10m
  - script: report
    every: 1h
    args: ["daily", "full"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if !cfg.Watch || !cfg.Debug || !cfg.Heal {
		t.Errorf("flags = %+v", cfg)
	}
	if cfg.ScriptsDir != "./scripts" || cfg.DataDir != "/var/lib/bigrun" {
		t.Errorf("dirs = %q %q", cfg.ScriptsDir, cfg.DataDir)
	}
	if cfg.ExecutionTimeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.ExecutionTimeout())
	}
	if len(cfg.Schedules) != 2 {
		t.Fatalf("schedules = %+v", cfg.Schedules)
	}
	if cfg.Schedules[0].Interval() != 10*time.Minute {
		t.Errorf("interval = %v", cfg.Schedules[0].Interval())
	}
	if got := strings.Join(cfg.Schedules[1].Args, ","); got != "daily,full" {
		t.Errorf("args = %q", got)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8787" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.ExecutionTimeout() != 5*time.Minute {
		t.Errorf("timeout = %v", cfg.ExecutionTimeout())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "listen: 1", "invalid YAML"},
		{"bad yaml", "port: [", "invalid YAML"},
		{"port range", "port: 70000", "out of range"},
		{"watch without dir", "watch: true", "requires scripts_dir"},
		{"bad timeout", "timeout: soon", "invalid timeout"},
		{"schedule without script", "schedules:\n  - every: 1m", "script is required"},
		{"bad interval", "schedules:\n  - script: a\n    every: often", "invalid interval"},
		{"short interval", "schedules:\n  - script: a\n    every: 100ms", "shorter than 1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
			if ee, ok := err.(*types.EngineError); !ok || !ee.HasTag(types.TagConfigError) {
				t.Errorf("error %T is not a ConfigError", err)
			}
		})
	}
}

func TestTimeoutDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`timeout: "0"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ExecutionTimeout() != 0 {
		t.Errorf("timeout = %v", cfg.ExecutionTimeout())
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HOST":               "localhost",
		"PORT":               "9999",
		"BIGRUN_SCRIPTS_DIR": "/srv/scripts",
		"BIGRUN_TIMEOUT":     "1m",
		"BIGRUN_DEBUG":       "true",
		"BIGRUN_DATA_DIR":    "",
	}
	cfg := Default()
	cfg.DataDir = "/keep"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Addr() != "localhost:9999" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.ScriptsDir != "/srv/scripts" || cfg.DataDir != "/keep" {
		t.Errorf("dirs = %q %q", cfg.ScriptsDir, cfg.DataDir)
	}
	if !cfg.Debug || cfg.ExecutionTimeout() != time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("port: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for an explicit missing file")
	}
}

func TestLoadDefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("HOST", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8787" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}
