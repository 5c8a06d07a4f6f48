package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := Default()

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Engine", cfg.Engine, "bark"},
		{"Bark.Temperature", cfg.Bark.Temperature, float32(0.7)},
		{"Bark.Seed", cfg.Bark.Seed, uint32(0)},
		{"Bark.Threads", cfg.Bark.Threads, 4},
		{"Sherpa.Threads", cfg.Sherpa.Threads, 2},
		{"Sherpa.Provider", cfg.Sherpa.Provider, "cpu"},
		{"Sherpa.Speed", cfg.Sherpa.Speed, float32(1.0)},
		{"Espeak.Voice", cfg.Espeak.Voice, "en-us"},
		{"Log.Level", cfg.Log.Level, "info"},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("SPEECHGEN_TEST_MODELS", "/models")

	path := filepath.Join(t.TempDir(), "speechgen.yaml")
	data := `
engine: sherpa
model: ${SPEECHGEN_TEST_MODELS}/voice.onnx
bark:
  temperature: 0.9
  seed: 42
sherpa:
  threads: 8
  speaker: 3
espeak:
  data_path: /usr/share
  voice: de
log:
  level: debug
  file: /tmp/speechgen.log
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != EngineSherpa || cfg.Model != "/models/voice.onnx" {
		t.Errorf("engine=%q model=%q", cfg.Engine, cfg.Model)
	}
	if cfg.Bark.Temperature != 0.9 || cfg.Bark.Seed != 42 || cfg.Bark.Threads != 4 {
		t.Errorf("bark: %+v", cfg.Bark)
	}
	if cfg.Sherpa.Threads != 8 || cfg.Sherpa.Speaker != 3 || cfg.Sherpa.Provider != "cpu" {
		t.Errorf("sherpa: %+v", cfg.Sherpa)
	}
	if cfg.Espeak.Voice != "de" || cfg.Espeak.DataPath != "/usr/share" {
		t.Errorf("espeak: %+v", cfg.Espeak)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log: %+v", cfg.Log)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Parse([]byte("engine: [")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := Parse([]byte("engine: festival")); err == nil {
		t.Error("expected error for unknown engine")
	}
	if _, err := Parse([]byte("bark:\n  threads: -1")); err == nil {
		t.Error("expected error for negative threads")
	}
}

func TestApply(t *testing.T) {
	t.Setenv("SPEECHGEN_LIBRARY_PATH", "")
	t.Setenv("SPEECHGEN_SHIM_DIR", "")

	cfg := Default()
	cfg.Libraries.Path = "/opt/bark/lib"
	cfg.Libraries.ShimDir = "/opt/sgshim"
	if err := cfg.Apply(); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("SPEECHGEN_LIBRARY_PATH") != "/opt/bark/lib" || os.Getenv("SPEECHGEN_SHIM_DIR") != "/opt/sgshim" {
		t.Error("Apply should export library locations")
	}
}
