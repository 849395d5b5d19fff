package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
writers:
  - type: json
    enabled: true
    json:
      root_path: "results"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Analysis.Anomaly.Contamination != 0.1 {
		t.Errorf("Expected default contamination 0.1, got %v", cfg.Analysis.Anomaly.Contamination)
	}
	if cfg.Analysis.Beacon.MinRepeats != 5 {
		t.Errorf("Expected default min_repeats 5, got %d", cfg.Analysis.Beacon.MinRepeats)
	}
	if len(cfg.Analysis.InternalRanges) != 3 {
		t.Errorf("Expected RFC1918 defaults, got %v", cfg.Analysis.InternalRanges)
	}
	if len(cfg.Writers) != 1 || cfg.Writers[0].Type != "json" {
		t.Errorf("Unexpected writers: %+v", cfg.Writers)
	}
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
analysis:
  anomaly:
    contamination: 0.05
    seed: 7
  beacon:
    min_repeats: 8
    cv_threshold: 0.2
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Analysis.Anomaly.Contamination != 0.05 || cfg.Analysis.Anomaly.Seed != 7 {
		t.Errorf("Override not applied: %+v", cfg.Analysis.Anomaly)
	}
	if cfg.Analysis.Beacon.MinRepeats != 8 {
		t.Errorf("Override not applied: %+v", cfg.Analysis.Beacon)
	}
	// Untouched sections keep their defaults.
	if cfg.Analysis.DNS.Port != 53 {
		t.Errorf("Expected default dns port, got %d", cfg.Analysis.DNS.Port)
	}
}

func TestLoadConfig_RejectsInvalidThresholds(t *testing.T) {
	cases := map[string]string{
		"contamination": "analysis:\n  anomaly:\n    contamination: 0.9\n",
		"cv_threshold":  "analysis:\n  beacon:\n    cv_threshold: 1.5\n",
		"percentile":    "analysis:\n  exfil:\n    percentile: 100\n",
		"low_diversity": "analysis:\n  dns:\n    low_diversity_queries: 0\n",
		"cidr":          "analysis:\n  internal_ranges: [\"not-a-cidr\"]\n",
	}

	for name, content := range cases {
		if _, err := LoadConfig(writeConfig(t, content)); err == nil {
			t.Errorf("Expected %s config to be rejected", name)
		}
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("does/not/exist.yaml"); err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}
