package config

import "testing"

func TestLoad_FlagsOverrideEnvDefaults(t *testing.T) {
	t.Setenv(envScenarioPath, "from-env.json")
	t.Setenv(envRetentionDays, "45")

	cfg, err := Load([]string{"--scenario", "smoke", "--scenario-path", "from-flag.json", "--users", "20"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScenarioPath != "from-flag.json" {
		t.Fatalf("expected flag to override env, got %q", cfg.ScenarioPath)
	}
	if cfg.ScenarioName != "smoke" {
		t.Fatalf("expected scenario name smoke, got %q", cfg.ScenarioName)
	}
	if cfg.RetentionDays != 45 {
		t.Fatalf("expected env-seeded retention 45, got %d", cfg.RetentionDays)
	}
	if cfg.Users != 20 {
		t.Fatalf("expected users 20, got %d", cfg.Users)
	}
}

func TestLoad_RejectsUnknownTestType(t *testing.T) {
	_, err := Load([]string{"--test-type", "Bogus"})
	if err == nil {
		t.Fatalf("expected error for unknown test-type")
	}
}

func TestLoad_DefaultsWithNoArgs(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TestType != TestTypeAPI {
		t.Fatalf("expected default test type Api, got %v", cfg.TestType)
	}
	if cfg.Method != "GET" {
		t.Fatalf("expected default method GET, got %q", cfg.Method)
	}
}
