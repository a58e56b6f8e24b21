// Package config resolves the orchestrator wrapper's command-line surface
// from spec.md §6.3. Grounded on the teacher's cmd/ratelord-d/config.go:
// environment variables seed the defaults, flag.FlagSet parses and can
// override them, and the result is a single validated Config value.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	envScenarioPath  = "STRESSLAB_SCENARIO_PATH"
	envHistoryDBPath = "STRESSLAB_HISTORY_DB_PATH"
	envHistoryDriver = "STRESSLAB_HISTORY_DRIVER"
	envRedisAddr     = "STRESSLAB_REDIS_ADDR"
	envAddr          = "STRESSLAB_ADDR"
	envRetentionDays = "STRESSLAB_RETENTION_DAYS"
)

// TestType is the value of spec.md §6.3's --test-type. It is validated
// against the constants below; nothing dispatches on it, since each scenario
// step declares its own type.
type TestType string

const (
	TestTypeAPI      TestType = "Api"
	TestTypeSQL      TestType = "Sql"
	TestTypeCombined TestType = "Combined"
)

// Config is the resolved CLI surface from spec.md §6.3.
type Config struct {
	ScenarioPath   string
	ScenarioName   string
	DurationSec    int
	Users          int
	Endpoint       string
	Method         string
	SQLConnection  string
	SQLProcedure   string
	TestType       TestType
	ListScenarios  bool

	HistoryDBPath string
	HistoryDriver string // "memory" or "sqlite"
	RedisAddr     string
	Addr          string
	RetentionDays int
	Serve         bool
}

// Load resolves Config from environment variables (defaults) and args
// (overrides), the same two-tier layering as the teacher's LoadConfig.
func Load(args []string) (Config, error) {
	cfg := Config{
		ScenarioPath:  envOrDefault(envScenarioPath, "scenarios.json"),
		HistoryDBPath: envOrDefault(envHistoryDBPath, "stresslab_history.db"),
		HistoryDriver: envOrDefault(envHistoryDriver, "memory"),
		RedisAddr:     os.Getenv(envRedisAddr),
		Addr:          envOrDefault(envAddr, "127.0.0.1:8070"),
		RetentionDays: envOrDefaultInt(envRetentionDays, 90),
		Method:        "GET",
		TestType:      TestTypeAPI,
	}

	fs := flag.NewFlagSet("stresslab", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	flagScenario := fs.String("scenario", "", "scenario name to run")
	flagScenarioPath := fs.String("scenario-path", cfg.ScenarioPath, "path to the scenario document")
	flagDuration := fs.Int("duration", 0, "override scenario duration in seconds")
	flagUsers := fs.Int("users", 0, "override scenario concurrent users")
	flagEndpoint := fs.String("endpoint", "", "override HTTP endpoint for every HttpApi step of the scenario")
	flagMethod := fs.String("method", cfg.Method, "override HTTP method for every HttpApi step of the scenario")
	flagSQLConn := fs.String("sql-connection", "", "override SQL connection string")
	flagSQLProc := fs.String("sql-procedure", "", "override SQL procedure name")
	flagTestType := fs.String("test-type", string(cfg.TestType), "Api|Sql|Combined")
	flagList := fs.Bool("list-scenarios", false, "list loaded scenarios and exit")
	flagAddr := fs.String("addr", cfg.Addr, "management HTTP listen address")
	flagRetention := fs.Int("retention-days", cfg.RetentionDays, "history retention window in days")
	flagServe := fs.Bool("serve", false, "run the management HTTP server and retention worker instead of a one-shot run")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.PrintDefaults()
		}
		return Config{}, err
	}

	cfg.ScenarioName = strings.TrimSpace(*flagScenario)
	if *flagScenarioPath != "" {
		cfg.ScenarioPath = *flagScenarioPath
	}
	cfg.DurationSec = *flagDuration
	cfg.Users = *flagUsers
	cfg.Endpoint = strings.TrimSpace(*flagEndpoint)
	cfg.Method = strings.ToUpper(strings.TrimSpace(*flagMethod))
	cfg.SQLConnection = strings.TrimSpace(*flagSQLConn)
	cfg.SQLProcedure = strings.TrimSpace(*flagSQLProc)
	cfg.TestType = TestType(*flagTestType)
	cfg.ListScenarios = *flagList
	cfg.Addr = strings.TrimSpace(*flagAddr)
	cfg.RetentionDays = *flagRetention
	cfg.Serve = *flagServe

	switch cfg.TestType {
	case TestTypeAPI, TestTypeSQL, TestTypeCombined:
	default:
		return Config{}, fmt.Errorf("unsupported test-type: %s", cfg.TestType)
	}
	if cfg.HistoryDriver != "memory" && cfg.HistoryDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported history driver: %s", cfg.HistoryDriver)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
