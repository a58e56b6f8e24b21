package scenario

import "testing"

const sampleDoc = `{
  "testScenarios": [
    {
      "Name": "smoke",
      "executionMode": "Sequential",
      "loadSimulation": {"type": "Constant", "rate": 50, "durationSeconds": 10, "rampUpSeconds": 2},
      "steps": [
        {"name": "auth", "type": "Http", "configuration": {"method": "post", "url": "http://localhost/auth"}},
        {"name": "profile", "type": "HttpApi", "configuration": {"method": "GET", "url": "http://localhost/profile"}, "combinedWithPrevious": true}
      ],
      "settings": {"durationSeconds": 10, "concurrentUsers": 10}
    }
  ],
  "globalSettings": {"defaultTimeout": 30000, "performanceThresholds": {"maxErrorRatePercent": 5}}
}`

func TestLoadBytes_TolerantEnumsAndCase(t *testing.T) {
	l, err := LoadBytes([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	sc, err := l.Get("smoke")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sc.ExecutionMode != ModeSequential {
		t.Fatalf("expected Sequential, got %v", sc.ExecutionMode)
	}
	if sc.LoadProfile.Type != ProfileConstantRate {
		t.Fatalf("expected ConstantRate, got %v", sc.LoadProfile.Type)
	}
	if sc.Steps[0].Type != StepHttpApi || sc.Steps[0].HTTP.Method != "POST" {
		t.Fatalf("expected normalized HttpApi/POST, got %+v", sc.Steps[0])
	}
	if !sc.Steps[1].CombinedWithPrevious {
		t.Fatalf("expected combinedWithPrevious on step 1")
	}
	if got := *sc.Thresholds.MaxErrorRatePercent; got != 5 {
		t.Fatalf("expected global threshold to apply, got %v", got)
	}
}

func TestLoadBytes_DuplicateNameLastWins(t *testing.T) {
	doc := `{"testScenarios": [
		{"name":"dup","loadSimulation":{"type":"Constant","rate":1,"durationSeconds":1},
		 "steps":[{"name":"a","type":"Wait","configuration":{"durationMs":1}}],"settings":{"concurrentUsers":1}},
		{"name":"dup","loadSimulation":{"type":"Constant","rate":2,"durationSeconds":1},
		 "steps":[{"name":"b","type":"Wait","configuration":{"durationMs":2}}],"settings":{"concurrentUsers":1}}
	]}`
	l, err := LoadBytes([]byte(doc))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(l.List()) != 1 {
		t.Fatalf("expected duplicate scenario names to collapse to one entry, got %d", len(l.List()))
	}
	sc, _ := l.Get("dup")
	if sc.LoadProfile.RPS != 2 {
		t.Fatalf("expected last-wins scenario (rate=2), got %d", sc.LoadProfile.RPS)
	}
}

func TestLoadBytes_UnknownStepType(t *testing.T) {
	doc := `{"testScenarios":[{"name":"bad","loadSimulation":{"type":"Constant","rate":1,"durationSeconds":1},
		"steps":[{"name":"x","type":"Telepathy","configuration":{}}],"settings":{"concurrentUsers":1}}]}`
	_, err := LoadBytes([]byte(doc))
	if err == nil {
		t.Fatalf("expected InvalidSpecError for unknown step type")
	}
	if _, ok := err.(*InvalidSpecError); !ok {
		t.Fatalf("expected *InvalidSpecError, got %T: %v", err, err)
	}
}

func TestLoadBytes_WeightedRequiresPositiveWeightSum(t *testing.T) {
	doc := `{"testScenarios":[{"name":"w","executionMode":"Weighted","loadSimulation":{"type":"Constant","rate":1,"durationSeconds":1},
		"steps":[{"name":"a","type":"Wait","configuration":{"durationMs":1},"weight":0,"enabled":false}],"settings":{"concurrentUsers":1}}]}`
	_, err := LoadBytes([]byte(doc))
	if err == nil {
		t.Fatalf("expected error for weighted mode with zero weight sum")
	}
}

func TestLoadBytes_DatabaseConnectionStepRequiresConnectionString(t *testing.T) {
	doc := `{"testScenarios":[{"name":"conn","loadSimulation":{"type":"Constant","rate":1,"durationSeconds":1},
		"steps":[{"name":"c","type":"DatabaseConnection","configuration":{}}],"settings":{"concurrentUsers":1}}]}`
	_, err := LoadBytes([]byte(doc))
	if err == nil {
		t.Fatalf("expected InvalidSpecError for missing connection string")
	}
	if _, ok := err.(*InvalidSpecError); !ok {
		t.Fatalf("expected *InvalidSpecError, got %T: %v", err, err)
	}
}

func TestLoadBytes_DatabaseConnectionStepProjectsConfig(t *testing.T) {
	doc := `{"testScenarios":[{"name":"conn","loadSimulation":{"type":"Constant","rate":1,"durationSeconds":1},
		"steps":[{"name":"c","type":"DatabaseConnection","configuration":{"connectionString":"file::memory:?cache=shared","driver":"sqlite3"}}],
		"settings":{"concurrentUsers":1}}]}`
	l, err := LoadBytes([]byte(doc))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	sc, err := l.Get("conn")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sc.Steps[0].Type != StepDatabaseConn {
		t.Fatalf("expected StepDatabaseConn, got %v", sc.Steps[0].Type)
	}
	if sc.Steps[0].SQL == nil || sc.Steps[0].SQL.ConnectionString != "file::memory:?cache=shared" {
		t.Fatalf("expected SQL config to be populated, got %+v", sc.Steps[0].SQL)
	}
}

func TestRoundTrip(t *testing.T) {
	l, err := LoadBytes([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	data, err := l.MarshalDocument()
	if err != nil {
		t.Fatalf("MarshalDocument: %v", err)
	}
	l2, err := LoadBytes(data)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	a, _ := l.Get("smoke")
	b, _ := l2.Get("smoke")
	if a.Name != b.Name || a.ExecutionMode != b.ExecutionMode || len(a.Steps) != len(b.Steps) {
		t.Fatalf("round trip mismatch: %+v vs %+v", a, b)
	}
}
