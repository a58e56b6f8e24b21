package scenario

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"
)

// Loader holds validated scenarios by name. Unlike the teacher's
// process-wide policy registry (pkg/engine/loader.go + a package-level
// config singleton), this is an explicit handle passed to the orchestrator,
// per spec.md §9's "reframe as an explicit Loader handle" design note.
type Loader struct {
	scenarios map[string]Scenario
	order     []string
	global    GlobalSettings
}

// NewLoader builds an empty Loader, useful for constructing scenarios
// programmatically (e.g. in tests) without a file on disk.
func NewLoader() *Loader {
	return &Loader{scenarios: make(map[string]Scenario)}
}

// LoadFile reads a scenario document from path and merges it into the
// Loader. Returns InvalidSpecError on malformed input or failed invariants.
func LoadFile(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a scenario document from raw bytes.
func LoadBytes(data []byte) (*Loader, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	l := NewLoader()
	l.global = GlobalSettings{
		DefaultTimeoutMs:  doc.GlobalSettings.DefaultTimeout,
		DefaultRetryCount: doc.GlobalSettings.DefaultRetryCount,
		PerformanceThresholds: thresholdsFromWire(doc.GlobalSettings.PerformanceThresholds),
	}

	for _, ws := range doc.TestScenarios {
		sc, err := buildScenario(ws, l.global.PerformanceThresholds)
		if err != nil {
			return nil, err
		}
		if _, exists := l.scenarios[sc.Name]; exists {
			log.Printf(`{"level":"warn","msg":"duplicate_scenario_name","name":%q}`, sc.Name)
			// last wins: fall through and overwrite below, order entry kept once.
		} else {
			l.order = append(l.order, sc.Name)
		}
		l.scenarios[sc.Name] = sc
	}
	return l, nil
}

// Get resolves a scenario by name.
func (l *Loader) Get(name string) (Scenario, error) {
	sc, ok := l.scenarios[name]
	if !ok {
		return Scenario{}, &ConfigurationNotFoundError{Name: name}
	}
	return sc, nil
}

// List returns all loaded scenarios in declaration order (last-wins
// replacements keep their original position).
func (l *Loader) List() []Scenario {
	out := make([]Scenario, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.scenarios[name])
	}
	return out
}

// Global returns the document-wide defaults.
func (l *Loader) Global() GlobalSettings {
	return l.global
}

// Add registers a programmatically-built scenario after validating it,
// used by tests and by callers that assemble scenarios without a file.
func (l *Loader) Add(sc Scenario) error {
	if err := validateScenario(sc); err != nil {
		return err
	}
	if _, exists := l.scenarios[sc.Name]; !exists {
		l.order = append(l.order, sc.Name)
	}
	l.scenarios[sc.Name] = sc
	return nil
}

func thresholdsFromWire(w wireThresholds) Thresholds {
	return Thresholds{
		MaxErrorRatePercent: w.MaxErrorRatePercent,
		MaxAverageMs:        w.MaxAverageMs,
		MaxP95Ms:            w.MaxP95Ms,
		MaxP99Ms:            w.MaxP99Ms,
		MinRPS:              w.MinRps,
	}
}

func buildScenario(ws wireScenario, globalThresholds Thresholds) (Scenario, error) {
	if strings.TrimSpace(ws.Name) == "" {
		return Scenario{}, NewInvalidSpec("", "scenario name is required")
	}

	steps := make([]Step, 0, len(ws.Steps))
	for i, wstep := range ws.Steps {
		step, err := buildStep(wstep, i)
		if err != nil {
			return Scenario{}, err
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return Scenario{}, NewInvalidSpec(ws.Name, "scenario must declare at least one step")
	}

	mode := parseExecutionMode(ws.ExecutionMode)
	if mode == ModeWeighted {
		var total int
		for _, s := range steps {
			if s.Enabled {
				total += s.Weight
			}
		}
		if total <= 0 {
			return Scenario{}, NewInvalidSpec(ws.Name, "weighted mode requires sum of weights > 0")
		}
	}

	profile, err := buildLoadProfile(ws.LoadSimulation)
	if err != nil {
		return Scenario{}, NewInvalidSpec("", fmt.Sprintf("scenario %q: %s", ws.Name, err.Error()))
	}

	settings := Settings{
		DurationSeconds:        ws.Settings.DurationSeconds,
		RampUpSeconds:          ws.Settings.RampUpSeconds,
		ConcurrentUsers:        ws.Settings.ConcurrentUsers,
		MaxErrorRatePercent:    ws.Settings.MaxErrorRatePercent,
		ExpectedResponseTimeMs: ws.Settings.ExpectedResponseTimeMs,
	}
	if settings.ConcurrentUsers == 0 {
		settings.ConcurrentUsers = 1
	}

	thresholds := thresholdsFromWire(ws.Thresholds)
	thresholds = mergeThresholds(thresholds, globalThresholds)

	sc := Scenario{
		Name:          ws.Name,
		Description:   ws.Description,
		ExecutionMode: mode,
		LoadProfile:   profile,
		Steps:         steps,
		Settings:      settings,
		Thresholds:    thresholds,
	}

	if err := validateScenario(sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func mergeThresholds(specific, fallback Thresholds) Thresholds {
	if specific.MaxErrorRatePercent == nil {
		specific.MaxErrorRatePercent = fallback.MaxErrorRatePercent
	}
	if specific.MaxAverageMs == nil {
		specific.MaxAverageMs = fallback.MaxAverageMs
	}
	if specific.MaxP95Ms == nil {
		specific.MaxP95Ms = fallback.MaxP95Ms
	}
	if specific.MaxP99Ms == nil {
		specific.MaxP99Ms = fallback.MaxP99Ms
	}
	if specific.MinRPS == nil {
		specific.MinRPS = fallback.MinRPS
	}
	return specific
}

func buildStep(ws wireStep, index int) (Step, error) {
	name := ws.Name
	if name == "" {
		name = fmt.Sprintf("step-%d", index)
	}
	stepType, ok := parseStepType(ws.Type)
	if !ok {
		return Step{}, NewInvalidSpec(name, fmt.Sprintf("unknown step type %q", ws.Type))
	}

	weight := 1
	if ws.Weight != nil && *ws.Weight >= 1 {
		weight = *ws.Weight
	}
	enabled := true
	if ws.Enabled != nil {
		enabled = *ws.Enabled
	}

	step := Step{
		Name:                 name,
		Type:                 stepType,
		Configuration:        ws.Configuration,
		Weight:               weight,
		Enabled:              enabled,
		CombinedWithPrevious: ws.CombinedWithPrevious && index > 0,
	}

	if !enabled {
		return step, nil
	}

	// Config builders report InvalidSpecError without a step name; attach it.
	stepErr := func(err error) error {
		if ise, ok := err.(*InvalidSpecError); ok {
			ise.Step = name
			return ise
		}
		return fmt.Errorf("step %q: %w", name, err)
	}

	switch stepType {
	case StepHttpApi:
		cfg, err := buildHTTPConfig(ws.Configuration)
		if err != nil {
			return Step{}, stepErr(err)
		}
		step.HTTP = cfg
	case StepSqlProcedure, StepSqlQuery:
		cfg, err := buildSQLConfig(ws.Configuration, stepType)
		if err != nil {
			return Step{}, stepErr(err)
		}
		step.SQL = cfg
	case StepDatabaseConn:
		cfg, err := buildDatabaseConnConfig(ws.Configuration)
		if err != nil {
			return Step{}, stepErr(err)
		}
		step.SQL = cfg
	case StepWait:
		cfg, err := buildWaitConfig(ws.Configuration)
		if err != nil {
			return Step{}, stepErr(err)
		}
		step.Wait = cfg
	}

	return step, nil
}

func configString(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func configNumber(cfg map[string]any, key string) (float64, bool) {
	v, ok := cfg[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func buildHTTPConfig(cfg map[string]any) (*HTTPStepConfig, error) {
	method, _ := configString(cfg, "method")
	method = strings.ToUpper(strings.TrimSpace(method))
	if !validHTTPMethods[method] {
		return nil, NewInvalidSpec("", fmt.Sprintf("httpApi requires method in GET/POST/PUT/DELETE/PATCH/HEAD/OPTIONS, got %q", method))
	}
	rawURL, _ := configString(cfg, "url")
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, NewInvalidSpec("", fmt.Sprintf("httpApi requires an absolute http(s) url, got %q", rawURL))
	}
	headers := map[string]string{}
	if raw, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	body, _ := configString(cfg, "body")
	return &HTTPStepConfig{Method: method, URL: rawURL, Headers: headers, Body: body}, nil
}

func buildSQLConfig(cfg map[string]any, stepType StepType) (*SQLStepConfig, error) {
	conn, _ := configString(cfg, "connectionString")
	if conn == "" {
		conn, _ = configString(cfg, "connection")
	}
	if conn == "" {
		return nil, NewInvalidSpec("", "sqlProcedure/sqlQuery requires a connection string")
	}
	driver, _ := configString(cfg, "driver")
	if driver == "" {
		driver = "sqlite3"
	}
	sc := &SQLStepConfig{ConnectionString: conn, Driver: driver}
	if stepType == StepSqlProcedure {
		proc, _ := configString(cfg, "procedure")
		if proc == "" {
			return nil, NewInvalidSpec("", "sqlProcedure requires a procedure name")
		}
		sc.Procedure = proc
	} else {
		query, _ := configString(cfg, "query")
		if query == "" {
			return nil, NewInvalidSpec("", "sqlQuery requires a query")
		}
		sc.Query = query
	}
	return sc, nil
}

// buildDatabaseConnConfig projects a DatabaseConnection step's configuration
// (§4.4 step 3: open+close, no procedure or query to run).
func buildDatabaseConnConfig(cfg map[string]any) (*SQLStepConfig, error) {
	conn, _ := configString(cfg, "connectionString")
	if conn == "" {
		conn, _ = configString(cfg, "connection")
	}
	if conn == "" {
		return nil, NewInvalidSpec("", "databaseConnection requires a connection string")
	}
	driver, _ := configString(cfg, "driver")
	if driver == "" {
		driver = "sqlite3"
	}
	return &SQLStepConfig{ConnectionString: conn, Driver: driver}, nil
}

func buildWaitConfig(cfg map[string]any) (*WaitStepConfig, error) {
	ms, ok := configNumber(cfg, "durationMs")
	if !ok || ms < 0 {
		return nil, NewInvalidSpec("", "wait requires a non-negative durationMs")
	}
	variation, _ := configNumber(cfg, "randomVariationMs")
	return &WaitStepConfig{DurationMs: int64(ms), RandomVariationMs: int64(variation)}, nil
}

func buildLoadProfile(wl wireLoadSimulation) (LoadProfile, error) {
	ptype, ok := parseLoadProfileType(wl.Type)
	if !ok {
		ptype = ProfileConstantRate
	}
	duration := time.Duration(wl.DurationSeconds) * time.Second
	if duration <= 0 {
		return LoadProfile{}, fmt.Errorf("load profile duration must be > 0")
	}

	lp := LoadProfile{
		Type:     ptype,
		Duration: duration,
		RampUp:   time.Duration(wl.RampUpSeconds) * time.Second,
		MaxUsers: wl.MaxConcurrentUsers,
	}

	switch ptype {
	case ProfileConstantRate, ProfileSoak:
		if wl.Rate < 0 {
			return LoadProfile{}, fmt.Errorf("rate must be >= 0")
		}
		lp.RPS = wl.Rate
	case ProfileRampUp:
		if wl.StartRate < 0 || wl.EndRate < 0 {
			return LoadProfile{}, fmt.Errorf("rampUp rates must be >= 0")
		}
		lp.StartRPS = wl.StartRate
		lp.EndRPS = wl.EndRate
	case ProfileSpike:
		if wl.BaseRate < 0 || wl.SpikeRate < 0 {
			return LoadProfile{}, fmt.Errorf("spike rates must be >= 0")
		}
		spikeDur := time.Duration(wl.SpikeDurationSec) * time.Second
		if spikeDur <= 0 {
			spikeDur = duration / 4
		}
		if spikeDur > duration {
			return LoadProfile{}, fmt.Errorf("spike duration must be <= total duration")
		}
		lp.BaseRPS = wl.BaseRate
		lp.SpikeRPS = wl.SpikeRate
		lp.SpikeDuration = spikeDur
	case ProfileStress:
		if wl.MaxConcurrency <= 0 {
			wl.MaxConcurrency = 50
		}
		lp.MaxConcurrency = wl.MaxConcurrency
	}

	return lp, nil
}

func validateScenario(sc Scenario) error {
	if len(sc.Steps) == 0 {
		return NewInvalidSpec(sc.Name, "scenario must declare at least one step")
	}
	seen := map[string]bool{}
	for _, s := range sc.Steps {
		if seen[s.Name] {
			return NewInvalidSpec(s.Name, "duplicate step name within scenario")
		}
		seen[s.Name] = true
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case StepHttpApi:
			if s.HTTP == nil {
				return NewInvalidSpec(s.Name, "httpApi step missing required configuration")
			}
		case StepSqlProcedure, StepSqlQuery:
			if s.SQL == nil {
				return NewInvalidSpec(s.Name, "sql step missing required configuration")
			}
		case StepDatabaseConn:
			if s.SQL == nil {
				return NewInvalidSpec(s.Name, "databaseConnection step missing required configuration")
			}
		case StepWait:
			if s.Wait == nil {
				return NewInvalidSpec(s.Name, "wait step missing required configuration")
			}
		}
	}
	if sc.ExecutionMode == ModeWeighted {
		var total int
		for _, s := range sc.Steps {
			if s.Enabled {
				total += s.Weight
			}
		}
		if total <= 0 {
			return NewInvalidSpec(sc.Name, "weighted mode requires sum of weights > 0")
		}
	}
	if sc.LoadProfile.Duration <= 0 {
		return NewInvalidSpec(sc.Name, "load profile duration must be > 0")
	}
	return nil
}
