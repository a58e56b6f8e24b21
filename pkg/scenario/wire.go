package scenario

import "encoding/json"

// Wire types mirror the scenario file shape from spec.md §6.1. encoding/json
// matches object keys case-insensitively against these field names by
// default, which is how the "Keys are case-insensitive" requirement is
// satisfied without a bespoke decoder.

type wireDocument struct {
	TestScenarios  []wireScenario    `json:"testScenarios"`
	GlobalSettings wireGlobalSettings `json:"globalSettings"`
}

type wireGlobalSettings struct {
	DefaultTimeout           int64                  `json:"defaultTimeout"`
	DefaultRetryCount        int                    `json:"defaultRetryCount"`
	PerformanceThresholds    wireThresholds         `json:"performanceThresholds"`
}

type wireThresholds struct {
	MaxErrorRatePercent *float64 `json:"maxErrorRatePercent"`
	MaxAverageMs        *float64 `json:"maxAverageMs"`
	MaxP95Ms            *float64 `json:"maxP95Ms"`
	MaxP99Ms            *float64 `json:"maxP99Ms"`
	MinRps              *float64 `json:"minRps"`
}

type wireScenario struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	ExecutionMode   string             `json:"executionMode"`
	LoadSimulation  wireLoadSimulation `json:"loadSimulation"`
	Steps           []wireStep         `json:"steps"`
	Settings        wireSettings       `json:"settings"`
	Thresholds      wireThresholds     `json:"thresholds"`
}

type wireLoadSimulation struct {
	Type              string         `json:"type"`
	Rate              int            `json:"rate"`
	StartRate         int            `json:"startRate"`
	EndRate           int            `json:"endRate"`
	BaseRate          int            `json:"baseRate"`
	SpikeRate         int            `json:"spikeRate"`
	SpikeDurationSec  int            `json:"spikeDurationSeconds"`
	MaxConcurrency    int            `json:"maxConcurrency"`
	DurationSeconds   int            `json:"durationSeconds"`
	RampUpSeconds     int            `json:"rampUpSeconds"`
	MaxConcurrentUsers int           `json:"maxConcurrentUsers"`
	Parameters        map[string]any `json:"parameters"`
}

type wireStep struct {
	Name                 string         `json:"name"`
	Type                 string         `json:"type"`
	Configuration        map[string]any `json:"configuration"`
	Weight               *int           `json:"weight"`
	Enabled              *bool          `json:"enabled"`
	CombinedWithPrevious bool           `json:"combinedWithPrevious"`
}

type wireSettings struct {
	DurationSeconds        int     `json:"durationSeconds"`
	RampUpSeconds          int     `json:"rampUpSeconds"`
	ConcurrentUsers        int     `json:"concurrentUsers"`
	MaxErrorRatePercent    float64 `json:"maxErrorRatePercent"`
	ExpectedResponseTimeMs float64 `json:"expectedResponseTimeMs"`
}

// parseDocument unmarshals raw scenario-file bytes into the wire
// representation. encoding/json's case-insensitive field matching covers
// spec.md §6.1's "keys are case-insensitive" requirement.
func parseDocument(data []byte) (wireDocument, error) {
	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return wireDocument{}, NewInvalidSpec("", "malformed document: "+err.Error())
	}
	return doc, nil
}
