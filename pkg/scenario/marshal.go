package scenario

import "encoding/json"

// MarshalDocument serializes every loaded scenario back into the §6.1 wire
// shape. Round-tripping a Document through LoadBytes(MarshalDocument(l)) is
// structurally equal modulo key case and field insertion order (spec.md §8).
func (l *Loader) MarshalDocument() ([]byte, error) {
	doc := wireDocument{
		GlobalSettings: wireGlobalSettings{
			DefaultTimeout:    l.global.DefaultTimeoutMs,
			DefaultRetryCount: l.global.DefaultRetryCount,
			PerformanceThresholds: wireThresholds{
				MaxErrorRatePercent: l.global.PerformanceThresholds.MaxErrorRatePercent,
				MaxAverageMs:        l.global.PerformanceThresholds.MaxAverageMs,
				MaxP95Ms:            l.global.PerformanceThresholds.MaxP95Ms,
				MaxP99Ms:            l.global.PerformanceThresholds.MaxP99Ms,
				MinRps:              l.global.PerformanceThresholds.MinRPS,
			},
		},
	}
	for _, sc := range l.List() {
		doc.TestScenarios = append(doc.TestScenarios, toWireScenario(sc))
	}
	return json.Marshal(doc)
}

func toWireScenario(sc Scenario) wireScenario {
	ws := wireScenario{
		Name:          sc.Name,
		Description:   sc.Description,
		ExecutionMode: string(sc.ExecutionMode),
		Settings: wireSettings{
			DurationSeconds:        sc.Settings.DurationSeconds,
			RampUpSeconds:          sc.Settings.RampUpSeconds,
			ConcurrentUsers:        sc.Settings.ConcurrentUsers,
			MaxErrorRatePercent:    sc.Settings.MaxErrorRatePercent,
			ExpectedResponseTimeMs: sc.Settings.ExpectedResponseTimeMs,
		},
		LoadSimulation: wireLoadSimulation{
			Type:               string(sc.LoadProfile.Type),
			Rate:               sc.LoadProfile.RPS,
			StartRate:          sc.LoadProfile.StartRPS,
			EndRate:            sc.LoadProfile.EndRPS,
			BaseRate:           sc.LoadProfile.BaseRPS,
			SpikeRate:          sc.LoadProfile.SpikeRPS,
			SpikeDurationSec:   int(sc.LoadProfile.SpikeDuration.Seconds()),
			MaxConcurrency:     sc.LoadProfile.MaxConcurrency,
			DurationSeconds:    int(sc.LoadProfile.Duration.Seconds()),
			RampUpSeconds:      int(sc.LoadProfile.RampUp.Seconds()),
			MaxConcurrentUsers: sc.LoadProfile.MaxUsers,
		},
		Thresholds: wireThresholds{
			MaxErrorRatePercent: sc.Thresholds.MaxErrorRatePercent,
			MaxAverageMs:        sc.Thresholds.MaxAverageMs,
			MaxP95Ms:            sc.Thresholds.MaxP95Ms,
			MaxP99Ms:            sc.Thresholds.MaxP99Ms,
			MinRps:              sc.Thresholds.MinRPS,
		},
	}
	for _, s := range sc.Steps {
		weight := s.Weight
		enabled := s.Enabled
		ws.Steps = append(ws.Steps, wireStep{
			Name:                 s.Name,
			Type:                 string(s.Type),
			Configuration:        s.Configuration,
			Weight:               &weight,
			Enabled:              &enabled,
			CombinedWithPrevious: s.CombinedWithPrevious,
		})
	}
	return ws
}
