package api

import "github.com/stresslab-project/stresslab/pkg/analyzer"

// DeviationRequest is the JSON body of POST /v1/deviation, carrying
// the freshly observed metrics to compare against the stored baseline.
type DeviationRequest struct {
	TestName           string  `json:"test_name"`
	SampleSize         int     `json:"sample_size,omitempty"`
	AverageResponseMs  float64 `json:"average_response_time_ms"`
	ErrorRatePercent   float64 `json:"error_rate_percent"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

// DeviationResponse wraps the analyzer's report for JSON transport.
type DeviationResponse struct {
	Report *analyzer.DeviationReport `json:"report"`
}
