package storage

import (
	"time"

	"perf-anomaly-alerts/internal/anomaly"
)

// ThresholdRecord mirrors one row of the thresholds table: a tenant override
// for one anomaly type, plus its soft-enable flag.
type ThresholdRecord struct {
	ID          string
	TenantID    string
	ScopeID     string
	AnomalyType anomaly.Type
	Metric      string
	Low         float64
	Medium      float64
	High        float64
	Critical    float64
	Direction   anomaly.Direction
	Lookback    time.Duration
	AutoAction  anomaly.AutoAction
	IsEnabled   bool
	UpdatedAt   time.Time
}
