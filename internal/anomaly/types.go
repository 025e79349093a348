package anomaly

// Type identifies a class of performance anomaly.
type Type string

const (
	TypeSpendSpike     Type = "spend_spike"
	TypeCPCSpike       Type = "cpc_spike"
	TypeCTRDrop        Type = "ctr_drop"
	TypeConversionDrop Type = "conversion_drop"
	TypeImpressionDrop Type = "impression_drop"
)

// Direction constrains which side of the baseline triggers a detection.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionBoth Direction = "both"
)

// AutoAction names the remediation suggested alongside an alert. The core
// never executes it.
type AutoAction string

const (
	ActionNone        AutoAction = "none"
	ActionReview      AutoAction = "review"
	ActionReduceBid   AutoAction = "reduce_bid"
	ActionPauseTarget AutoAction = "pause_target"
)

// Severity orders alert tiers from least to most urgent.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSeverity maps a severity name to its enum value.
func ParseSeverity(name string) (Severity, bool) {
	for sev, n := range severityNames {
		if n == name {
			return sev, true
		}
	}
	return 0, false
}

// metricTypes binds every monitored metric name to its anomaly type. Metrics
// outside this table are ignored by the detector.
var metricTypes = map[string]Type{
	"spend":       TypeSpendSpike,
	"cpc":         TypeCPCSpike,
	"ctr":         TypeCTRDrop,
	"conversions": TypeConversionDrop,
	"impressions": TypeImpressionDrop,
}

// TypeForMetric resolves the anomaly type monitored for a metric name.
func TypeForMetric(metric string) (Type, bool) {
	t, ok := metricTypes[metric]
	return t, ok
}

// KnownTypes returns every registered anomaly type.
func KnownTypes() []Type {
	return []Type{
		TypeSpendSpike,
		TypeCPCSpike,
		TypeCTRDrop,
		TypeConversionDrop,
		TypeImpressionDrop,
	}
}

// Candidate is a detected deviation before it is folded into the alert table.
type Candidate struct {
	Type          Type
	Severity      Severity
	Metric        string
	CurrentValue  float64
	BaselineValue float64
	ChangePercent float64
	ZScore        float64
}
