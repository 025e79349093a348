package alerts

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/anomaly"
)

var (
	// ErrNotFound indicates an unknown alert id.
	ErrNotFound = errors.New("alerts: alert not found")
	// ErrAlreadyResolved indicates a lifecycle change against a terminal alert.
	ErrAlreadyResolved = errors.New("alerts: alert already resolved")
)

// Alert tracks one ongoing (or historical) anomaly condition.
type Alert struct {
	ID            string
	TenantID      string
	ScopeID       string
	CampaignID    *string
	KeywordID     *string
	Type          anomaly.Type
	Severity      anomaly.Severity
	Metric        string
	CurrentValue  float64
	BaselineValue float64
	ChangePercent float64
	ZScore        float64
	DetectedAt    time.Time
	Acknowledged  bool
	ResolvedAt    *time.Time
	Notes         *string
	// Seq increments on every state transition, under the shard lock.
	// Persistence discards writes carrying an older sequence.
	Seq uint64
}

// Resolved reports whether the alert reached its terminal state.
func (a Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

// DedupKey identifies "the same ongoing problem" across evaluations.
type DedupKey struct {
	TenantID   string
	Type       anomaly.Type
	ScopeID    string
	CampaignID string
	KeywordID  string
}

// Summary aggregates a tenant's active alerts.
type Summary struct {
	TotalActive    int
	BySeverity     map[string]int
	ByScope        map[string]int
	ByType         map[string]int
	NeedsAttention bool
}

// ChangeFunc observes every alert state change with a detached copy, after
// the in-memory transition completes. Used to dispatch persistence writes.
type ChangeFunc func(Alert)

const shardCount = 16

type shard struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	// index maps a dedup key to its single unresolved alert id, keeping
	// dedup lookup O(1) regardless of how many alerts a tenant has.
	index map[DedupKey]string
}

// Manager owns the alert table and its lifecycle transitions. Alerts are
// partitioned by tenant so unrelated tenants never share a lock.
type Manager struct {
	shards   [shardCount]*shard
	onChange ChangeFunc
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager constructs an empty Manager. onChange may be nil.
func NewManager(onChange ChangeFunc, logger zerolog.Logger) *Manager {
	m := &Manager{
		onChange: onChange,
		logger:   logger.With().Str("component", "alerts").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for i := range m.shards {
		m.shards[i] = &shard{
			alerts: make(map[string]*Alert),
			index:  make(map[DedupKey]string),
		}
	}
	return m
}

func (m *Manager) shardFor(tenantID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	return m.shards[h.Sum32()%shardCount]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Upsert folds a candidate into the alert table. An unresolved alert for the
// same dedup key is overwritten in place; otherwise a new active alert is
// created. The returned bool is true when a new alert was allocated.
func (m *Manager) Upsert(tenantID, scopeID string, campaignID, keywordID *string, c anomaly.Candidate, detectedAt time.Time) (Alert, bool) {
	key := DedupKey{
		TenantID:   tenantID,
		Type:       c.Type,
		ScopeID:    scopeID,
		CampaignID: deref(campaignID),
		KeywordID:  deref(keywordID),
	}

	sh := m.shardFor(tenantID)
	sh.mu.Lock()

	var (
		alert   *Alert
		created bool
	)
	if id, ok := sh.index[key]; ok {
		alert = sh.alerts[id]
		alert.CurrentValue = c.CurrentValue
		alert.BaselineValue = c.BaselineValue
		alert.ChangePercent = c.ChangePercent
		alert.Severity = c.Severity
		alert.ZScore = c.ZScore
		alert.DetectedAt = detectedAt
		alert.Seq++
	} else {
		alert = &Alert{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			ScopeID:       scopeID,
			CampaignID:    campaignID,
			KeywordID:     keywordID,
			Type:          c.Type,
			Severity:      c.Severity,
			Metric:        c.Metric,
			CurrentValue:  c.CurrentValue,
			BaselineValue: c.BaselineValue,
			ChangePercent: c.ChangePercent,
			ZScore:        c.ZScore,
			DetectedAt:    detectedAt,
			Seq:           1,
		}
		sh.alerts[alert.ID] = alert
		sh.index[key] = alert.ID
		created = true
	}
	snapshot := *alert
	sh.mu.Unlock()

	if created {
		m.logger.Info().
			Str("alert_id", snapshot.ID).
			Str("tenant", tenantID).
			Str("type", string(snapshot.Type)).
			Str("severity", snapshot.Severity.String()).
			Msg("alert raised")
	}
	m.notify(snapshot)
	return snapshot, created
}

// Acknowledge flips the acknowledged flag and nothing else. Resolved alerts
// are terminal and reject the change.
func (m *Manager) Acknowledge(id string) error {
	snapshot, err := m.mutate(id, func(a *Alert) error {
		if a.Resolved() {
			return ErrAlreadyResolved
		}
		a.Acknowledged = true
		return nil
	})
	if err != nil {
		return err
	}
	m.notify(snapshot)
	return nil
}

// Resolve moves the alert to its terminal state. Resolution is applied
// exactly once; later calls report ErrAlreadyResolved without mutating.
func (m *Manager) Resolve(id string, notes string) error {
	snapshot, err := m.mutate(id, func(a *Alert) error {
		if a.Resolved() {
			return ErrAlreadyResolved
		}
		ts := m.now()
		a.ResolvedAt = &ts
		if notes != "" {
			a.Notes = &notes
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.dropFromIndex(snapshot)
	m.notify(snapshot)
	return nil
}

// BatchResolve resolves every unresolved alert matching the tenant and
// optional scope filter, returning the count affected.
func (m *Manager) BatchResolve(tenantID, scopeID string, notes string) int {
	sh := m.shardFor(tenantID)
	sh.mu.Lock()

	ts := m.now()
	resolved := make([]Alert, 0)
	for key, id := range sh.index {
		if key.TenantID != tenantID {
			continue
		}
		if scopeID != "" && key.ScopeID != scopeID {
			continue
		}
		alert := sh.alerts[id]
		alert.ResolvedAt = &ts
		if notes != "" {
			alert.Notes = &notes
		}
		alert.Seq++
		resolved = append(resolved, *alert)
		delete(sh.index, key)
	}
	sh.mu.Unlock()

	for _, snapshot := range resolved {
		m.notify(snapshot)
	}
	return len(resolved)
}

// Active lists unresolved alerts for the tenant, optionally filtered by scope
// and severity, most urgent and freshest first.
func (m *Manager) Active(tenantID, scopeID string, severity anomaly.Severity, limit int) []Alert {
	sh := m.shardFor(tenantID)
	sh.mu.Lock()

	matches := make([]Alert, 0)
	for _, alert := range sh.alerts {
		if alert.TenantID != tenantID || alert.Resolved() {
			continue
		}
		if scopeID != "" && alert.ScopeID != scopeID {
			continue
		}
		if severity != 0 && alert.Severity != severity {
			continue
		}
		matches = append(matches, *alert)
	}
	sh.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Severity != matches[j].Severity {
			return matches[i].Severity > matches[j].Severity
		}
		return matches[i].DetectedAt.After(matches[j].DetectedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// History lists alerts detected within the last daysBack days, resolved ones
// included, newest first.
func (m *Manager) History(tenantID, scopeID string, daysBack, limit int) []Alert {
	cutoff := m.now().AddDate(0, 0, -daysBack)

	sh := m.shardFor(tenantID)
	sh.mu.Lock()

	matches := make([]Alert, 0)
	for _, alert := range sh.alerts {
		if alert.TenantID != tenantID {
			continue
		}
		if scopeID != "" && alert.ScopeID != scopeID {
			continue
		}
		if daysBack > 0 && alert.DetectedAt.Before(cutoff) {
			continue
		}
		matches = append(matches, *alert)
	}
	sh.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DetectedAt.After(matches[j].DetectedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Summary aggregates the tenant's active alerts. The by-severity counts are
// always an exact partition of Active for the same tenant.
func (m *Manager) Summary(tenantID string) Summary {
	summary := Summary{
		BySeverity: make(map[string]int),
		ByScope:    make(map[string]int),
		ByType:     make(map[string]int),
	}

	sh := m.shardFor(tenantID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, alert := range sh.alerts {
		if alert.TenantID != tenantID || alert.Resolved() {
			continue
		}
		summary.TotalActive++
		summary.BySeverity[alert.Severity.String()]++
		summary.ByScope[alert.ScopeID]++
		summary.ByType[string(alert.Type)]++
	}

	summary.NeedsAttention = summary.BySeverity[anomaly.SeverityCritical.String()]+
		summary.BySeverity[anomaly.SeverityHigh.String()] > 0
	return summary
}

// Restore loads persisted alerts before ingestion starts, rebuilding the
// dedup index for the unresolved ones so dedup and summaries survive
// restarts.
func (m *Manager) Restore(alerts []Alert) {
	for _, alert := range alerts {
		a := alert
		sh := m.shardFor(a.TenantID)
		sh.mu.Lock()
		sh.alerts[a.ID] = &a
		if !a.Resolved() {
			key := DedupKey{
				TenantID:   a.TenantID,
				Type:       a.Type,
				ScopeID:    a.ScopeID,
				CampaignID: deref(a.CampaignID),
				KeywordID:  deref(a.KeywordID),
			}
			sh.index[key] = a.ID
		}
		sh.mu.Unlock()
	}
}

func (m *Manager) mutate(id string, fn func(*Alert) error) (Alert, error) {
	for _, sh := range m.shards {
		sh.mu.Lock()
		if alert, ok := sh.alerts[id]; ok {
			if err := fn(alert); err != nil {
				sh.mu.Unlock()
				return Alert{}, err
			}
			alert.Seq++
			snapshot := *alert
			sh.mu.Unlock()
			return snapshot, nil
		}
		sh.mu.Unlock()
	}
	return Alert{}, ErrNotFound
}

func (m *Manager) dropFromIndex(a Alert) {
	key := DedupKey{
		TenantID:   a.TenantID,
		Type:       a.Type,
		ScopeID:    a.ScopeID,
		CampaignID: deref(a.CampaignID),
		KeywordID:  deref(a.KeywordID),
	}
	sh := m.shardFor(a.TenantID)
	sh.mu.Lock()
	if sh.index[key] == a.ID {
		delete(sh.index, key)
	}
	sh.mu.Unlock()
}

func (m *Manager) notify(a Alert) {
	if m.onChange != nil {
		m.onChange(a)
	}
}
