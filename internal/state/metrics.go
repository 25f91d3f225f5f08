package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// SaveFlowMetrics upserts the metrics row for a flow.
func (db *DB) SaveFlowMetrics(flowID string, m models.FlowMetrics) error {
	_, err := db.Exec(`
		INSERT INTO flow_metrics (flow_id, usage_count, success_count, average_latency_ns, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(flow_id) DO UPDATE SET
			usage_count = excluded.usage_count,
			success_count = excluded.success_count,
			average_latency_ns = excluded.average_latency_ns,
			updated_at = excluded.updated_at
	`, flowID, m.UsageCount, m.SuccessCount, int64(m.AverageLatency), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save flow metrics: %w", err)
	}
	return nil
}

// LoadFlowMetrics reads the persisted metrics for a flow. The second
// return value reports whether a row existed.
func (db *DB) LoadFlowMetrics(flowID string) (models.FlowMetrics, bool, error) {
	var m models.FlowMetrics
	var latencyNS int64

	row := db.QueryRow(`
		SELECT usage_count, success_count, average_latency_ns
		FROM flow_metrics WHERE flow_id = ?
	`, flowID)
	if err := row.Scan(&m.UsageCount, &m.SuccessCount, &latencyNS); err != nil {
		if err == sql.ErrNoRows {
			return models.FlowMetrics{}, false, nil
		}
		return models.FlowMetrics{}, false, fmt.Errorf("load flow metrics: %w", err)
	}

	m.AverageLatency = time.Duration(latencyNS)
	return m, true, nil
}

// ListFlowMetrics returns the persisted metrics for all flows, keyed by
// flow ID.
func (db *DB) ListFlowMetrics() (map[string]models.FlowMetrics, error) {
	rows, err := db.Query(`
		SELECT flow_id, usage_count, success_count, average_latency_ns
		FROM flow_metrics
	`)
	if err != nil {
		return nil, fmt.Errorf("list flow metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.FlowMetrics)
	for rows.Next() {
		var id string
		var m models.FlowMetrics
		var latencyNS int64
		if err := rows.Scan(&id, &m.UsageCount, &m.SuccessCount, &latencyNS); err != nil {
			return nil, fmt.Errorf("scan flow metrics: %w", err)
		}
		m.AverageLatency = time.Duration(latencyNS)
		out[id] = m
	}
	return out, rows.Err()
}
