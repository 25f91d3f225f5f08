package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// PlanRecord is the audit row stored for an executed plan.
type PlanRecord struct {
	ID          string
	RequestID   string
	FlowID      string
	Path        models.ExecutionPath
	Status      models.PlanStatus
	Reasoning   string
	Duration    time.Duration
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// StepRecord is the audit row stored for a single step of a plan.
type StepRecord struct {
	PlanID    string
	StepID    string
	Status    models.StepStatus
	Attempts  int
	Error     string
	StartedAt *time.Time
	Duration  time.Duration
}

// RecordPlan writes the audit trail for an executed plan: one plan row
// plus one row per step. The write is transactional so a crash never
// leaves a plan without its steps.
func (db *DB) RecordPlan(p *models.TaskPlan, result *models.TaskPlanResult, path models.ExecutionPath) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var completedAt any
		if p.CompletedAt != nil {
			completedAt = formatTime(*p.CompletedAt)
		}

		_, err := tx.Exec(`
			INSERT INTO plans (id, request_id, flow_id, path, status, reasoning, duration_ns, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				reasoning = excluded.reasoning,
				duration_ns = excluded.duration_ns,
				completed_at = excluded.completed_at
		`, p.ID, p.RequestID, p.FlowID, string(path), string(result.Status),
			result.Reasoning, int64(result.Duration), formatTime(p.CreatedAt), completedAt)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for _, step := range p.Steps {
			var startedAt any
			if step.StartedAt != nil {
				startedAt = formatTime(*step.StartedAt)
			}
			var duration int64
			if step.StartedAt != nil && step.CompletedAt != nil {
				duration = int64(step.CompletedAt.Sub(*step.StartedAt))
			}

			_, err := tx.Exec(`
				INSERT INTO plan_steps (plan_id, step_id, status, attempts, error, started_at, duration_ns)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(plan_id, step_id) DO UPDATE SET
					status = excluded.status,
					attempts = excluded.attempts,
					error = excluded.error,
					started_at = excluded.started_at,
					duration_ns = excluded.duration_ns
			`, p.ID, step.StepID, string(step.Status), len(step.History),
				step.Error, startedAt, duration)
			if err != nil {
				return fmt.Errorf("insert step %s: %w", step.StepID, err)
			}
		}
		return nil
	})
}

// GetPlan fetches a single plan audit record by ID.
func (db *DB) GetPlan(id string) (*PlanRecord, error) {
	row := db.QueryRow(`
		SELECT id, request_id, COALESCE(flow_id, ''), path, status, COALESCE(reasoning, ''), duration_ns, created_at, completed_at
		FROM plans WHERE id = ?
	`, id)

	rec, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return rec, nil
}

// ListRecentPlans returns the most recently created plans, newest
// first, capped at limit.
func (db *DB) ListRecentPlans(limit int) ([]PlanRecord, error) {
	rows, err := db.Query(`
		SELECT id, request_id, COALESCE(flow_id, ''), path, status, COALESCE(reasoning, ''), duration_ns, created_at, completed_at
		FROM plans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListPlanSteps returns the step audit rows for a plan.
func (db *DB) ListPlanSteps(planID string) ([]StepRecord, error) {
	rows, err := db.Query(`
		SELECT plan_id, step_id, status, attempts, COALESCE(error, ''), started_at, duration_ns
		FROM plan_steps WHERE plan_id = ?
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var status string
		var startedAt sql.NullString
		var duration int64
		if err := rows.Scan(&rec.PlanID, &rec.StepID, &status, &rec.Attempts, &rec.Error, &startedAt, &duration); err != nil {
			return nil, fmt.Errorf("scan plan step: %w", err)
		}
		rec.Status = models.StepStatus(status)
		rec.StartedAt = parseNullableTime(startedAt)
		rec.Duration = time.Duration(duration)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPlan(scan func(dest ...any) error) (*PlanRecord, error) {
	var rec PlanRecord
	var path, status, createdAt string
	var durationNS int64
	var completedAt sql.NullString

	if err := scan(&rec.ID, &rec.RequestID, &rec.FlowID, &path, &status, &rec.Reasoning, &durationNS, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	rec.Path = models.ExecutionPath(path)
	rec.Status = models.PlanStatus(status)
	rec.Duration = time.Duration(durationNS)
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = created
	rec.CompletedAt = parseNullableTime(completedAt)
	return &rec, nil
}
