// Package state provides SQLite-based persistence for switchboard.
package state

import (
	"io"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// MetricsStore handles flow metric persistence. It matches the sink
// interface the flow registry expects.
type MetricsStore interface {
	SaveFlowMetrics(flowID string, metrics models.FlowMetrics) error
	LoadFlowMetrics(flowID string) (models.FlowMetrics, bool, error)
	ListFlowMetrics() (map[string]models.FlowMetrics, error)
}

// AuditStore handles plan audit persistence.
type AuditStore interface {
	RecordPlan(p *models.TaskPlan, result *models.TaskPlanResult, path models.ExecutionPath) error
	GetPlan(id string) (*PlanRecord, error)
	ListRecentPlans(limit int) ([]PlanRecord, error)
	ListPlanSteps(planID string) ([]StepRecord, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for switchboard persistence.
// This interface allows the orchestrator to work with any backend
// without depending on the concrete SQLite implementation.
// It composes focused sub-interfaces for better modularity.
type Store interface {
	io.Closer
	Migrator
	MetricsStore
	AuditStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ MetricsStore = (*DB)(nil)
	_ AuditStore   = (*DB)(nil)
)
