// Package flow maintains the registry of precompiled flow templates and
// matches incoming requests against it using exact, pattern, and
// semantic strategies.
package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// MetricsSink receives flow metric updates for persistence. The
// registry keeps working even when no sink is configured.
type MetricsSink interface {
	SaveFlowMetrics(flowID string, metrics models.FlowMetrics) error
	LoadFlowMetrics(flowID string) (models.FlowMetrics, bool, error)
}

// entry pairs a registered flow with its compiled pattern.
type entry struct {
	flow    *models.FlowDefinition
	pattern *regexp.Regexp
}

// Registry is the single owned store of flow definitions. Reads are
// concurrent; metric updates happen only through RecordExecution after
// a plan completes, keeping a single-writer discipline.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*entry
	byIntent map[string]*entry
	sink     MetricsSink
}

// NewRegistry creates an empty flow registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*entry),
		byIntent: make(map[string]*entry),
	}
}

// SetMetricsSink attaches a persistence sink for flow metrics.
func (r *Registry) SetMetricsSink(sink MetricsSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Register adds a flow to the registry, compiling its pattern and
// restoring persisted metrics if a sink is attached. Registering a
// flow with an existing ID replaces it.
func (r *Registry) Register(flow *models.FlowDefinition) error {
	if flow.FlowID == "" {
		return fmt.Errorf("flow has no flow_id")
	}

	var pattern *regexp.Regexp
	if flow.Pattern != "" {
		var err error
		pattern, err = regexp.Compile("(?i)" + flow.Pattern)
		if err != nil {
			return fmt.Errorf("flow %s: compile pattern: %w", flow.FlowID, err)
		}
	}

	if err := validateTemplate(flow); err != nil {
		return fmt.Errorf("flow %s: %w", flow.FlowID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink != nil {
		if m, ok, err := r.sink.LoadFlowMetrics(flow.FlowID); err == nil && ok {
			flow.Metrics = m
		}
	}

	e := &entry{flow: flow, pattern: pattern}
	r.byID[flow.FlowID] = e
	if flow.IntentKey != "" {
		r.byIntent[flow.IntentKey] = e
	}
	return nil
}

// validateTemplate checks that a flow's template references only step
// IDs declared in the same template.
func validateTemplate(flow *models.FlowDefinition) error {
	ids := make(map[string]bool, len(flow.Template.Steps))
	for _, st := range flow.Template.Steps {
		if st.StepID == "" {
			return fmt.Errorf("template step with empty step_id")
		}
		if ids[st.StepID] {
			return fmt.Errorf("duplicate template step %s", st.StepID)
		}
		ids[st.StepID] = true
	}
	for _, st := range flow.Template.Steps {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("template step %s depends on unknown step %s", st.StepID, dep)
			}
		}
	}
	return nil
}

// FindByIntent returns the flow registered for the exact intent key, or
// nil if none.
func (r *Registry) FindByIntent(intent models.Intent) *models.FlowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byIntent[intent.Key()]; ok {
		return e.flow
	}
	return nil
}

// FindByDomain returns all flows whose intent key carries the given
// domain.
func (r *Registry) FindByDomain(domain string) []*models.FlowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.FlowDefinition
	for _, e := range r.byID {
		if strings.HasSuffix(e.flow.IntentKey, ":"+domain) {
			out = append(out, e.flow)
		}
	}
	return out
}

// Get returns the flow with the given ID, or nil.
func (r *Registry) Get(flowID string) *models.FlowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byID[flowID]; ok {
		return e.flow
	}
	return nil
}

// List returns all registered flows sorted by flow ID.
func (r *Registry) List() []*models.FlowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.FlowDefinition, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e.flow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowID < out[j].FlowID })
	return out
}

// entriesByUsage returns all entries sorted by decreasing usage count,
// flow ID as a deterministic tie-break.
func (r *Registry) entriesByUsage() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ui, uj := out[i].flow.Metrics.UsageCount, out[j].flow.Metrics.UsageCount
		if ui != uj {
			return ui > uj
		}
		return out[i].flow.FlowID < out[j].flow.FlowID
	})
	return out
}

// RecordExecution updates a flow's metrics after a plan built from it
// completes. This is the only write path for flow metrics.
func (r *Registry) RecordExecution(flowID string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[flowID]
	if !ok {
		return
	}

	m := &e.flow.Metrics
	prior := m.UsageCount
	m.UsageCount++
	if success {
		m.SuccessCount++
	}
	// Running mean over all executions.
	m.AverageLatency = time.Duration((int64(m.AverageLatency)*prior + int64(latency)) / m.UsageCount)

	if r.sink != nil {
		_ = r.sink.SaveFlowMetrics(flowID, *m)
	}
}

// LoadDir registers every flow defined in *.yaml/*.yml files under dir.
// Each file may hold one flow or a list under a top-level "flows" key.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read flows dir: %w", err)
	}

	loaded := 0
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		ext := filepath.Ext(de.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, de.Name())
		flows, err := LoadFile(path)
		if err != nil {
			return loaded, err
		}
		for _, f := range flows {
			if err := r.Register(f); err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}
			loaded++
		}
	}
	return loaded, nil
}

// flowFile is the on-disk YAML shape: either a single flow document or
// a "flows" list.
type flowFile struct {
	Flows []*models.FlowDefinition `yaml:"flows"`
}

// LoadFile parses flow definitions from a YAML file.
func LoadFile(path string) ([]*models.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	var ff flowFile
	if err := yaml.Unmarshal(data, &ff); err == nil && len(ff.Flows) > 0 {
		return ff.Flows, nil
	}

	var single models.FlowDefinition
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse flow file %s: %w", path, err)
	}
	if single.FlowID == "" {
		return nil, fmt.Errorf("flow file %s: no flows found", path)
	}
	return []*models.FlowDefinition{&single}, nil
}
