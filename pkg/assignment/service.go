package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"avos-hq/avos/pkg/assignlog"
	"avos-hq/avos/pkg/experiment"
	"avos-hq/avos/pkg/splitter"
	"avos-hq/avos/pkg/srm"
	"avos-hq/avos/pkg/telemetry/metrics"
)

// logBatchSize is the flush threshold for bulk assignment logging.
const logBatchSize = 1000

// Status classifies a per-layer assignment outcome.
type Status string

const (
	// StatusAssigned: the unit landed in an experiment variant.
	StatusAssigned Status = "assigned"
	// StatusUnassigned: no experiment in the layer admitted the unit.
	StatusUnassigned Status = "unassigned"
)

// Result is the outcome of assigning one unit within one layer.
type Result struct {
	UnitID  string
	LayerID string
	Status  Status

	// ExperimentID, ExperimentName, and Variant are set when Status is
	// StatusAssigned.
	ExperimentID   string
	ExperimentName string
	Variant        string

	// Assignment is the record handed to the logger, nil when unassigned.
	Assignment *experiment.Assignment
}

// Service computes assignments. The zero value is usable; options attach
// the optional logger and metrics collaborators.
type Service struct {
	logger  assignlog.Logger
	slog    *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches an assignment logger. Without one, assignments are
// computed but not recorded anywhere.
func WithLogger(l assignlog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an assignment service.
func NewService(opts ...Option) *Service {
	s := &Service{
		slog: slog.Default().With("component", "assignment.service"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignForLayer determines which experiment and variant, if any, the unit
// sees in the layer.
//
// The returned result is always valid when err is nil or err is an
// *assignlog.Error: a logging failure is reported alongside the computed
// assignment so the caller decides whether it is fatal.
func (s *Service) AssignForLayer(ctx context.Context, layer *experiment.Layer, unitID string, sctx splitter.Context) (*Result, error) {
	started := s.now()
	result, err := s.evaluate(layer, unitID, sctx)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAssignmentDuration(s.now().Sub(started))

	if result.Assignment != nil && s.logger != nil {
		if logErr := s.logger.LogAssignments(ctx, []experiment.Assignment{*result.Assignment}); logErr != nil {
			return result, wrapLogError(logErr)
		}
	}
	return result, nil
}

// AssignBulkForLayer assigns many units, flushing log batches periodically
// so unbounded inputs do not accumulate unbounded buffers. On a logging
// failure the computed results are returned together with the error.
func (s *Service) AssignBulkForLayer(ctx context.Context, layer *experiment.Layer, unitIDs []string, sctx splitter.Context) (map[string]*Result, error) {
	results := make(map[string]*Result, len(unitIDs))
	batch := make([]experiment.Assignment, 0, logBatchSize)

	flush := func() error {
		if len(batch) == 0 || s.logger == nil {
			return nil
		}
		if err := s.logger.LogAssignments(ctx, batch); err != nil {
			return wrapLogError(err)
		}
		batch = batch[:0]
		return nil
	}

	for _, unitID := range unitIDs {
		result, err := s.evaluate(layer, unitID, sctx)
		if err != nil {
			return results, err
		}
		results[unitID] = result
		if result.Assignment != nil {
			batch = append(batch, *result.Assignment)
		}
		if len(batch) >= logBatchSize {
			if err := flush(); err != nil {
				return results, err
			}
		}
	}
	if err := flush(); err != nil {
		return results, err
	}
	return results, nil
}

// ExperimentPreview is one experiment's share of a preview run.
type ExperimentPreview struct {
	// Counts is the per-variant tally over the sampled units.
	Counts map[string]int

	// Expected is the experiment's configured traffic allocation.
	Expected map[string]float64

	// Verdict is the SRM test outcome, nil when no tester was supplied or
	// the experiment tallied no units.
	Verdict *srm.Result
}

// Preview is the outcome of a preview run over sampled units.
type Preview struct {
	TotalUnits  int
	Assigned    int
	Unassigned  int
	Experiments map[string]*ExperimentPreview
}

// PreviewAssignmentMetrics computes assignments for the sampled units using
// the exact serving algorithm but without logging, tallies per-variant
// counts per experiment, and forwards each tally with its expected
// allocation to the SRM tester.
func (s *Service) PreviewAssignmentMetrics(layer *experiment.Layer, unitIDs []string, sctx splitter.Context, tester *srm.Tester) (*Preview, error) {
	preview := &Preview{
		TotalUnits:  len(unitIDs),
		Experiments: make(map[string]*ExperimentPreview),
	}

	for _, unitID := range unitIDs {
		result, err := s.evaluate(layer, unitID, sctx)
		if err != nil {
			return nil, err
		}
		if result.Status != StatusAssigned {
			preview.Unassigned++
			continue
		}
		preview.Assigned++
		ep := preview.Experiments[result.ExperimentID]
		if ep == nil {
			exp := layer.Experiment(result.ExperimentID)
			ep = &ExperimentPreview{
				Counts:   make(map[string]int, len(exp.Variants)),
				Expected: exp.TrafficAllocation,
			}
			preview.Experiments[result.ExperimentID] = ep
		}
		ep.Counts[result.Variant]++
	}

	if tester != nil {
		for experimentID, ep := range preview.Experiments {
			verdict, err := tester.Test(ep.Counts, ep.Expected)
			if err != nil {
				return nil, fmt.Errorf("srm test for experiment %q: %w", experimentID, err)
			}
			ep.Verdict = verdict
			s.metrics.RecordSRMTest(experimentID, verdict.Flagged)
			if verdict.Flagged {
				s.slog.Warn("sample ratio mismatch flagged",
					"layer_id", layer.LayerID,
					"experiment_id", experimentID,
					"p_value", verdict.PValue,
					"chi2", verdict.ChiSquare)
			}
		}
	}
	return preview, nil
}

// evaluate runs the pure assignment algorithm for one unit against the
// layer snapshot.
func (s *Service) evaluate(layer *experiment.Layer, unitID string, sctx splitter.Context) (*Result, error) {
	now := s.now().UTC()

	for _, exp := range layer.SortedExperiments() {
		if !exp.ActiveAt(now) {
			continue
		}
		sp, err := splitter.For(exp.SplitterType)
		if err != nil {
			// Unreachable for synced config; guards hand-built layers.
			return nil, fmt.Errorf("experiment %q: %w", exp.ExperimentID, err)
		}
		decision := sp.Decide(exp, layer.LayerSalt, unitID, sctx)
		if decision.Excluded {
			s.metrics.RecordExclusion(layer.LayerID, decision.Reason)
			continue
		}

		record := experiment.NewAssignment(layer.LayerID, exp.ExperimentID, exp.Name, unitID, decision.Variant, now)
		s.metrics.RecordAssignment(layer.LayerID, exp.ExperimentID, decision.Variant)
		return &Result{
			UnitID:         unitID,
			LayerID:        layer.LayerID,
			Status:         StatusAssigned,
			ExperimentID:   exp.ExperimentID,
			ExperimentName: exp.Name,
			Variant:        decision.Variant,
			Assignment:     &record,
		}, nil
	}

	s.metrics.RecordUnassigned(layer.LayerID)
	return &Result{
		UnitID:  unitID,
		LayerID: layer.LayerID,
		Status:  StatusUnassigned,
	}, nil
}

func wrapLogError(err error) error {
	if _, ok := err.(*assignlog.Error); ok {
		return err
	}
	return assignlog.NewError("unknown", "log", err)
}
