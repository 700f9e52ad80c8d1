package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"avos-hq/avos/pkg/config"
	"avos-hq/avos/pkg/experiment"
	"avos-hq/avos/pkg/storage"
	"avos-hq/avos/pkg/telemetry/metrics"
)

// Op describes one applied change.
type Op string

const (
	// OpLayerCreated: a new layer was created.
	OpLayerCreated Op = "layer_created"
	// OpLayerUpdated: an existing layer's mutable fields changed.
	OpLayerUpdated Op = "layer_updated"
	// OpExperimentCreated: a new experiment was added to the layer.
	OpExperimentCreated Op = "experiment_created"
	// OpExperimentUpdated: an existing experiment's mutable fields changed.
	OpExperimentUpdated Op = "experiment_updated"
	// OpExperimentCompleted: an experiment was retired in this change.
	OpExperimentCompleted Op = "experiment_completed"
)

// Change records one applied mutation. ExperimentID is empty for layer-level
// changes.
type Change struct {
	LayerID      string
	ExperimentID string
	Op           Op
}

// Rejection records a layer whose whole change set was refused, with the
// full set of reasons joined into Err.
type Rejection struct {
	LayerID string
	Err     error
}

// Result reports the outcome of one Apply call. Layers are independent: a
// rejected layer never blocks another layer's changes.
type Result struct {
	Applied    []Change
	Rejections []Rejection
}

// RejectionFor returns the rejection error for the given layer, or nil if
// its change set was applied.
func (r *Result) RejectionFor(layerID string) error {
	for _, rej := range r.Rejections {
		if rej.LayerID == layerID {
			return rej.Err
		}
	}
	return nil
}

// Service applies validated layer configuration to the store. It is the
// sole mutator of persisted layer/experiment state.
type Service struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a sync service over the given store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default().With("component", "sync.service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply reconciles each incoming layer document against persisted state and
// commits accepted change sets atomically per layer. Rejected layers are
// reported in the result with every reason; they never roll back or block
// other layers. The returned error is non-nil only for context cancellation.
func (s *Service) Apply(ctx context.Context, configs []config.LayerConfig) (*Result, error) {
	result := &Result{}
	for i := range configs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		cfg := &configs[i]
		changes, err := s.applyLayer(ctx, cfg)
		if err != nil {
			s.logger.Warn("layer change set rejected", "layer_id", cfg.LayerID, "error", err)
			s.metrics.RecordSyncApply(cfg.LayerID, "rejected")
			result.Rejections = append(result.Rejections, Rejection{LayerID: cfg.LayerID, Err: err})
			continue
		}
		s.logger.Info("layer change set applied", "layer_id", cfg.LayerID, "changes", len(changes))
		s.metrics.RecordSyncApply(cfg.LayerID, "applied")
		result.Applied = append(result.Applied, changes...)
	}
	return result, nil
}

// applyLayer validates and commits one layer's change set. Any returned
// error means nothing was written for this layer.
func (s *Service) applyLayer(ctx context.Context, cfg *config.LayerConfig) ([]Change, error) {
	prior, err := s.store.GetLayer(ctx, cfg.LayerID)
	var version int64
	switch {
	case errors.Is(err, storage.ErrNotFound):
		prior = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load prior state: %w", err)
	default:
		version = prior.Version
	}

	// Structural validation first; prior-state rules below surface as typed
	// violations rather than field errors.
	if err := config.Validate(cfg, nil); err != nil {
		return nil, err
	}

	next, changes, violations := s.reconcile(cfg, prior)

	if footprint := next.ActiveTraffic(); footprint > next.TotalTrafficPercentage+experiment.Epsilon {
		violations = append(violations, &CapacityViolation{
			LayerID:   cfg.LayerID,
			Footprint: footprint,
			Capacity:  next.TotalTrafficPercentage,
		})
	}

	if len(violations) > 0 {
		for _, v := range violations {
			s.metrics.RecordSyncViolation(cfg.LayerID, violationRule(v))
		}
		return nil, errors.Join(violations...)
	}
	if len(changes) == 0 {
		return nil, nil
	}

	if err := s.store.PutLayer(ctx, next, version); err != nil {
		if errors.Is(err, storage.ErrStaleVersion) {
			s.metrics.RecordSyncViolation(cfg.LayerID, "stale_version")
			return nil, &StaleVersionError{LayerID: cfg.LayerID, Err: err}
		}
		return nil, fmt.Errorf("failed to commit layer: %w", err)
	}
	return changes, nil
}

// reconcile merges the incoming document onto the prior snapshot, collecting
// immutability and ramp violations. It never mutates prior.
func (s *Service) reconcile(cfg *config.LayerConfig, prior *experiment.Layer) (*experiment.Layer, []Change, []error) {
	now := s.now().UTC()

	if prior == nil {
		next := cfg.ToLayer()
		stampLayer(next, now)
		changes := []Change{{LayerID: cfg.LayerID, Op: OpLayerCreated}}
		for _, exp := range next.SortedExperiments() {
			changes = append(changes, Change{LayerID: cfg.LayerID, ExperimentID: exp.ExperimentID, Op: OpExperimentCreated})
		}
		return next, changes, nil
	}

	next := prior.Clone()
	var changes []Change
	var violations []error

	if cfg.LayerSalt != prior.LayerSalt {
		violations = append(violations, &ImmutabilityViolation{
			LayerID: cfg.LayerID,
			Field:   "layer_salt",
			Message: "changing the salt would silently reassign every unit",
		})
	}
	if cfg.TotalSlots != prior.TotalSlots {
		violations = append(violations, &ImmutabilityViolation{
			LayerID: cfg.LayerID,
			Field:   "total_slots",
			Message: "slot capacity is fixed at layer creation",
		})
	}
	if math.Abs(cfg.TotalTrafficPercentage-prior.TotalTrafficPercentage) > experiment.Epsilon {
		next.TotalTrafficPercentage = cfg.TotalTrafficPercentage
		changes = append(changes, Change{LayerID: cfg.LayerID, Op: OpLayerUpdated})
	}

	// Experiments absent from the incoming document are left untouched;
	// deletion is only ever the explicit completed status.
	ids := make([]string, 0, len(cfg.Experiments))
	for i := range cfg.Experiments {
		ids = append(ids, cfg.Experiments[i].ExperimentID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		expCfg := cfg.Experiment(id)
		incoming := expCfg.ToExperiment()
		existing := next.Experiment(id)

		if existing == nil {
			stampExperiment(incoming, now)
			next.Experiments = append(next.Experiments, incoming)
			changes = append(changes, Change{LayerID: cfg.LayerID, ExperimentID: id, Op: OpExperimentCreated})
			continue
		}

		if equivalent(existing, incoming) {
			continue
		}

		expViolations := checkExperimentChange(cfg.LayerID, existing, incoming)
		if len(expViolations) > 0 {
			violations = append(violations, expViolations...)
			continue
		}

		op := OpExperimentUpdated
		if incoming.Status == experiment.StatusCompleted {
			op = OpExperimentCompleted
		}
		applyExperimentUpdate(existing, incoming, now)
		changes = append(changes, Change{LayerID: cfg.LayerID, ExperimentID: id, Op: op})
	}

	return next, changes, violations
}

// checkExperimentChange enforces the post-creation rules for a changed,
// existing experiment.
func checkExperimentChange(layerID string, existing, incoming *experiment.Experiment) []error {
	var violations []error

	if existing.Status == experiment.StatusCompleted {
		return []error{&ImmutabilityViolation{
			LayerID:      layerID,
			ExperimentID: existing.ExperimentID,
			Field:        "status",
			Message:      "completed experiments cannot be modified",
		}}
	}

	if !sameVariantSet(existing.Variants, incoming.Variants) {
		violations = append(violations, &ImmutabilityViolation{
			LayerID:      layerID,
			ExperimentID: existing.ExperimentID,
			Field:        "variants",
			Message:      "express a variant change as a new experiment_id",
		})
	}
	if existing.SplitterType != incoming.SplitterType {
		violations = append(violations, &ImmutabilityViolation{
			LayerID:      layerID,
			ExperimentID: existing.ExperimentID,
			Field:        "splitter_type",
			Message:      "express a splitter change as a new experiment_id",
		})
	}

	if !experiment.AllocationsEqual(existing.TrafficAllocation, incoming.TrafficAllocation) {
		// The only allocation reshape allowed in place is a winner rollout,
		// and only together with retirement in the same change.
		winner := experiment.IsWinnerRollout(incoming.TrafficAllocation)
		if !winner || incoming.Status != experiment.StatusCompleted {
			violations = append(violations, &ImmutabilityViolation{
				LayerID:      layerID,
				ExperimentID: existing.ExperimentID,
				Field:        "traffic_allocation",
				Message:      "allocation changes require a new experiment_id, except a winner rollout paired with status completed",
			})
		}
	}

	if incoming.Status != experiment.StatusCompleted &&
		incoming.TrafficPercentage < existing.TrafficPercentage-experiment.Epsilon {
		violations = append(violations, &RampDownViolation{
			LayerID:      layerID,
			ExperimentID: existing.ExperimentID,
			Prior:        existing.TrafficPercentage,
			Proposed:     incoming.TrafficPercentage,
		})
	}

	return violations
}

// applyExperimentUpdate copies the mutable fields of incoming onto existing.
func applyExperimentUpdate(existing, incoming *experiment.Experiment, now time.Time) {
	existing.Name = incoming.Name
	existing.TrafficAllocation = incoming.TrafficAllocation
	existing.Status = incoming.Status
	existing.TrafficPercentage = incoming.TrafficPercentage
	existing.SegmentAllocations = incoming.SegmentAllocations
	existing.GeoAllocations = incoming.GeoAllocations
	existing.StratumAllocations = incoming.StratumAllocations
	existing.StartDate = incoming.StartDate
	existing.EndDate = incoming.EndDate
	existing.UpdatedAt = now
}

func stampLayer(layer *experiment.Layer, now time.Time) {
	layer.CreatedAt = now
	layer.UpdatedAt = now
	for _, exp := range layer.Experiments {
		stampExperiment(exp, now)
	}
}

func stampExperiment(exp *experiment.Experiment, now time.Time) {
	exp.CreatedAt = now
	exp.UpdatedAt = now
}

// equivalent reports whether incoming would be a no-op update.
func equivalent(existing, incoming *experiment.Experiment) bool {
	return existing.Name == incoming.Name &&
		existing.Status == incoming.Status &&
		existing.SplitterType == incoming.SplitterType &&
		math.Abs(existing.TrafficPercentage-incoming.TrafficPercentage) <= experiment.Epsilon &&
		sameVariantSet(existing.Variants, incoming.Variants) &&
		experiment.AllocationsEqual(existing.TrafficAllocation, incoming.TrafficAllocation) &&
		sameDimension(existing.SegmentAllocations, incoming.SegmentAllocations) &&
		sameDimension(existing.GeoAllocations, incoming.GeoAllocations) &&
		sameDimension(existing.StratumAllocations, incoming.StratumAllocations) &&
		sameTime(existing.StartDate, incoming.StartDate) &&
		sameTime(existing.EndDate, incoming.EndDate)
}

func sameVariantSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sameDimension(a, b map[string]map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !experiment.AllocationsEqual(va, vb) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equal(*b)
}

func violationRule(err error) string {
	switch err.(type) {
	case *ImmutabilityViolation:
		return "immutability"
	case *RampDownViolation:
		return "ramp_down"
	case *CapacityViolation:
		return "capacity"
	case *StaleVersionError:
		return "stale_version"
	}
	return "other"
}
