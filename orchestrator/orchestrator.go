// Package orchestrator coordinates one audit run: discover, classify,
// fetch snapshots, evaluate, aggregate.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/diagaudit/diagaudit/classifier"
	"github.com/diagaudit/diagaudit/evaluator"
	"github.com/diagaudit/diagaudit/policy"
	"github.com/diagaudit/diagaudit/report"
	"github.com/diagaudit/diagaudit/telemetry"
	"github.com/diagaudit/diagaudit/types"
)

// Source supplies discovered resources and their diagnostic snapshots.
// Implemented by providers/azure in production, by fakes in tests.
type Source interface {
	ListResources(ctx context.Context) ([]types.ResourceDescriptor, error)
	GetSnapshot(ctx context.Context, resourceID string) (*types.DiagnosticSnapshot, error)
}

// Orchestrator runs the audit pipeline.
type Orchestrator struct {
	source      Source
	policy      *policy.RetentionPolicy
	exemptions  *policy.ExemptionEngine
	environment string
	concurrency int
	logger      *telemetry.Logger
	tracer      trace.Tracer
	metrics     *telemetry.Provider
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExemptions enables the Rego waiver engine for this run.
func WithExemptions(engine *policy.ExemptionEngine) Option {
	return func(o *Orchestrator) { o.exemptions = engine }
}

// WithConcurrency bounds the snapshot fetch worker pool.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithTelemetry records run metrics on the given provider after every audit.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(o *Orchestrator) { o.metrics = p }
}

// WithClock overrides the run timestamp source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator for one environment.
func New(source Source, pol *policy.RetentionPolicy, environment string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		policy:      pol,
		environment: environment,
		concurrency: 8,
		logger:      telemetry.NewLogger("orchestrator"),
		tracer:      otel.Tracer("orchestrator"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// workItem is one resource that passed classification and exemption.
type workItem struct {
	desc types.ResourceDescriptor
	kind types.ResourceKind
	reqs policy.ResourceRequirements
}

// Run performs one complete audit and returns the aggregated report.
// Snapshot fetches fan out across a bounded worker pool; results are sorted
// by resource name before aggregation so concurrent completion order never
// leaks into the rendered report.
func (o *Orchestrator) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(attribute.String("environment", o.environment)))
	defer span.End()

	resources, err := o.source.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	items := o.selectResources(ctx, resources)
	results := o.evaluateAll(ctx, items)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Resource.Name != results[j].Resource.Name {
			return results[i].Resource.Name < results[j].Resource.Name
		}
		return results[i].Resource.ID < results[j].Resource.ID
	})

	r := report.Aggregate(report.Meta{
		Timestamp:     o.now().UTC(),
		Environment:   o.environment,
		PolicyVersion: o.policy.Version,
		Frameworks:    o.policy.ComplianceFrameworks,
	}, results)

	if o.metrics != nil {
		o.metrics.RecordRun(ctx, time.Since(start).Seconds(),
			r.TotalResources, r.NonCompliantResources)
	}

	o.logger.LogRunComplete(ctx, r.TotalResources, r.CompliantResources,
		r.NonCompliantResources, r.ComplianceRatePercent)

	return r, nil
}

// selectResources classifies and filters discovered resources. Unsupported
// kinds, kinds the policy does not cover, and exempt resources are skipped,
// not failed: they never reach the evaluator and never count toward totals.
func (o *Orchestrator) selectResources(ctx context.Context, resources []types.ResourceDescriptor) []workItem {
	var items []workItem

	for _, desc := range resources {
		kind := classifier.Classify(desc.RawType, desc.Hint)
		if !classifier.IsSupported(kind) {
			o.logger.LogClassificationGap(ctx, desc.ID, desc.RawType)
			continue
		}

		reqs := o.policy.RequirementsFor(kind)
		if reqs.IsEmpty() {
			o.logger.LogPolicyGap(ctx, desc.ID, string(kind))
			continue
		}

		if o.isExempt(ctx, desc, kind) {
			continue
		}

		items = append(items, workItem{
			desc: desc,
			kind: kind,
			reqs: reqs,
		})
	}

	return items
}

func (o *Orchestrator) isExempt(ctx context.Context, desc types.ResourceDescriptor, kind types.ResourceKind) bool {
	if o.exemptions == nil || o.exemptions.RuleCount() == 0 {
		return false
	}

	exemption, err := o.exemptions.Check(ctx, policy.ExemptionInput{
		Resource:  desc,
		Kind:      kind,
		Timestamp: o.now().UTC(),
	})
	if err != nil {
		// A broken waiver never silently excludes a resource.
		return false
	}
	if exemption.Exempt {
		o.logger.WithContext(ctx).Info().
			Str("resource_id", desc.ID).
			Str("rule", exemption.Rule).
			Str("reason", exemption.Reason).
			Msg("resource exempt from audit")
	}
	return exemption.Exempt
}

// evaluateAll fetches snapshots with a bounded worker pool and evaluates
// each resource. A failed fetch is treated exactly as an absent snapshot;
// the evaluator collapses both into the same finding.
func (o *Orchestrator) evaluateAll(ctx context.Context, items []workItem) []types.ResourceComplianceResult {
	results := make([]types.ResourceComplianceResult, len(items))
	sem := make(chan struct{}, o.concurrency)

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := items[i]
			snapshot, err := o.source.GetSnapshot(ctx, item.desc.ID)
			if err != nil {
				o.logger.LogSnapshotUnavailable(ctx, item.desc.ID, err)
				snapshot = nil
			}
			results[i] = evaluator.Evaluate(item.desc, item.kind, snapshot, item.reqs)
		}(i)
	}
	wg.Wait()

	return results
}
