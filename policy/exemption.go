package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/diagaudit/diagaudit/telemetry"
	"github.com/diagaudit/diagaudit/types"
)

// ExemptionEngine evaluates Rego waiver rules against resources. A rule in
// the diagaudit namespace that sets exempt=true excludes the resource from
// the audit the same way an unsupported kind is excluded: skipped and left
// out of the totals, never counted as non-compliant.
type ExemptionEngine struct {
	logger  *telemetry.Logger
	queries map[string]rego.PreparedEvalQuery
}

// ExemptionInput is the input document handed to each waiver rule.
type ExemptionInput struct {
	Resource  types.ResourceDescriptor `json:"resource"`
	Kind      types.ResourceKind       `json:"kind"`
	Timestamp time.Time                `json:"timestamp"`
}

// Exemption is the outcome of waiver evaluation for one resource.
type Exemption struct {
	Exempt bool
	Reason string
	Rule   string
}

// NewExemptionEngine creates an empty engine; load rules with LoadBundle.
func NewExemptionEngine() *ExemptionEngine {
	return &ExemptionEngine{
		logger:  telemetry.NewLogger("exemption-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadBundle walks a directory and compiles every .rego file in it.
func (e *ExemptionEngine) LoadBundle(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("exemption bundle path does not exist: %s", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !strings.HasSuffix(path, ".rego") {
			return nil
		}

		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("read exemption rule %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".rego")
		return e.LoadRule(ctx, name, string(content))
	})
}

// LoadRule compiles a single Rego module into the engine.
func (e *ExemptionEngine) LoadRule(ctx context.Context, name, regoCode string) error {
	query := rego.New(
		rego.Query("data.diagaudit"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("compile exemption rule %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("rule", name).
		Msg("exemption rule loaded")

	return nil
}

// RuleCount reports how many rules are loaded.
func (e *ExemptionEngine) RuleCount() int {
	return len(e.queries)
}

// Check evaluates every loaded rule against a resource. Rules run in name
// order so the first matching waiver is stable across runs.
func (e *ExemptionEngine) Check(ctx context.Context, input ExemptionInput) (Exemption, error) {
	names := make([]string, 0, len(e.queries))
	for name := range e.queries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		exemption, err := e.evalRule(ctx, name, input)
		if err != nil {
			e.logger.WithContext(ctx).Error().
				Err(err).
				Str("rule", name).
				Str("resource_id", input.Resource.ID).
				Msg("exemption rule evaluation failed")
			continue
		}
		if exemption.Exempt {
			exemption.Rule = name
			return exemption, nil
		}
	}

	return Exemption{}, nil
}

func (e *ExemptionEngine) evalRule(ctx context.Context, name string, input ExemptionInput) (Exemption, error) {
	results, err := e.queries[name].Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Exemption{}, fmt.Errorf("eval failed: %w", err)
	}

	var exemption Exemption
	for _, res := range results {
		for _, expr := range res.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			bindExemption(doc, &exemption)
		}
	}
	return exemption, nil
}

// bindExemption pulls exempt/reason out of the rule's document. The value
// shape comes from OPA at runtime, so this is the one place raw maps are
// inspected.
func bindExemption(doc map[string]interface{}, out *Exemption) {
	if v, ok := doc["exempt"].(bool); ok {
		out.Exempt = out.Exempt || v
	}
	if v, ok := doc["reason"].(string); ok && out.Reason == "" {
		out.Reason = v
	}
}
