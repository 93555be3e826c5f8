// Package policy gates generated templates behind an OPA policy before they
// are uploaded or deployed.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/savaki/pipeformer/internal/cfn"
)

//go:embed cloudformation.rego
var policyContent string

// Validator evaluates generated templates against the embedded
// CloudFormation policy.
type Validator struct {
	allow      rego.PreparedEvalQuery
	violations rego.PreparedEvalQuery
}

// ValidationResult is the outcome of evaluating one template.
type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

// NewValidator prepares the policy queries.
func NewValidator() (*Validator, error) {
	allow, err := rego.New(
		rego.Query("data.cloudformation.allow"),
		rego.Module("cloudformation.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	violations, err := rego.New(
		rego.Query("data.cloudformation.violations"),
		rego.Module("cloudformation.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	return &Validator{allow: allow, violations: violations}, nil
}

// ValidateTemplate evaluates one generated template. The template is
// round-tripped through its JSON form so the policy sees exactly what
// CloudFormation will.
func (v *Validator) ValidateTemplate(ctx context.Context, template *cfn.Template) (*ValidationResult, error) {
	body, err := template.JSON()
	if err != nil {
		return nil, err
	}

	var document map[string]interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("failed to decode template for policy evaluation: %w", err)
	}

	input := map[string]interface{}{
		"Resources": document["Resources"],
	}

	results, err := v.allow.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 {
		return &ValidationResult{Allowed: false, Violations: []string{"policy evaluation returned no results"}}, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return &ValidationResult{Allowed: false, Violations: []string{"policy evaluation returned non-boolean result"}}, nil
	}

	result := &ValidationResult{Allowed: allowed}
	if !allowed {
		violations, err := v.getViolations(ctx, input)
		if err != nil {
			return nil, err
		}
		result.Violations = violations
	}
	return result, nil
}

func (v *Validator) getViolations(ctx context.Context, input map[string]interface{}) ([]string, error) {
	results, err := v.violations.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}
	if len(results) == 0 {
		return []string{"unknown policy violation"}, nil
	}

	var violations []string
	switch value := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, violation := range value {
			if str, ok := violation.(string); ok {
				violations = append(violations, str)
			}
		}
	case map[string]interface{}:
		// Rego sets arrive as maps.
		for violation := range value {
			violations = append(violations, violation)
		}
	}

	if len(violations) == 0 {
		return []string{"policy validation failed but no specific violations found"}, nil
	}
	return violations, nil
}
