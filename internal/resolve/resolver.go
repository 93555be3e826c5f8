// Package resolve rewrites {INPUT:name} placeholders embedded in
// configuration values into CloudFormation dynamic reference expressions.
package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
)

const (
	tagStart = "{INPUT:"
	tagEnd   = "}"
)

var placeholderPattern = regexp.MustCompile(`\{INPUT:([^}]+)\}`)

// UnknownInputError reports a placeholder referencing an undeclared input.
type UnknownInputError struct {
	Name string
}

func (e *UnknownInputError) Error() string {
	return fmt.Sprintf("unknown input: placeholder references undeclared input %q", e.Name)
}

// Resolver expands placeholders against a project's declared inputs and
// records which inputs were referenced. Input names are case-sensitive.
type Resolver struct {
	inputs   map[string]*model.Input
	required map[string]bool
}

// New creates a resolver over the given declared inputs.
func New(inputs map[string]*model.Input) *Resolver {
	return &Resolver{
		inputs:   inputs,
		required: map[string]bool{},
	}
}

// Resolve expands every placeholder in value. Strings without placeholders
// are returned unchanged; strings with placeholders become a Join of the
// literal fragments and the inputs' dynamic reference expressions. The
// stored value itself never appears in the result.
func (r *Resolver) Resolve(value string) (cfn.Value, error) {
	if !ContainsPlaceholder(value) {
		return value, nil
	}

	var parts []cfn.Value
	rest := value
	for ContainsPlaceholder(rest) {
		start := strings.Index(rest, tagStart)
		prefix := rest[:start]
		tail := rest[start+len(tagStart):]

		end := strings.Index(tail, tagEnd)
		name := tail[:end]
		rest = tail[end+len(tagEnd):]

		input, ok := r.inputs[name]
		if !ok {
			return nil, &UnknownInputError{Name: name}
		}
		r.required[name] = true

		if prefix != "" {
			parts = append(parts, prefix)
		}
		parts = append(parts, input.DynamicReference())
	}
	if rest != "" {
		parts = append(parts, rest)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return cfn.Join("", parts...), nil
}

// ResolveMap expands placeholders in every value of a string map, returning
// a deterministic template-value map.
func (r *Resolver) ResolveMap(values map[string]string) (map[string]cfn.Value, error) {
	if len(values) == 0 {
		return nil, nil
	}

	resolved := make(map[string]cfn.Value, len(values))
	for key, value := range values {
		expanded, err := r.Resolve(value)
		if err != nil {
			return nil, err
		}
		resolved[key] = expanded
	}
	return resolved, nil
}

// RequiredInputs returns the sorted names of every input referenced through
// this resolver so far.
func (r *Resolver) RequiredInputs() []string {
	names := make([]string, 0, len(r.required))
	for name := range r.required {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContainsPlaceholder reports whether s contains a complete placeholder tag.
// A start tag without a closing brace is treated as literal text.
func ContainsPlaceholder(s string) bool {
	start := strings.Index(s, tagStart)
	if start < 0 {
		return false
	}
	return strings.Contains(s[start+len(tagStart):], tagEnd)
}

// FindPlaceholders returns every placeholder input name appearing in the
// document, in order of appearance. Used to verify that resolution left no
// tokens behind.
func FindPlaceholders(document []byte) []string {
	var names []string
	for _, match := range placeholderPattern.FindAllSubmatch(document, -1) {
		names = append(names, string(match[1]))
	}
	return names
}

// Check statically verifies that every placeholder in the project's action
// configuration and environment maps references a declared input. It fails
// before any template is emitted and before any deployment side effect.
func Check(project *model.Project) error {
	resolver := New(project.Inputs)
	for _, stage := range project.Pipeline {
		for _, action := range stage.Actions {
			if _, err := resolver.ResolveMap(action.Configuration); err != nil {
				return fmt.Errorf("stage %s: %w", stage.Name, err)
			}
			if _, err := resolver.ResolveMap(action.Env); err != nil {
				return fmt.Errorf("stage %s: %w", stage.Name, err)
			}
		}
	}
	return nil
}
