// Package cfn provides a minimal CloudFormation template document model.
//
// Templates are synthesized as plain JSON-marshalable structures. Map keys
// marshal in sorted order, so a template built from the same inputs always
// produces byte-identical JSON.
package cfn

import (
	"encoding/json"
	"fmt"
)

// Value is any JSON-marshalable template value, including intrinsic
// functions built with Ref, Sub, GetAtt, and Join.
type Value any

// Parameter declares a template parameter. All pipeformer parameters are
// strings; values are bound at stack creation time.
type Parameter struct {
	Type string `json:"Type"`
}

// Output declares a template output.
type Output struct {
	Value Value `json:"Value"`
}

// Tag is a resource tag.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Resource is a single template resource.
type Resource struct {
	Type       string           `json:"Type"`
	Properties map[string]Value `json:"Properties,omitempty"`
	DependsOn  []string         `json:"DependsOn,omitempty"`
}

// Template is a CloudFormation template document.
type Template struct {
	Description string               `json:"Description,omitempty"`
	Parameters  map[string]Parameter `json:"Parameters,omitempty"`
	Resources   map[string]Resource  `json:"Resources,omitempty"`
	Outputs     map[string]Output    `json:"Outputs,omitempty"`
}

// New creates an empty template with the given description.
func New(description string) *Template {
	return &Template{
		Description: description,
		Parameters:  map[string]Parameter{},
		Resources:   map[string]Resource{},
		Outputs:     map[string]Output{},
	}
}

// AddParameter registers a string parameter and returns a Ref to it.
func (t *Template) AddParameter(name string) Value {
	t.Parameters[name] = Parameter{Type: "String"}
	return Ref(name)
}

// AddResource registers a resource under the given logical name.
func (t *Template) AddResource(name string, resource Resource) {
	t.Resources[name] = resource
}

// AddOutput registers an output.
func (t *Template) AddOutput(name string, value Value) {
	t.Outputs[name] = Output{Value: value}
}

// HasParameter reports whether the template declares the named parameter.
func (t *Template) HasParameter(name string) bool {
	_, ok := t.Parameters[name]
	return ok
}

// HasOutput reports whether the template declares the named output.
func (t *Template) HasOutput(name string) bool {
	_, ok := t.Outputs[name]
	return ok
}

type templateJSON struct {
	FormatVersion string               `json:"AWSTemplateFormatVersion"`
	Description   string               `json:"Description,omitempty"`
	Parameters    map[string]Parameter `json:"Parameters,omitempty"`
	Resources     map[string]Resource  `json:"Resources,omitempty"`
	Outputs       map[string]Output    `json:"Outputs,omitempty"`
}

// JSON renders the template as an indented CloudFormation JSON document.
func (t *Template) JSON() ([]byte, error) {
	doc := templateJSON{
		FormatVersion: "2010-09-09",
		Description:   t.Description,
		Parameters:    t.Parameters,
		Resources:     t.Resources,
		Outputs:       t.Outputs,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return body, nil
}
