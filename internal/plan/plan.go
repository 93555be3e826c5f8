// Package plan builds the deployment plan for a project's templates: a DAG
// of stack nodes and upload barriers that fixes creation order and defers
// template locations until their uploads are confirmed durable.
package plan

import (
	"sort"
	"strings"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/templates"
)

// Source describes how a node's template body reaches CloudFormation.
type Source int

const (
	// SourceInline templates are passed directly as the stack body. Only the
	// core stack is inline: it creates the bucket the others are stored in.
	SourceInline Source = iota

	// SourceStored templates must be uploaded to the artifacts bucket before
	// the stack can be created; the node's barrier carries the confirmed
	// location.
	SourceStored
)

// Binding describes how one stack parameter receives its value: either a
// static string or an upstream node's output.
type Binding struct {
	Static string
	Node   string
	Output string
}

// StaticBinding binds a parameter to a fixed value.
func StaticBinding(value string) Binding {
	return Binding{Static: value}
}

// OutputBinding binds a parameter to an upstream node's output.
func OutputBinding(node, output string) Binding {
	return Binding{Node: node, Output: output}
}

// IsStatic reports whether the binding carries a fixed value.
func (b Binding) IsStatic() bool {
	return b.Node == ""
}

// Node is one stack in the deployment plan. Nodes are immutable once
// planning completes; executors only read them.
type Node struct {
	// Name is the stack logical identifier, e.g. "Stack0Inputs".
	Name string

	// Base is the role-token portion of the name, e.g. "CodeBuild0Stage0build".
	Base string

	Template *cfn.Template
	Source   Source

	// Barrier is this node's own upload barrier; creation must not start
	// before it is satisfied.
	Barrier *Barrier

	// Parameters maps parameter names to their bindings.
	Parameters map[string]Binding

	// Requires lists upstream node names whose terminal success gates this
	// node.
	Requires []string

	// Barriers lists every barrier gating this node, its own first.
	Barriers []*Barrier
}

// DependsOn returns the names of everything gating this node: barriers and
// upstream nodes.
func (n *Node) DependsOn() []string {
	deps := make([]string, 0, len(n.Barriers)+len(n.Requires))
	for _, barrier := range n.Barriers {
		deps = append(deps, barrier.Name())
	}
	deps = append(deps, n.Requires...)
	sort.Strings(deps)
	return deps
}

// Plan is the complete deployment plan for one project.
type Plan struct {
	ProjectName string

	// Nodes in a valid topological order. Nodes with no dependency relation
	// may execute concurrently.
	Nodes []*Node

	// InputValues gates the pipeline stack on input values having been
	// saved: its dynamic references must observe real values, not creation
	// placeholders.
	InputValues *Barrier

	byName map[string]*Node
}

// Node returns the named node, or nil.
func (p *Plan) Node(name string) *Node {
	return p.byName[name]
}

// StoredNodes returns the nodes whose templates must be uploaded, in plan
// order.
func (p *Plan) StoredNodes() []*Node {
	var stored []*Node
	for _, node := range p.Nodes {
		if node.Source == SourceStored {
			stored = append(stored, node)
		}
	}
	return stored
}

// Base names of the fixed stacks every project deploys. Stage stacks are
// named with templates.StageStackToken.
const (
	BaseCore     = "Core"
	BaseInputs   = "Inputs"
	BaseIam      = "Iam"
	BasePipeline = "Pipeline"
)

// StackNodeName returns the plan node name for a stack base name, e.g.
// ("Inputs") -> "Stack0Inputs".
func StackNodeName(base string) string {
	return cfn.ResourceName("AWS::CloudFormation::Stack", base)
}

// BarrierName returns the upload barrier name for a stack base name, e.g.
// ("Pipeline") -> "WaitFor0Upload0Template0Pipeline".
func BarrierName(base string) string {
	return cfn.LogicalName("WaitFor", "Upload", "Template", base)
}

// InputValuesBarrierName is the name of the barrier satisfied once all input
// values have been saved to their storage resources.
func InputValuesBarrierName() string {
	return cfn.LogicalName("WaitFor", "Upload", "Input", "Values")
}

func newNode(base string, template *cfn.Template, source Source) *Node {
	barrier := NewBarrier(BarrierName(base))
	return &Node{
		Name:       StackNodeName(base),
		Base:       base,
		Template:   template,
		Source:     source,
		Barrier:    barrier,
		Parameters: map[string]Binding{},
		Barriers:   []*Barrier{barrier},
	}
}

// Build constructs the deployment plan from a project's generated templates.
// It wires every stack parameter to the node output that produces it,
// pairs every template with an upload barrier, and verifies the resulting
// graph is acyclic.
func Build(project *model.Project, set *templates.Set) (*Plan, error) {
	core := newNode(BaseCore, set.Core, SourceInline)
	inputs := newNode(BaseInputs, set.Inputs, SourceStored)
	iam := newNode(BaseIam, set.IAM, SourceStored)

	nodes := []*Node{core, inputs, iam}
	for _, stage := range set.CodeBuild {
		nodes = append(nodes, newNode(templates.StageStackToken(stage.Stage), stage.Template, SourceStored))
	}

	pipeline := newNode(BasePipeline, set.Pipeline, SourceStored)
	nodes = append(nodes, pipeline)

	// The pipeline's per-stage templates must be in place before the
	// pipeline stack is created, independent of parameter wiring.
	for _, stage := range set.CodeBuild {
		stageNode := StackNodeName(templates.StageStackToken(stage.Stage))
		for _, node := range nodes {
			if node.Name == stageNode {
				pipeline.Barriers = append(pipeline.Barriers, node.Barrier)
			}
		}
	}

	// Any stack whose template embeds input dynamic references must wait
	// for the values to be saved: CloudFormation resolves the references at
	// stack creation, and an early stack would capture the creation
	// placeholders. The pipeline always waits.
	inputValues := NewBarrier(InputValuesBarrierName())
	inputRefs := make(map[string]bool, len(project.Inputs))
	for _, input := range project.Inputs {
		inputRefs[input.ReferenceName()] = true
	}
	for _, node := range nodes {
		if node == pipeline || node == inputs {
			continue
		}
		for name := range node.Template.Parameters {
			if inputRefs[name] {
				node.Barriers = append(node.Barriers, inputValues)
				break
			}
		}
	}
	pipeline.Barriers = append(pipeline.Barriers, inputValues)

	if err := bindParameters(project, nodes); err != nil {
		return nil, err
	}

	sorted, err := topoSort(nodes)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Node, len(sorted))
	for _, node := range sorted {
		byName[node.Name] = node
	}

	return &Plan{
		ProjectName: project.Name,
		Nodes:       sorted,
		InputValues: inputValues,
		byName:      byName,
	}, nil
}

// bindParameters resolves every template parameter to the output of the node
// that produces it. A parameter no node can satisfy is a PlanningError: it
// means a builder emitted a contract-violating template.
func bindParameters(project *model.Project, nodes []*Node) error {
	for _, node := range nodes {
		names := make([]string, 0, len(node.Template.Parameters))
		for name := range node.Template.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			binding, err := bindParameter(project, nodes, node, name)
			if err != nil {
				return err
			}
			node.Parameters[name] = binding
			node.require(binding.Node)
		}
	}
	return nil
}

func bindParameter(project *model.Project, nodes []*Node, consumer *Node, name string) (Binding, error) {
	for _, producer := range nodes {
		if producer == consumer {
			continue
		}
		if producer.Template.HasOutput(name) {
			return OutputBinding(producer.Name, name), nil
		}
	}

	// Stage-qualified parameters reference a per-stage stack output under a
	// name prefixed with the stage, e.g. "Stage0build0Project0a0Name".
	for _, stage := range project.Pipeline {
		prefix := cfn.LogicalName("Stage", stage.Name) + cfn.ValueSeparator
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		output := strings.TrimPrefix(name, prefix)
		stageNode := StackNodeName(templates.StageStackToken(stage.Name))
		for _, producer := range nodes {
			if producer.Name == stageNode && producer.Template.HasOutput(output) {
				return OutputBinding(producer.Name, output), nil
			}
		}
	}

	return Binding{}, &PlanningError{
		Node:    consumer.Name,
		Message: "parameter " + name + " cannot be satisfied by any node's outputs",
	}
}

func (n *Node) require(name string) {
	if name == "" || name == n.Name {
		return
	}
	for _, existing := range n.Requires {
		if existing == name {
			return
		}
	}
	n.Requires = append(n.Requires, name)
	sort.Strings(n.Requires)
}
