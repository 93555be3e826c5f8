package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/dao/deploydao"
	"github.com/savaki/pipeformer/internal/inputs"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/plan"
	"github.com/savaki/pipeformer/internal/policy"
	"github.com/savaki/pipeformer/internal/services"
	"github.com/savaki/pipeformer/internal/templates"
)

// Options configures a Deployer. Stacks, Store, and Client are required;
// History and Validator are optional.
type Options struct {
	Project *model.Project
	Plan    *plan.Plan

	Stacks *services.StackService
	Store  *services.TemplateStore

	// Client backs per-stack resource caches for physical name lookups.
	Client *cloudformation.Client

	Inputs    inputs.Handler
	Validator *policy.Validator
	History   *deploydao.DAO
	Env       string

	// StackPrefix defaults to the lowercased project name.
	StackPrefix string

	// BarrierTimeout bounds every barrier wait. Defaults to
	// plan.DefaultBarrierTimeout.
	BarrierTimeout time.Duration
}

// Deployer executes a deployment plan against CloudFormation. Independent
// stacks deploy concurrently; dependents wait on upstream completion and on
// upload barriers, and are reported as blocked when an upstream fails.
type Deployer struct {
	project        *model.Project
	plan           *plan.Plan
	stacks         *services.StackService
	store          *services.TemplateStore
	client         *cloudformation.Client
	inputs         inputs.Handler
	validator      *policy.Validator
	history        *deploydao.DAO
	env            string
	prefix         string
	barrierTimeout time.Duration
}

// New creates a Deployer from options.
func New(opts Options) *Deployer {
	prefix := opts.StackPrefix
	if prefix == "" {
		prefix = strings.ToLower(opts.Project.Name)
	}
	timeout := opts.BarrierTimeout
	if timeout <= 0 {
		timeout = plan.DefaultBarrierTimeout
	}
	return &Deployer{
		project:        opts.Project,
		plan:           opts.Plan,
		stacks:         opts.Stacks,
		store:          opts.Store,
		client:         opts.Client,
		inputs:         opts.Inputs,
		validator:      opts.Validator,
		history:        opts.History,
		env:            opts.Env,
		prefix:         prefix,
		barrierTimeout: timeout,
	}
}

// StackName returns the physical stack name for a plan node, e.g.
// "myapp-codebuild-stage-build".
func (d *Deployer) StackName(node *plan.Node) string {
	base := strings.ToLower(strings.ReplaceAll(node.Base, cfn.ValueSeparator, "-"))
	return d.prefix + "-" + base
}

// Deploy collects input values, validates the generated templates, and
// executes the plan. Deployment history is recorded when a history DAO is
// configured.
func (d *Deployer) Deploy(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	if d.inputs != nil {
		if err := d.inputs.Collect(ctx, d.project); err != nil {
			return fmt.Errorf("failed to collect input values: %w", err)
		}
	}

	if d.validator != nil {
		if err := d.validate(ctx); err != nil {
			return err
		}
	}

	record, err := d.recordStart(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Str("project", d.project.Name).
		Int("stacks", len(d.plan.Nodes)).
		Msg("starting deployment")

	execErr := d.execute(ctx)
	if err := d.recordFinish(ctx, record, execErr); err != nil {
		logger.Warn().Err(err).Msg("failed to record deployment result")
	}
	if execErr != nil {
		return execErr
	}

	logger.Info().Str("project", d.project.Name).Msg("deployment complete")
	return nil
}

func (d *Deployer) validate(ctx context.Context) error {
	for _, node := range d.plan.Nodes {
		result, err := d.validator.ValidateTemplate(ctx, node.Template)
		if err != nil {
			return fmt.Errorf("failed to validate template %s: %w", node.Name, err)
		}
		if !result.Allowed {
			return fmt.Errorf("template %s rejected by policy: %s",
				node.Name, strings.Join(result.Violations, "; "))
		}
	}
	return nil
}

func (d *Deployer) recordStart(ctx context.Context) (deploydao.Record, error) {
	if d.history == nil {
		return deploydao.Record{}, nil
	}
	stacks := make([]string, 0, len(d.plan.Nodes))
	for _, node := range d.plan.Nodes {
		stacks = append(stacks, d.StackName(node))
	}
	record, err := d.history.Create(ctx, deploydao.CreateInput{
		Project: d.project.Name,
		Env:     d.env,
		SK:      ksuid.New().String(),
		Stacks:  stacks,
	})
	if err != nil {
		return deploydao.Record{}, fmt.Errorf("failed to create deployment record: %w", err)
	}
	err = d.history.UpdateStatus(ctx, deploydao.UpdateInput{
		PK:     record.PK,
		SK:     record.SK,
		Status: deploydao.StatusInProgress,
	})
	if err != nil {
		return deploydao.Record{}, fmt.Errorf("failed to update deployment record: %w", err)
	}
	return record, nil
}

func (d *Deployer) recordFinish(ctx context.Context, record deploydao.Record, execErr error) error {
	if d.history == nil {
		return nil
	}
	input := deploydao.UpdateInput{
		PK:     record.PK,
		SK:     record.SK,
		Status: deploydao.StatusSuccess,
	}
	if execErr != nil {
		msg := execErr.Error()
		input.Status = deploydao.StatusFailed
		input.ErrorMsg = &msg
	}
	return d.history.UpdateStatus(ctx, input)
}

// execution tracks per-node completion and collected stack outputs while a
// plan runs.
type execution struct {
	mu      sync.Mutex
	done    map[string]chan struct{}
	errs    map[string]error
	outputs map[string]map[string]string
}

func newExecution(p *plan.Plan) *execution {
	exec := &execution{
		done:    make(map[string]chan struct{}, len(p.Nodes)),
		errs:    make(map[string]error, len(p.Nodes)),
		outputs: make(map[string]map[string]string, len(p.Nodes)),
	}
	for _, node := range p.Nodes {
		exec.done[node.Name] = make(chan struct{})
	}
	return exec
}

func (e *execution) finish(name string, outputs map[string]string, err error) {
	e.mu.Lock()
	e.errs[name] = err
	if outputs != nil {
		e.outputs[name] = outputs
	}
	e.mu.Unlock()
	close(e.done[name])
}

// wait blocks until the named node finishes and returns its error.
func (e *execution) wait(ctx context.Context, name string) error {
	select {
	case <-e.done[name]:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs[name]
}

func (e *execution) output(node, key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	value, ok := e.outputs[node][key]
	return value, ok
}

func (d *Deployer) execute(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	exec := newExecution(d.plan)

	// Inline templates never wait on an upload; their barriers are
	// satisfied before anything starts.
	for _, node := range d.plan.Nodes {
		if node.Source == plan.SourceInline {
			node.Barrier.Satisfy("")
		}
	}

	var wg sync.WaitGroup
	for _, node := range d.plan.Nodes {
		wg.Add(1)
		go func(node *plan.Node) {
			defer wg.Done()
			outputs, err := d.runNode(ctx, exec, node)
			exec.finish(node.Name, outputs, err)
		}(node)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.uploadTemplates(ctx, exec)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.saveInputs(ctx, exec)
	}()

	wg.Wait()

	var failure error
	for _, node := range d.plan.Nodes {
		err := exec.errs[node.Name]
		if err == nil {
			continue
		}
		var blocked *BlockedError
		if errors.As(err, &blocked) {
			logger.Warn().Str("stack", node.Name).Err(blocked.Cause).Msg("stack blocked")
			if failure == nil {
				failure = err
			}
			continue
		}
		logger.Error().Str("stack", node.Name).Err(err).Msg("stack failed")
		failure = err
	}
	return failure
}

// runNode waits for everything gating one node, then creates or updates its
// stack and waits for the terminal state.
func (d *Deployer) runNode(ctx context.Context, exec *execution, node *plan.Node) (map[string]string, error) {
	logger := zerolog.Ctx(ctx)

	for _, name := range node.Requires {
		if err := exec.wait(ctx, name); err != nil {
			return nil, &BlockedError{Node: node.Name, Cause: fmt.Errorf("upstream stack %s: %w", name, err)}
		}
	}

	var location string
	for _, barrier := range node.Barriers {
		loc, err := barrier.Wait(ctx, d.barrierTimeout)
		if err != nil {
			return nil, &BlockedError{Node: node.Name, Cause: err}
		}
		if barrier == node.Barrier {
			location = loc
		}
	}

	parameters, err := d.resolveParameters(exec, node)
	if err != nil {
		return nil, err
	}

	input := services.StackInput{
		Name:       d.StackName(node),
		Parameters: parameters,
		Tags:       map[string]string{"pipeformer": d.project.Name},
	}
	switch node.Source {
	case plan.SourceInline:
		body, err := node.Template.JSON()
		if err != nil {
			return nil, fmt.Errorf("failed to render template %s: %w", node.Name, err)
		}
		input.TemplateBody = string(body)
	case plan.SourceStored:
		input.TemplateURL = location
	}

	exists, err := d.stacks.StackExists(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Info().Str("stack", input.Name).Msg("updating stack")
		err = d.stacks.UpdateStack(ctx, input)
	} else {
		logger.Info().Str("stack", input.Name).Msg("creating stack")
		err = d.stacks.CreateStack(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	if err := d.stacks.WaitForStack(ctx, input.Name); err != nil {
		return nil, err
	}

	outputs, err := d.stacks.StackOutputs(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("stack", input.Name).Msg("stack complete")
	return outputs, nil
}

func (d *Deployer) resolveParameters(exec *execution, node *plan.Node) (map[string]string, error) {
	parameters := make(map[string]string, len(node.Parameters))
	for name, binding := range node.Parameters {
		if binding.IsStatic() {
			parameters[name] = binding.Static
			continue
		}
		value, ok := exec.output(binding.Node, binding.Output)
		if !ok {
			return nil, fmt.Errorf("stack %s parameter %s: upstream %s has no output %s",
				node.Name, name, binding.Node, binding.Output)
		}
		parameters[name] = value
	}
	return parameters, nil
}

// uploadTemplates waits for the core stack, resolves the physical artifacts
// bucket name, uploads every stored template, and settles each node's
// barrier with the confirmed location.
func (d *Deployer) uploadTemplates(ctx context.Context, exec *execution) {
	logger := zerolog.Ctx(ctx)
	stored := d.plan.StoredNodes()

	coreName := plan.StackNodeName(plan.BaseCore)
	if err := exec.wait(ctx, coreName); err != nil {
		failure := fmt.Errorf("artifacts bucket unavailable: %w", err)
		for _, node := range stored {
			node.Barrier.Fail(failure)
		}
		return
	}

	core := d.plan.Node(coreName)
	cache := services.NewResourceCache(d.client, d.StackName(core))
	bucket, err := cache.PhysicalResourceName(ctx, templates.ArtifactsBucket())
	if err != nil {
		failure := fmt.Errorf("failed to resolve artifacts bucket: %w", err)
		for _, node := range stored {
			node.Barrier.Fail(failure)
		}
		return
	}

	for _, node := range stored {
		body, err := node.Template.JSON()
		if err != nil {
			node.Barrier.Fail(fmt.Errorf("failed to render template %s: %w", node.Name, err))
			continue
		}
		location, err := d.store.Upload(ctx, bucket, body)
		if err != nil {
			node.Barrier.Fail(fmt.Errorf("failed to upload template %s: %w", node.Name, err))
			continue
		}
		logger.Info().
			Str("stack", node.Name).
			Str("key", location.Key).
			Msg("uploaded template")
		node.Barrier.Satisfy(location.URL)
	}
}

// saveInputs waits for the inputs stack, writes collected values into the
// secrets and parameters it created, and satisfies the input values barrier
// so the pipeline's dynamic references observe real values.
func (d *Deployer) saveInputs(ctx context.Context, exec *execution) {
	logger := zerolog.Ctx(ctx)

	inputsName := plan.StackNodeName(plan.BaseInputs)
	if err := exec.wait(ctx, inputsName); err != nil {
		d.plan.InputValues.Fail(fmt.Errorf("inputs stack unavailable: %w", err))
		return
	}

	if d.inputs == nil || len(d.project.Inputs) == 0 {
		d.plan.InputValues.Satisfy("")
		return
	}

	node := d.plan.Node(inputsName)
	cache := services.NewResourceCache(d.client, d.StackName(node))
	if err := d.inputs.Save(ctx, d.project, cache.PhysicalResourceName); err != nil {
		d.plan.InputValues.Fail(fmt.Errorf("failed to save input values: %w", err))
		return
	}
	logger.Info().Int("inputs", len(d.project.Inputs)).Msg("input values saved")
	d.plan.InputValues.Satisfy("")
}
