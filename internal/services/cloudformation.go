package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

const stackPollInterval = 10 * time.Second

// StackService wraps the CloudFormation stack lifecycle operations the
// deployer needs.
type StackService struct {
	client *cloudformation.Client
}

// NewStackService creates a StackService over the given client.
func NewStackService(client *cloudformation.Client) *StackService {
	return &StackService{client: client}
}

// StackInput describes a stack to create or update. Exactly one of
// TemplateBody and TemplateURL must be set.
type StackInput struct {
	Name         string
	TemplateBody string
	TemplateURL  string
	Parameters   map[string]string
	Tags         map[string]string
}

// StackExists reports whether the named stack has already been deployed.
func (s *StackService) StackExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	return true, nil
}

// CreateStack creates a new stack and returns without waiting for
// completion.
func (s *StackService) CreateStack(ctx context.Context, input StackInput) error {
	request := &cloudformation.CreateStackInput{
		StackName:    aws.String(input.Name),
		Parameters:   MergeParameters(input.Parameters),
		Tags:         stackTags(input.Tags),
		Capabilities: []types.Capability{types.CapabilityCapabilityIam},
	}
	if input.TemplateURL != "" {
		request.TemplateURL = aws.String(input.TemplateURL)
	} else {
		request.TemplateBody = aws.String(input.TemplateBody)
	}

	if _, err := s.client.CreateStack(ctx, request); err != nil {
		return fmt.Errorf("failed to create stack %s: %w", input.Name, err)
	}
	return nil
}

// UpdateStack updates an existing stack and returns without waiting for
// completion.
func (s *StackService) UpdateStack(ctx context.Context, input StackInput) error {
	request := &cloudformation.UpdateStackInput{
		StackName:    aws.String(input.Name),
		Parameters:   MergeParameters(input.Parameters),
		Tags:         stackTags(input.Tags),
		Capabilities: []types.Capability{types.CapabilityCapabilityIam},
	}
	if input.TemplateURL != "" {
		request.TemplateURL = aws.String(input.TemplateURL)
	} else {
		request.TemplateBody = aws.String(input.TemplateBody)
	}

	if _, err := s.client.UpdateStack(ctx, request); err != nil {
		return fmt.Errorf("failed to update stack %s: %w", input.Name, err)
	}
	return nil
}

// WaitForStack polls the stack until it reaches a terminal state, returning
// an error for anything other than create or update success.
func (s *StackService) WaitForStack(ctx context.Context, name string) error {
	logger := zerolog.Ctx(ctx)

	for {
		result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(name),
		})
		if err != nil {
			return fmt.Errorf("failed to describe stack %s: %w", name, err)
		}
		if len(result.Stacks) == 0 {
			return fmt.Errorf("stack %s not found", name)
		}

		status := result.Stacks[0].StackStatus
		logger.Debug().Str("stack", name).Str("status", string(status)).Msg("Polled stack status")

		switch status {
		case types.StackStatusCreateComplete, types.StackStatusUpdateComplete:
			return nil
		case types.StackStatusCreateInProgress, types.StackStatusUpdateInProgress,
			types.StackStatusUpdateCompleteCleanupInProgress, types.StackStatusReviewInProgress:
			// keep polling
		default:
			return fmt.Errorf("stack %s reached status %s", name, status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stackPollInterval):
		}
	}
}

// StackOutputs returns the named stack's outputs as a map.
func (s *StackService) StackOutputs(ctx context.Context, name string) (map[string]string, error) {
	result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(result.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", name)
	}

	outputs := map[string]string{}
	for _, output := range result.Stacks[0].Outputs {
		if output.OutputKey != nil && output.OutputValue != nil {
			outputs[*output.OutputKey] = *output.OutputValue
		}
	}
	return outputs, nil
}

// MergeParameters merges parameter maps with later maps taking precedence
// and returns a deterministically ordered CloudFormation parameter list.
func MergeParameters(pp ...map[string]string) []types.Parameter {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []types.Parameter
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(m[k]),
		})
	}
	return results
}

func stackTags(tags map[string]string) []types.Tag {
	var results []types.Tag
	for _, k := range slices.Sorted(maps.Keys(tags)) {
		results = append(results, types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return results
}

// Resource polling bounds, per attempt and total.
const (
	maxResourceAttempts = 20
	waitPerAttempt      = 5 * time.Second
)

// ResourceCache caches physical resource names for a single stack and waits
// for resources that do not exist yet.
type ResourceCache struct {
	client    *cloudformation.Client
	stackName string

	mu    sync.Mutex
	cache map[string]string
}

// NewResourceCache creates a cache bound to one stack.
func NewResourceCache(client *cloudformation.Client, stackName string) *ResourceCache {
	return &ResourceCache{
		client:    client,
		stackName: stackName,
		cache:     map[string]string{},
	}
}

func (c *ResourceCache) describeResource(ctx context.Context, logicalName string) (*types.StackResourceDetail, error) {
	result, err := c.client.DescribeStackResource(ctx, &cloudformation.DescribeStackResourceInput{
		StackName:         aws.String(c.stackName),
		LogicalResourceId: aws.String(logicalName),
	})
	if err != nil {
		return nil, err
	}
	return result.StackResourceDetail, nil
}

// waitUntilResourceExists polls until the resource appears in the stack.
func (c *ResourceCache) waitUntilResourceExists(ctx context.Context, logicalName string) (*types.StackResourceDetail, error) {
	logger := zerolog.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		logger.Debug().
			Str("resource", logicalName).
			Str("stack", c.stackName).
			Int("attempt", attempt).
			Msg("Waiting for resource creation to start")

		detail, err := c.describeResource(ctx, logicalName)
		if err == nil {
			return detail, nil
		}

		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) || !strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return nil, fmt.Errorf("failed to describe resource %s: %w", logicalName, err)
		}
		if attempt >= maxResourceAttempts {
			return nil, fmt.Errorf("resource %s did not appear in stack %s after %d attempts", logicalName, c.stackName, attempt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitPerAttempt):
		}
	}
}

// WaitUntilResourceComplete waits until the resource reaches create or
// update complete, failing on any terminal error status.
func (c *ResourceCache) WaitUntilResourceComplete(ctx context.Context, logicalName string) error {
	logger := zerolog.Ctx(ctx)

	detail, err := c.waitUntilResourceExists(ctx, logicalName)
	if err != nil {
		return err
	}

	for {
		status := detail.ResourceStatus
		logger.Debug().
			Str("resource", logicalName).
			Str("stack", c.stackName).
			Str("status", string(status)).
			Msg("Polled resource status")

		switch status {
		case types.ResourceStatusCreateComplete, types.ResourceStatusUpdateComplete:
			return nil
		case types.ResourceStatusCreateInProgress, types.ResourceStatusUpdateInProgress, "":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitPerAttempt):
			}
			detail, err = c.describeResource(ctx, logicalName)
			if err != nil {
				return fmt.Errorf("failed to describe resource %s: %w", logicalName, err)
			}
		default:
			return fmt.Errorf("resource %s in stack %s reached status %s", logicalName, c.stackName, status)
		}
	}
}

// PhysicalResourceName returns the physical name of a resource, waiting for
// the resource if it does not exist yet. Results are cached.
func (c *ResourceCache) PhysicalResourceName(ctx context.Context, logicalName string) (string, error) {
	c.mu.Lock()
	if name, ok := c.cache[logicalName]; ok {
		c.mu.Unlock()
		return name, nil
	}
	c.mu.Unlock()

	detail, err := c.waitUntilResourceExists(ctx, logicalName)
	if err != nil {
		return "", err
	}

	for detail.PhysicalResourceId == nil || *detail.PhysicalResourceId == "" {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(waitPerAttempt):
		}
		detail, err = c.describeResource(ctx, logicalName)
		if err != nil {
			return "", fmt.Errorf("failed to describe resource %s: %w", logicalName, err)
		}
	}

	name := *detail.PhysicalResourceId
	c.mu.Lock()
	c.cache[logicalName] = name
	c.mu.Unlock()
	return name, nil
}
