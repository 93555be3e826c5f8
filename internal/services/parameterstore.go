package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterService writes non-secret input values to SSM Parameter Store.
type ParameterService struct {
	client *ssm.Client
}

// NewParameterService creates a ParameterService over the given client.
func NewParameterService(client *ssm.Client) *ParameterService {
	return &ParameterService{client: client}
}

// PutParameter writes a parameter value, overwriting the creation
// placeholder, and returns the resulting parameter version.
func (p *ParameterService) PutParameter(ctx context.Context, name, value string) (int64, error) {
	result, err := p.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Type:      types.ParameterTypeString,
		Value:     aws.String(value),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put parameter %s: %w", name, err)
	}
	return result.Version, nil
}
