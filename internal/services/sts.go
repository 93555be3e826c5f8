package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity describes the AWS principal running the deployment.
type CallerIdentity struct {
	Account string
	Arn     string
}

// IdentityService resolves the current caller identity.
type IdentityService struct {
	client *sts.Client
}

// NewIdentityService creates an IdentityService over the given client.
func NewIdentityService(client *sts.Client) *IdentityService {
	return &IdentityService{client: client}
}

// CallerIdentity returns the account and principal ARN of the current
// credentials.
func (s *IdentityService) CallerIdentity(ctx context.Context) (CallerIdentity, error) {
	result, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return CallerIdentity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return CallerIdentity{
		Account: aws.ToString(result.Account),
		Arn:     aws.ToString(result.Arn),
	}, nil
}
