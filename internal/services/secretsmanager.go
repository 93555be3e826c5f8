package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsService writes secret input values to AWS Secrets Manager.
type SecretsService struct {
	client *secretsmanager.Client
}

// NewSecretsService creates a SecretsService over the given client.
func NewSecretsService(client *secretsmanager.Client) *SecretsService {
	return &SecretsService{client: client}
}

// UpdateSecret replaces the stored value of an existing secret. The secret
// resource itself is created by the inputs stack; only its value is managed
// here.
func (s *SecretsService) UpdateSecret(ctx context.Context, secretID, value string) error {
	_, err := s.client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(secretID),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("failed to update secret %s: %w", secretID, err)
	}
	return nil
}
