package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/savaki/pipeformer/internal/dao/deploydao"
	"github.com/savaki/pipeformer/internal/inputs"
	"github.com/savaki/pipeformer/internal/policy"
	"github.com/savaki/pipeformer/internal/services"
)

func ProvideDeployDAO(env string, client *dynamodb.Client) *deploydao.DAO {
	return deploydao.New(client, deploydao.TableName(env))
}

func ProvideInputHandler(secrets *secretsmanager.Client, params *ssm.Client) inputs.Handler {
	return inputs.NewDefaultHandler(
		services.NewSecretsService(secrets),
		services.NewParameterService(params),
	)
}

func ProvideValidator() (*policy.Validator, error) {
	return policy.NewValidator()
}
