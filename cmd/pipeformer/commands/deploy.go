package commands

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/pipeformer/internal/dao/deploydao"
	"github.com/savaki/pipeformer/internal/deploy"
	"github.com/savaki/pipeformer/internal/di"
	"github.com/savaki/pipeformer/internal/inputs"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/plan"
	"github.com/savaki/pipeformer/internal/policy"
	"github.com/savaki/pipeformer/internal/services"
	"github.com/savaki/pipeformer/internal/templates"
)

// DeployCommand returns the deploy command for creating or updating a
// project's stacks
func DeployCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "deploy",
		Aliases: []string{"d"},
		Usage:   "Deploy a project's stacks",
		Description: `Generates all templates for a project, prompts for any input values that
have not been provided, and deploys the stacks in dependency order.
Independent stacks deploy concurrently.

Examples:
  pipeformer deploy --config pipeformer.yaml --env dev
  pipeformer deploy --config pipeformer.yaml --env prd --prefix my-app --no-history`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the pipeformer config file",
				Value:   "pipeformer.yaml",
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name - determines the deployment history table",
				Value:   "dev",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Stack name prefix (defaults to the lowercased project name)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upper bound on any single synchronization wait",
				Value: plan.DefaultBarrierTimeout,
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Skip recording the deployment in DynamoDB",
			},
		},
		Action: func(c *cli.Context) error {
			return deployAction(c, logger)
		},
	}
}

func deployAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)
	env := c.String("env")

	project, err := model.Load(c.String("config"))
	if err != nil {
		return err
	}

	set, err := templates.Build(project)
	if err != nil {
		return err
	}

	deployPlan, err := plan.Build(project, set)
	if err != nil {
		return err
	}

	container, err := di.New(env)
	if err != nil {
		return err
	}

	return container.Invoke(func(
		stacks *services.StackService,
		store *services.TemplateStore,
		client *cloudformation.Client,
		identity *services.IdentityService,
		handler inputs.Handler,
		validator *policy.Validator,
		history *deploydao.DAO,
	) error {
		caller, err := identity.CallerIdentity(ctx)
		if err != nil {
			return err
		}
		logger.Info().
			Str("account", caller.Account).
			Str("arn", caller.Arn).
			Str("env", env).
			Msg("deploying as")

		opts := deploy.Options{
			Project:        project,
			Plan:           deployPlan,
			Stacks:         stacks,
			Store:          store,
			Client:         client,
			Inputs:         handler,
			Validator:      validator,
			History:        history,
			Env:            env,
			StackPrefix:    c.String("prefix"),
			BarrierTimeout: c.Duration("timeout"),
		}
		if c.Bool("no-history") {
			opts.History = nil
		}

		started := time.Now()
		if err := deploy.New(opts).Deploy(ctx); err != nil {
			return err
		}
		logger.Info().Dur("elapsed", time.Since(started)).Msg("all stacks deployed")
		return nil
	})
}
