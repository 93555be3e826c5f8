package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/plan"
	"github.com/savaki/pipeformer/internal/policy"
	"github.com/savaki/pipeformer/internal/templates"
)

// ValidateCommand returns the validate command for checking a config file
func ValidateCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a config file and its generated templates",
		Description: `Loads a pipeformer config file, generates all templates, builds the
deployment plan, and checks every template against the embedded security
policy. Nothing is deployed.

Examples:
  pipeformer validate --config pipeformer.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the pipeformer config file",
				Value:   "pipeformer.yaml",
			},
		},
		Action: func(c *cli.Context) error {
			return validateAction(c, logger)
		},
	}
}

func validateAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := c.Context

	project, err := model.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger.Info().Str("project", project.Name).Msg("config loaded")

	set, err := templates.Build(project)
	if err != nil {
		return err
	}

	deployPlan, err := plan.Build(project, set)
	if err != nil {
		return err
	}
	for _, node := range deployPlan.Nodes {
		logger.Info().
			Str("stack", node.Name).
			Strs("depends_on", node.DependsOn()).
			Msg("planned stack")
	}

	validator, err := policy.NewValidator()
	if err != nil {
		return err
	}

	failures := 0
	for _, node := range deployPlan.Nodes {
		result, err := validator.ValidateTemplate(ctx, node.Template)
		if err != nil {
			return fmt.Errorf("failed to validate %s: %w", node.Name, err)
		}
		if result.Allowed {
			continue
		}
		failures++
		for _, violation := range result.Violations {
			logger.Error().Str("stack", node.Name).Msg(violation)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d templates rejected by policy", failures, len(deployPlan.Nodes))
	}

	logger.Info().Int("stacks", len(deployPlan.Nodes)).Msg("validation passed")
	return nil
}
