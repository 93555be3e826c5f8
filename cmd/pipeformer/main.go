package main

import (
	"context"
	"os"

	"github.com/savaki/pipeformer/cmd/pipeformer/commands"
	"github.com/savaki/pipeformer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "pipeformer",
		Usage: "Generate and deploy CodePipeline projects from a declarative config",
		Description: `Expands a pipeformer config file into a set of CloudFormation templates
and deploys them as interdependent stacks.

This tool provides commands for:
  - Generating the CloudFormation templates for a project
  - Validating a config file and its generated templates
  - Deploying a project and inspecting deployment history`,
		Commands: []*cli.Command{
			commands.GenerateCommand(&logger),
			commands.ValidateCommand(&logger),
			commands.DeployCommand(&logger),
			commands.HistoryCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
