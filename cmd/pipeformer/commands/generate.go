package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/templates"
)

// GenerateCommand returns the generate command for emitting templates to disk
func GenerateCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"g"},
		Usage:   "Generate CloudFormation templates from a config file",
		Description: `Expands a pipeformer config file into its CloudFormation templates and
writes them to a directory.

Generated files:
  core.json                  CMK and project buckets
  inputs.json                Secrets Manager secrets and SSM parameters
  iam.json                   CloudFormation, CodePipeline, and CodeBuild roles
  codebuild-<stage>.json     One per stage with build actions
  codepipeline.json          The pipeline itself

Examples:
  pipeformer generate --config pipeformer.yaml
  pipeformer generate --config pipeformer.yaml --output ./out`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the pipeformer config file",
				Value:   "pipeformer.yaml",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to write the generated templates to",
				Value:   "templates",
			},
		},
		Action: func(c *cli.Context) error {
			return generateAction(c, logger)
		},
	}
}

func generateAction(c *cli.Context, logger *zerolog.Logger) error {
	project, err := model.Load(c.String("config"))
	if err != nil {
		return err
	}

	set, err := templates.Build(project)
	if err != nil {
		return err
	}

	outputDir := c.String("output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := map[string]*cfn.Template{
		"core.json":         set.Core,
		"inputs.json":       set.Inputs,
		"iam.json":          set.IAM,
		"codepipeline.json": set.Pipeline,
	}
	for _, stage := range set.CodeBuild {
		name := fmt.Sprintf("codebuild-%s.json", strings.ToLower(stage.Stage))
		files[name] = stage.Template
	}

	for name, template := range files {
		body, err := template.JSON()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info().Str("file", path).Msg("wrote template")
	}

	logger.Info().
		Str("project", project.Name).
		Int("templates", len(files)).
		Msg("generation complete")
	return nil
}
