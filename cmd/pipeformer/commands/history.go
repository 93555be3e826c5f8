package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/pipeformer/internal/dao/deploydao"
	"github.com/savaki/pipeformer/internal/di"
	"github.com/savaki/pipeformer/internal/model"
)

// HistoryCommand returns the history command for listing past deployments
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List deployment history for a project",
		Description: `Lists the recorded deployments for a project in an environment, most
recent first.

Examples:
  pipeformer history --config pipeformer.yaml --env dev
  pipeformer history --project my-app --env prd --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the pipeformer config file",
				Value:   "pipeformer.yaml",
			},
			&cli.StringFlag{
				Name:  "project",
				Usage: "Project name (defaults to the name in the config file)",
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name - determines the deployment history table",
				Value:   "dev",
				EnvVars: []string{"ENV"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit records as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			return historyAction(c, logger)
		},
	}
}

func historyAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := c.Context
	env := c.String("env")

	projectName := c.String("project")
	if projectName == "" {
		project, err := model.Load(c.String("config"))
		if err != nil {
			return err
		}
		projectName = project.Name
	}

	container, err := di.New(env)
	if err != nil {
		return err
	}

	return container.Invoke(func(dao *deploydao.DAO) error {
		records, err := dao.Query(ctx, deploydao.NewPK(projectName, env))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			logger.Info().Str("project", projectName).Str("env", env).Msg("no deployments recorded")
			return nil
		}

		if c.Bool("json") {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(records)
		}

		for _, record := range records {
			fmt.Fprintf(os.Stdout, "%s  %-12s  %d stacks  %s\n",
				record.SK, record.Status, len(record.Stacks),
				time.Unix(record.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"))
			if record.ErrorMsg != nil {
				fmt.Fprintf(os.Stdout, "    error: %s\n", *record.ErrorMsg)
			}
		}
		return nil
	})
}
