package main

import (
	"context"
	"fmt"

	"github.com/wtcops/resyncd/client"
	"github.com/wtcops/resyncd/internal/task"

	cli "github.com/urfave/cli/v3"
)

var CommandSubmit = &cli.Command{
	Name:      "submit",
	Usage:     "start a new task (" + kindList() + ")",
	ArgsUsage: "KIND",
	HideHelp:  true,
	Category:  "Tasks",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "version", Aliases: []string{"v"}, Required: true, Usage: "resource `version`, e.g. v885"},
		&cli.StringFlag{Name: "nginx-reuse-version", Usage: "nginx `version` to move to reuse (update-reuse only, derived by default)"},
		&cli.BoolFlag{Name: "skip-check", Usage: "skip the integrity check (full-sync only)"},
		&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "print the task log until the task is finished"},
		&cli.BoolFlag{Name: "progress", Aliases: []string{"p"}, Usage: "show a progress bar until the task is finished"},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		if kind := task.Kind(c.Args().First()); c.Args().Len() > 0 && !kind.IsValid() {
			return fmt.Errorf("unknown task kind: %s (expected one of: %s)", kind, kindList())
		}

		return client.CommandHTTP(ctx, c, client.TaskSubmit)
	},
}

var CommandStatus = &cli.Command{
	Name:      "status",
	Usage:     "print the state of a task",
	ArgsUsage: "TASK_ID",
	HideHelp:  true,
	Category:  "Tasks",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Value: "text", Usage: "output `format`: text, json or yaml"},
		&cli.BoolFlag{Name: "logs", Aliases: []string{"l"}, Usage: "print the task log as well (text format)"},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		switch c.String("format") {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown output format: %s", c.String("format"))
		}

		return client.CommandHTTP(ctx, c, client.TaskPrintStatus)
	},
}

var CommandList = &cli.Command{
	Name:     "list",
	Usage:    "print a list of retained tasks",
	HideHelp: true,
	Category: "Tasks",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "show output in the JSON format"},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return client.CommandHTTP(ctx, c, client.TaskPrintList)
	},
}

var CommandStream = &cli.Command{
	Name:      "stream",
	Usage:     "follow the output of a task",
	ArgsUsage: "TASK_ID",
	HideHelp:  true,
	Category:  "Tasks",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "progress", Aliases: []string{"p"}, Usage: "show a progress bar instead of the log"},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		if c.Bool("progress") {
			return client.CommandHTTP(ctx, c, client.TaskShowProgress)
		}

		return client.CommandHTTP(ctx, c, client.TaskFollow)
	},
}

var CommandHealth = &cli.Command{
	Name:     "health",
	Usage:    "check that the server is alive",
	HideHelp: true,
	Category: "Other",
	Action: func(ctx context.Context, c *cli.Command) error {
		return client.CommandHTTP(ctx, c, client.ServerHealth)
	},
}

func kindList() string {
	var s string

	for i, k := range task.Kinds() {
		if i > 0 {
			s += ", "
		}
		s += string(k)
	}

	return s
}
